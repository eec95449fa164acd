// Package notify delivers messages and alerts over the Telegram Bot API and
// answers chat commands about the running system.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"fx-intel-bot/internal/api"
	"fx-intel-bot/internal/interfaces"
	"fx-intel-bot/internal/logger"
)

const (
	telegramBaseURL = "https://api.telegram.org"
	sendAttempts    = 3
)

// Telegram sends messages to one configured chat. Without credentials every
// send is a silent no-op so the rest of the system never has to care.
type Telegram struct {
	token  string
	chatID string
	client *resty.Client
}

var _ interfaces.Notifier = (*Telegram)(nil)

func NewTelegram(token, chatID string) *Telegram {
	t := &Telegram{token: token, chatID: chatID}
	if token != "" && chatID != "" {
		t.client = api.NewClient(
			api.WithBaseURL(telegramBaseURL),
			api.WithTimeout(10*time.Second),
			api.WithLogging(true),
		)
	}
	return t
}

// Enabled reports whether credentials were configured.
func (t *Telegram) Enabled() bool {
	return t.client != nil
}

type apiResp struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// SendMessage posts text to the configured chat with HTML formatting. Rate
// limits are honored by waiting out the retry_after Telegram returns.
func (t *Telegram) SendMessage(ctx context.Context, text string) error {
	if !t.Enabled() {
		return nil
	}

	for attempt := 0; attempt < sendAttempts; attempt++ {
		var out apiResp
		resp, err := t.client.R().
			SetContext(ctx).
			SetFormData(map[string]string{
				"chat_id":    t.chatID,
				"text":       text,
				"parse_mode": "HTML",
			}).
			SetResult(&out).
			SetError(&out).
			Post("/bot" + t.token + "/sendMessage")
		if err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}

		if resp.StatusCode() == http.StatusTooManyRequests {
			wait := time.Duration(out.Parameters.RetryAfter) * time.Second
			if wait <= 0 {
				wait = time.Second
			}
			logger.Warn(ctx, "Telegram rate limited", "retry_after", wait.String())
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		if err := api.CheckStatus(resp); err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
		if !out.OK {
			return fmt.Errorf("telegram send: %s", out.Description)
		}
		return nil
	}
	return fmt.Errorf("telegram send: still rate limited after %d attempts", sendAttempts)
}

// Startup announces the process coming online.
func (t *Telegram) Startup(ctx context.Context, mode string, instruments int) {
	msg := fmt.Sprintf(
		"🚀 <b>FX Intel Bot ONLINE</b>\n\n"+
			"✅ All systems operational\n"+
			"⚙️ Mode: %s\n"+
			"📊 Watching %d instruments",
		mode, instruments)
	if err := t.SendMessage(ctx, msg); err != nil {
		logger.Warn(ctx, "Startup message not delivered", "error", err.Error())
	}
}

// Shutdown announces a clean exit.
func (t *Telegram) Shutdown(ctx context.Context, uptime time.Duration) {
	msg := fmt.Sprintf(
		"🛑 <b>FX Intel Bot OFFLINE</b>\n\n"+
			"⏱️ Session duration: %s\n"+
			"📅 Shutdown: %s",
		uptime.Truncate(time.Second),
		time.Now().UTC().Format("2006-01-02 15:04:05"))
	if err := t.SendMessage(ctx, msg); err != nil {
		logger.Warn(ctx, "Shutdown message not delivered", "error", err.Error())
	}
}

// ErrorAlert pushes a truncated error to the chat.
func (t *Telegram) ErrorAlert(ctx context.Context, errMsg string) {
	if len(errMsg) > 100 {
		errMsg = errMsg[:100] + "..."
	}
	msg := fmt.Sprintf(
		"🚨 <b>SYSTEM ALERT</b>\n\n"+
			"❌ <b>Error:</b> %s\n"+
			"🕒 <b>Time:</b> %s",
		errMsg, time.Now().UTC().Format("15:04:05"))
	if err := t.SendMessage(ctx, msg); err != nil {
		logger.Warn(ctx, "Error alert not delivered", "error", err.Error())
	}
}

// SentimentLabel renders an aggregate sentiment value as the report wording.
func SentimentLabel(v float64) string {
	switch {
	case v >= 0.7:
		return "🟢 Very Bullish"
	case v >= 0.6:
		return "🟢 Bullish"
	case v >= 0.4:
		return "🟡 Neutral"
	case v >= 0.3:
		return "🔴 Bearish"
	default:
		return "🔴 Very Bearish"
	}
}
