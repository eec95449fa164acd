package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"fx-intel-bot/internal/api"
	"fx-intel-bot/internal/interfaces"
	"fx-intel-bot/internal/logger"
	"fx-intel-bot/internal/store"
)

const (
	pollTimeoutSeconds = 25
	pollRetryWait      = 5 * time.Second
)

const helpText = "🤖 <b>FX Intel Bot - Command Guide</b>\n\n" +
	"<b>📊 Status & Monitoring:</b>\n" +
	"/start - System overview\n" +
	"/status - Detailed system status\n" +
	"/balance - Account balance & margin\n" +
	"/performance - Trading performance metrics\n" +
	"/positions - View open positions\n\n" +
	"<b>💰 Controls:</b>\n" +
	"/stop - Emergency stop all trading\n\n" +
	"<b>ℹ️ Information:</b>\n" +
	"/help - This help message"

// PollerParams wires the command surface to the running system. OnStop is
// invoked after a /stop reply has been sent.
type PollerParams struct {
	Telegram *Telegram
	Broker   interfaces.Broker
	Intel    interfaces.Intelligence
	History  *store.History
	OnStop   func()
}

// Poller long-polls getUpdates and answers chat commands. Updates from chats
// other than the configured one are dropped.
type Poller struct {
	tg      *Telegram
	client  *resty.Client
	brk     interfaces.Broker
	intel   interfaces.Intelligence
	history *store.History
	onStop  func()
	started time.Time
	offset  int64

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewPoller(p PollerParams) *Poller {
	poller := &Poller{
		tg:      p.Telegram,
		brk:     p.Broker,
		intel:   p.Intel,
		history: p.History,
		onStop:  p.OnStop,
		started: time.Now(),
	}
	if p.Telegram.Enabled() {
		// Separate client: the long poll has to outlive the send timeout.
		poller.client = api.NewClient(
			api.WithBaseURL(telegramBaseURL),
			api.WithTimeout((pollTimeoutSeconds+10)*time.Second),
		)
	}
	return poller
}

// Start launches the polling loop. Without credentials it is a no-op.
func (p *Poller) Start(ctx context.Context) {
	if p.client == nil {
		logger.Info(ctx, "Telegram commands disabled, no credentials")
		return
	}

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	pctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	p.wg.Add(1)
	go p.loop(pctx)
	logger.Info(ctx, "Telegram command poller started")
}

// Stop aborts the in-flight poll and waits for the loop to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Poller) loop(ctx context.Context) {
	defer p.wg.Done()

	p.drain(ctx)

	for {
		if ctx.Err() != nil {
			return
		}
		updates, err := p.fetchUpdates(ctx, pollTimeoutSeconds)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn(ctx, "Command poll failed", "error", err.Error())
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollRetryWait):
			}
			continue
		}
		for _, u := range updates {
			p.offset = u.UpdateID + 1
			p.handle(ctx, u)
		}
	}
}

// drain skips updates queued while the process was down so stale commands do
// not replay against the fresh instance.
func (p *Poller) drain(ctx context.Context) {
	updates, err := p.fetchUpdates(ctx, 0)
	if err != nil {
		logger.Warn(ctx, "Pending update drain failed", "error", err.Error())
		return
	}
	if len(updates) > 0 {
		p.offset = updates[len(updates)-1].UpdateID + 1
		logger.Info(ctx, "Pending updates dropped", "count", len(updates))
	}
}

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

type updatesResp struct {
	OK     bool     `json:"ok"`
	Result []update `json:"result"`
}

func (p *Poller) fetchUpdates(ctx context.Context, timeoutSeconds int) ([]update, error) {
	var out updatesResp
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"offset":  strconv.FormatInt(p.offset, 10),
			"timeout": strconv.Itoa(timeoutSeconds),
		}).
		SetResult(&out).
		Get("/bot" + p.tg.token + "/getUpdates")
	if err != nil {
		return nil, fmt.Errorf("get updates: %w", err)
	}
	if err := api.CheckStatus(resp); err != nil {
		return nil, fmt.Errorf("get updates: %w", err)
	}
	if !out.OK {
		return nil, fmt.Errorf("get updates: API returned not ok")
	}
	return out.Result, nil
}

func (p *Poller) handle(ctx context.Context, u update) {
	if strconv.FormatInt(u.Message.Chat.ID, 10) != p.tg.chatID {
		return
	}
	text := strings.TrimSpace(u.Message.Text)
	if text == "" {
		return
	}

	cmd := strings.ToLower(strings.Fields(text)[0])
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}

	var reply string
	switch cmd {
	case "/start":
		reply = p.startText()
	case "/help":
		reply = helpText
	case "/status":
		reply = p.statusText()
	case "/balance":
		reply = p.balanceText(ctx)
	case "/positions":
		reply = p.positionsText(ctx)
	case "/performance":
		reply = p.performanceText(ctx)
	case "/stop":
		reply = "🛑 <b>EMERGENCY STOP ACTIVATED</b>\n\n" +
			"⚠️ Stopping all trading activities...\n" +
			"📊 Generating final report..."
	default:
		reply = "🤖 I'm watching the markets 24/7. Use /help for commands or /status for updates."
	}

	if err := p.tg.SendMessage(ctx, reply); err != nil {
		logger.Warn(ctx, "Command reply not delivered", "command", cmd, "error", err.Error())
	}
	logger.Info(ctx, "Command handled", "command", cmd)

	if cmd == "/stop" && p.onStop != nil {
		p.onStop()
	}
}

func (p *Poller) startText() string {
	st := p.intel.Stats()
	return fmt.Sprintf(
		"🚀 <b>FX Intel Bot - ACTIVE</b>\n\n"+
			"⏰ <b>Uptime:</b> %s\n"+
			"🧠 <b>Intel:</b> %s\n"+
			"🎯 <b>Sentiment:</b> %.2f - %s\n\n"+
			"<b>Available Commands:</b>\n"+
			"/start - System status\n"+
			"/status - Detailed status\n"+
			"/balance - Account balance\n"+
			"/performance - Trading performance\n"+
			"/positions - Open positions\n"+
			"/stop - Emergency stop\n"+
			"/help - Command help",
		time.Since(p.started).Truncate(time.Second),
		runState(st.Running),
		st.CurrentSentiment, SentimentLabel(st.CurrentSentiment))
}

func (p *Poller) statusText() string {
	st := p.intel.Stats()
	return fmt.Sprintf(
		"📊 <b>SYSTEM STATUS</b>\n\n"+
			"🕒 <b>Time:</b> %s UTC\n"+
			"⏱️ <b>Uptime:</b> %s\n"+
			"🧠 <b>Intel:</b> %s\n"+
			"🔄 <b>Cycles:</b> %d news / %d market\n"+
			"📰 <b>Samples:</b> %d (cache %d)\n"+
			"🎯 <b>Sentiment:</b> %.2f - %s (%s)",
		time.Now().UTC().Format("2006-01-02 15:04:05"),
		time.Since(p.started).Truncate(time.Second),
		runState(st.Running),
		st.NewsCyclesRun, st.MarketCyclesRun,
		st.HistoryLength, st.CacheLength,
		st.CurrentSentiment, SentimentLabel(st.CurrentSentiment), p.intel.Trend())
}

func (p *Poller) balanceText(ctx context.Context) string {
	snap, err := p.brk.AccountSummary(ctx)
	if err != nil {
		return "❌ Failed to retrieve balance"
	}
	msg := fmt.Sprintf(
		"💰 <b>ACCOUNT BALANCE</b>\n\n"+
			"💵 <b>Balance:</b> $%.2f\n"+
			"📊 <b>Margin Used:</b> $%.2f\n"+
			"📈 <b>Margin Available:</b> $%.2f",
		snap.Balance, snap.MarginUsed, snap.MarginAvailable)

	if p.history != nil {
		if day, err := p.history.DailyStats(ctx, time.Now().UTC()); err == nil {
			msg += fmt.Sprintf(
				"\n\n📊 <b>Today:</b>\n• Trades: %d\n• P&L: $%.2f",
				day.Trades, day.TotalPnL)
		}
	}
	return msg
}

func (p *Poller) positionsText(ctx context.Context) string {
	positions, err := p.brk.OpenPositions(ctx)
	if err != nil {
		return "❌ Failed to retrieve positions"
	}
	if len(positions) == 0 {
		return "📊 No open positions"
	}

	var b strings.Builder
	b.WriteString("📊 <b>OPEN POSITIONS</b>\n")
	for _, pos := range positions {
		side := "LONG"
		if pos.Side == "SELL" {
			side = "SHORT"
		}
		fmt.Fprintf(&b, "\n• %s %s %d units\n  💰 P&L: $%.2f",
			pos.Instrument, side, pos.Units, pos.UnrealizedPnL)
	}
	return b.String()
}

func (p *Poller) performanceText(ctx context.Context) string {
	if p.history == nil {
		return "❌ Trade history not available"
	}
	perf, err := p.history.Performance(ctx)
	if err != nil {
		return "❌ Failed to compute performance"
	}
	return fmt.Sprintf(
		"🎯 <b>TRADING PERFORMANCE</b>\n\n"+
			"📈 <b>Total Trades:</b> %d\n"+
			"🏆 <b>Winning Trades:</b> %d\n"+
			"📊 <b>Win Rate:</b> %.1f%%\n"+
			"💰 <b>Total P&L:</b> $%.2f\n"+
			"📊 <b>Average Trade:</b> $%.2f\n"+
			"⚠️ <b>Max Drawdown:</b> $%.2f",
		perf.TotalTrades, perf.WinningTrades, perf.WinRate*100,
		perf.TotalPnL, perf.AvgPnL, perf.MaxDrawdown)
}

func runState(running bool) string {
	if running {
		return "🟢 Running"
	}
	return "🔴 Stopped"
}
