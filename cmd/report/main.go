package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"fx-intel-bot/internal/broker/oanda"
	"fx-intel-bot/internal/notify"
	"fx-intel-bot/internal/report"
	"fx-intel-bot/internal/store"

	"github.com/joho/godotenv"
)

// One-shot report sender, meant for cron. Reads the same config and
// environment as the bot, composes the daily report from persisted history
// and sends it to the configured Telegram chat.
func main() {
	_ = godotenv.Load()

	cfg, err := store.LoadConfig("config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	tg := notify.NewTelegram(os.Getenv("TELEGRAM_BOT_TOKEN"), os.Getenv("TELEGRAM_CHAT_ID"))
	if !tg.Enabled() {
		fmt.Fprintln(os.Stderr, "TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set")
		os.Exit(1)
	}

	history, err := store.OpenHistory(cfg.Store.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open trade history: %v\n", err)
		os.Exit(1)
	}
	defer history.Close()

	// The account probe is best effort here: with no credentials the report
	// simply drops its balance and positions sections.
	brk := oanda.NewOanda(oanda.Params{
		Mode:        cfg.Mode,
		APIKey:      os.Getenv("OANDA_API_KEY"),
		AccountID:   os.Getenv("OANDA_ACCOUNT_ID"),
		Environment: os.Getenv("OANDA_ENVIRONMENT"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	reporter := report.New(report.Params{History: history, Broker: brk, Notifier: tg})
	if err := reporter.Send(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to send report: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✅ Report sent")
}
