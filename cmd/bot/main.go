package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fx-intel-bot/internal/intel"
	"fx-intel-bot/internal/interfaces"
	"fx-intel-bot/internal/logger"
	"fx-intel-bot/internal/notify"
	"fx-intel-bot/internal/report"
	"fx-intel-bot/internal/store"
	"fx-intel-bot/internal/trace"
)

func main() {
	if err := initializeSystem(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := loadConfig(ctx)
	if err != nil {
		os.Exit(1)
	}

	compressOldLogs(ctx)

	history, err := store.OpenHistory(cfg.Store.Path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to open trade history", err)
		os.Exit(1)
	}
	defer history.Close()

	if err := history.Cleanup(ctx, cfg.Store.RetentionDays); err != nil {
		logger.Warn(ctx, "History cleanup failed", "error", err.Error())
	}

	brk := initializeBroker(ctx, cfg)
	if err := validateStartup(ctx, brk); err != nil {
		logger.ErrorWithErr(ctx, "Startup validation failed", err)
		os.Exit(1)
	}

	tg := notify.NewTelegram(os.Getenv("TELEGRAM_BOT_TOKEN"), os.Getenv("TELEGRAM_CHAT_ID"))
	if !tg.Enabled() {
		logger.Info(ctx, "Telegram notifications disabled, no credentials")
	}

	svc := intel.NewService(cfg, brk, history)
	eng := initializeEngine(cfg, brk, initializeDecider(), svc, history, tg)
	reporter := report.New(report.Params{History: history, Intel: svc, Broker: brk, Notifier: tg})

	// /stop from the chat cancels the root context, same path as SIGTERM.
	poller := notify.NewPoller(notify.PollerParams{
		Telegram: tg,
		Broker:   brk,
		Intel:    svc,
		History:  history,
		OnStop:   cancel,
	})

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	started := time.Now()
	svc.Start(ctx)
	poller.Start(ctx)
	tg.Startup(ctx, cfg.Mode, len(cfg.Instruments))

	tick := time.NewTicker(time.Duration(cfg.PollSeconds) * time.Second)
	defer tick.Stop()
	reportTimer := time.NewTimer(time.Until(nextReportTime(cfg.Report.DailyHourUTC)))
	defer reportTimer.Stop()

	logger.Info(ctx, "Bot started",
		"mode", cfg.Mode,
		"instruments", len(cfg.Instruments),
		"poll_seconds", cfg.PollSeconds,
	)

	for {
		select {
		case <-tick.C:
			runCycle(ctx, eng, cfg.Instruments)
		case <-reportTimer.C:
			if err := reporter.Send(ctx); err != nil {
				logger.Warn(ctx, "Daily report not delivered", "error", err.Error())
			}
			if err := history.Cleanup(ctx, cfg.Store.RetentionDays); err != nil {
				logger.Warn(ctx, "History cleanup failed", "error", err.Error())
			}
			reportTimer.Reset(time.Until(nextReportTime(cfg.Report.DailyHourUTC)))
		case <-sigc:
			logger.Info(ctx, "Shutdown signal received")
			cancel()
			shutdown(svc, poller, reporter, tg, started)
			return
		case <-ctx.Done():
			shutdown(svc, poller, reporter, tg, started)
			return
		}
	}
}

// runCycle steps every configured instrument once.
func runCycle(ctx context.Context, eng interfaces.Engine, instruments []string) {
	for _, inst := range instruments {
		if ctx.Err() != nil {
			return
		}
		if _, err := eng.Step(ctx, inst); err != nil {
			// Logged by the observability wrapper. Keep stepping the rest.
			continue
		}
	}
}

// nextReportTime returns the next occurrence of the daily report hour in UTC.
func nextReportTime(hourUTC int) time.Time {
	now := time.Now().UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hourUTC, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// shutdown winds the bot down: stop background work first, then send the
// last report and the offline notice, then flush telemetry.
func shutdown(svc *intel.Service, poller *notify.Poller, reporter *report.Builder, tg *notify.Telegram, started time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	poller.Stop()
	svc.Stop()

	if err := reporter.Send(ctx); err != nil {
		logger.Warn(ctx, "Final report not delivered", "error", err.Error())
	}
	tg.Shutdown(ctx, time.Since(started))

	logger.Info(ctx, "Bot stopped", "uptime", time.Since(started).Round(time.Second).String())
	if err := trace.Shutdown(ctx); err != nil {
		logger.Warn(ctx, "Tracer shutdown failed", "error", err.Error())
	}
	_ = logger.Shutdown(ctx)
}
