// Package report builds the daily trading report and exports the day's
// trades to CSV.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fx-intel-bot/internal/interfaces"
	"fx-intel-bot/internal/logger"
	"fx-intel-bot/internal/notify"
	"fx-intel-bot/internal/store"
	"fx-intel-bot/internal/tradelog"
)

const (
	maxRecentTrades = 5
	maxHeadlines    = 3
)

type Params struct {
	History  *store.History
	Intel    interfaces.Intelligence
	Broker   interfaces.Broker
	Notifier interfaces.Notifier
}

// Builder composes the daily report from persisted history, the intel
// service and the broker account. Every section is best effort: a failing
// source drops its section, never the report.
type Builder struct {
	history  *store.History
	intel    interfaces.Intelligence
	brk      interfaces.Broker
	notifier interfaces.Notifier
}

func New(p Params) *Builder {
	return &Builder{
		history:  p.History,
		intel:    p.Intel,
		brk:      p.Broker,
		notifier: p.Notifier,
	}
}

// Daily renders the report text for the given UTC day.
func (b *Builder) Daily(ctx context.Context, day time.Time) string {
	var sb strings.Builder
	sb.WriteString("📊 <b>Trading Report</b>\n")
	fmt.Fprintf(&sb, "🕒 <i>%s</i>\n\n", time.Now().UTC().Format("2006-01-02 15:04:05"))

	if b.brk != nil {
		if snap, err := b.brk.AccountSummary(ctx); err == nil {
			fmt.Fprintf(&sb, "💰 <b>Balance:</b> $%.2f\n", snap.Balance)
		} else {
			logger.Warn(ctx, "Report balance fetch failed", "error", err.Error())
		}
	}

	if b.history != nil {
		if stats, err := b.history.DailyStats(ctx, day); err == nil {
			fmt.Fprintf(&sb, "📈 <b>Trades Today:</b> %d\n", stats.Trades)
			pnlEmoji := "📈"
			if stats.TotalPnL < 0 {
				pnlEmoji = "📉"
			}
			fmt.Fprintf(&sb, "%s <b>P&L:</b> $%.2f\n", pnlEmoji, stats.TotalPnL)
			if stats.Trades > 0 {
				fmt.Fprintf(&sb, "🏆 <b>Win Rate:</b> %.1f%%\n", stats.WinRate*100)
			}
		} else {
			logger.Warn(ctx, "Report daily stats failed", "error", err.Error())
		}
	}

	if sentiment, ok := b.currentSentiment(ctx); ok {
		fmt.Fprintf(&sb, "🎯 <b>Market Sentiment:</b> %s (%.2f)\n", notify.SentimentLabel(sentiment), sentiment)
	}

	b.writePositions(ctx, &sb)
	b.writeRecentTrades(&sb, day)
	b.writeHeadlines(ctx, &sb)

	return strings.TrimRight(sb.String(), "\n")
}

// currentSentiment prefers the live intel reading and falls back to the
// last persisted sample, so one-shot report runs still get a value.
func (b *Builder) currentSentiment(ctx context.Context) (float64, bool) {
	if b.intel != nil {
		return b.intel.CurrentSentiment(), true
	}
	if b.history != nil {
		if samples, err := b.history.RecentSentiment(ctx, 1); err == nil && len(samples) > 0 {
			return samples[0].Sentiment, true
		}
	}
	return 0, false
}

func (b *Builder) writePositions(ctx context.Context, sb *strings.Builder) {
	if b.brk == nil {
		return
	}
	positions, err := b.brk.OpenPositions(ctx)
	if err != nil {
		logger.Warn(ctx, "Report positions fetch failed", "error", err.Error())
		return
	}
	if len(positions) == 0 {
		return
	}
	sb.WriteString("\n<b>Active Positions:</b>\n")
	for _, pos := range positions {
		side := "LONG"
		if pos.Side == "SELL" {
			side = "SHORT"
		}
		fmt.Fprintf(sb, "• %s - %s - %d units\n", pos.Instrument, side, pos.Units)
	}
}

func (b *Builder) writeRecentTrades(sb *strings.Builder, day time.Time) {
	entries, err := tradelog.ReadDay(day)
	if err != nil || len(entries) == 0 {
		return
	}
	if len(entries) > maxRecentTrades {
		entries = entries[len(entries)-maxRecentTrades:]
	}
	sb.WriteString("\n<b>Recent Trades:</b>\n")
	for _, e := range entries {
		fmt.Fprintf(sb, "• %s %s %d units @ %.5f\n", e.Instrument, e.Side, e.Units, e.Price)
	}
}

func (b *Builder) writeHeadlines(ctx context.Context, sb *strings.Builder) {
	if b.history == nil {
		return
	}
	headlines, err := b.history.RecentHeadlines(ctx, maxHeadlines)
	if err != nil || len(headlines) == 0 {
		return
	}
	if len(headlines) > maxHeadlines {
		headlines = headlines[:maxHeadlines]
	}
	sb.WriteString("\n<b>Latest News:</b>\n")
	for _, h := range headlines {
		fmt.Fprintf(sb, "• %s\n", h)
	}
}

// Send delivers today's report and exports the day's trades. Only the
// delivery can fail; a failed export is logged and swallowed.
func (b *Builder) Send(ctx context.Context) error {
	now := time.Now().UTC()
	if err := b.notifier.SendMessage(ctx, b.Daily(ctx, now)); err != nil {
		return fmt.Errorf("send daily report: %w", err)
	}
	path, err := ExportDayCSV(now)
	if err != nil {
		logger.Warn(ctx, "Trade export failed", "error", err.Error())
		return nil
	}
	if path != "" {
		logger.Info(ctx, "Day's trades exported", "path", path)
	}
	return nil
}
