package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"fx-intel-bot/internal/types"
)

func openTestHistory(t *testing.T) *History {
	t.Helper()
	h, err := OpenHistory(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Expected open to succeed, got %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestSaveTradeAndDailyStats(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, pnl := range []float64{10, -5, 2} {
		err := h.SaveTrade(ctx, TradeRecord{
			Instrument: "EUR_USD", Side: "BUY", Units: 1000, Price: 1.085,
			Time: now, PnL: pnl, Status: "completed",
		})
		if err != nil {
			t.Fatalf("Expected save to succeed, got %v", err)
		}
	}

	stats, err := h.DailyStats(ctx, now)
	if err != nil {
		t.Fatalf("Expected stats, got %v", err)
	}
	if stats.Trades != 3 {
		t.Errorf("Expected 3 trades, got %d", stats.Trades)
	}
	if stats.TotalPnL != 7 {
		t.Errorf("Expected total pnl 7, got %f", stats.TotalPnL)
	}
	if stats.WinningTrades != 2 {
		t.Errorf("Expected 2 winners, got %d", stats.WinningTrades)
	}
	if diff := math.Abs(stats.WinRate - 2.0/3.0); diff > 1e-9 {
		t.Errorf("Expected win rate 0.667, got %f", stats.WinRate)
	}
}

func TestDailyStatsEmptyDay(t *testing.T) {
	h := openTestHistory(t)

	stats, err := h.DailyStats(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Expected no error on empty day, got %v", err)
	}
	if stats.Trades != 0 || stats.TotalPnL != 0 || stats.WinRate != 0 {
		t.Errorf("Expected zero stats, got %+v", stats)
	}
}

func TestLatestBalance(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()

	if _, ok, err := h.LatestBalance(ctx); err != nil || ok {
		t.Fatalf("Expected no balance yet, got ok=%v err=%v", ok, err)
	}

	if err := h.SaveBalance(ctx, 10000, 0, 0); err != nil {
		t.Fatalf("Expected save, got %v", err)
	}
	if err := h.SaveBalance(ctx, 10250.5, 3, 250.5); err != nil {
		t.Fatalf("Expected save, got %v", err)
	}

	balance, ok, err := h.LatestBalance(ctx)
	if err != nil || !ok {
		t.Fatalf("Expected balance, got ok=%v err=%v", ok, err)
	}
	if balance != 10250.5 {
		t.Errorf("Expected 10250.5, got %f", balance)
	}
}

func TestRecentSentimentRoundTrip(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		sample := types.SentimentSample{
			Time:         base.Add(time.Duration(i) * time.Minute),
			Sentiment:    0.5 + float64(i)*0.1,
			ArticleCount: i + 1,
		}
		if err := h.SaveNewsSentiment(ctx, sample, []string{"headline"}); err != nil {
			t.Fatalf("Expected save, got %v", err)
		}
	}

	samples, err := h.RecentSentiment(ctx, 2)
	if err != nil {
		t.Fatalf("Expected samples, got %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("Expected 2 samples, got %d", len(samples))
	}
	if !samples[0].Time.Before(samples[1].Time) {
		t.Error("Expected chronological order")
	}
	if samples[1].Sentiment != 0.7 || samples[1].ArticleCount != 3 {
		t.Errorf("Expected newest sample 0.7/3, got %f/%d", samples[1].Sentiment, samples[1].ArticleCount)
	}
}

func TestRecentHeadlines(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()

	sample := types.SentimentSample{Time: time.Now().UTC(), Sentiment: 0.6, ArticleCount: 2}
	if err := h.SaveNewsSentiment(ctx, sample, []string{"Fed holds rates", "Euro steadies"}); err != nil {
		t.Fatalf("Expected save, got %v", err)
	}

	hs, err := h.RecentHeadlines(ctx, 5)
	if err != nil {
		t.Fatalf("Expected headlines, got %v", err)
	}
	if len(hs) != 2 || hs[0] != "Fed holds rates" {
		t.Errorf("Expected stored headlines back, got %v", hs)
	}
}

func TestPerformanceMetrics(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	for i, pnl := range []float64{10, -5, 15, -20} {
		err := h.SaveTrade(ctx, TradeRecord{
			Instrument: "EUR_USD", Side: "BUY", Units: 1000, Price: 1.08,
			Time: base.Add(time.Duration(i) * time.Hour), PnL: pnl, Status: "completed",
		})
		if err != nil {
			t.Fatalf("Expected save, got %v", err)
		}
	}
	// Pending trades are excluded.
	_ = h.SaveTrade(ctx, TradeRecord{Instrument: "EUR_USD", Side: "BUY", Units: 1000, Price: 1.08, PnL: 99, Status: "pending"})

	m, err := h.Performance(ctx)
	if err != nil {
		t.Fatalf("Expected metrics, got %v", err)
	}
	if m.TotalTrades != 4 {
		t.Errorf("Expected 4 completed trades, got %d", m.TotalTrades)
	}
	if m.WinningTrades != 2 {
		t.Errorf("Expected 2 winners, got %d", m.WinningTrades)
	}
	if m.TotalPnL != 0 {
		t.Errorf("Expected flat total, got %f", m.TotalPnL)
	}
	// Cumulative path 10, 5, 20, 0 peaks at 20 and ends at 0.
	if m.MaxDrawdown != 20 {
		t.Errorf("Expected max drawdown 20, got %f", m.MaxDrawdown)
	}
	if m.WinRate != 0.5 {
		t.Errorf("Expected win rate 0.5, got %f", m.WinRate)
	}
}

func TestPerformanceEmpty(t *testing.T) {
	h := openTestHistory(t)

	m, err := h.Performance(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if m.TotalTrades != 0 {
		t.Errorf("Expected empty metrics, got %+v", m)
	}
}

func TestCleanupKeepsRecentRows(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()

	old := types.SentimentSample{Time: time.Now().UTC().AddDate(0, 0, -40), Sentiment: 0.4, ArticleCount: 1}
	fresh := types.SentimentSample{Time: time.Now().UTC(), Sentiment: 0.6, ArticleCount: 2}
	if err := h.SaveNewsSentiment(ctx, old, nil); err != nil {
		t.Fatalf("Expected save, got %v", err)
	}
	if err := h.SaveNewsSentiment(ctx, fresh, nil); err != nil {
		t.Fatalf("Expected save, got %v", err)
	}

	if err := h.Cleanup(ctx, 30); err != nil {
		t.Fatalf("Expected cleanup, got %v", err)
	}

	samples, err := h.RecentSentiment(ctx, 10)
	if err != nil {
		t.Fatalf("Expected samples, got %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("Expected old row purged, got %d rows", len(samples))
	}
	if samples[0].Sentiment != 0.6 {
		t.Errorf("Expected fresh row kept, got %f", samples[0].Sentiment)
	}
}
