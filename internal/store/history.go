package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"fx-intel-bot/internal/types"

	_ "modernc.org/sqlite"
)

// History is the sqlite-backed journal of trades, sentiment cycles, balance
// snapshots and analysis rows. All writers are best-effort from callers'
// point of view: a failed insert is their problem to log, never to die on.
type History struct {
	db *sql.DB
}

func OpenHistory(path string) (*History, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	h := &History{db: db}
	if err := h.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return h, nil
}

func (h *History) Close() error {
	return h.db.Close()
}

func (h *History) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`
CREATE TABLE IF NOT EXISTS trades (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  instrument TEXT NOT NULL,
  side TEXT NOT NULL,
  units INTEGER NOT NULL,
  price REAL NOT NULL,
  timestamp DATETIME NOT NULL,
  pnl REAL DEFAULT 0.0,
  commission REAL DEFAULT 0.0,
  confidence REAL DEFAULT 0.5,
  sentiment REAL DEFAULT 0.5,
  status TEXT DEFAULT 'pending',
  metadata TEXT
);`,
		`
CREATE TABLE IF NOT EXISTS balance_history (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  balance REAL NOT NULL,
  timestamp DATETIME NOT NULL,
  trade_count INTEGER DEFAULT 0,
  daily_pnl REAL DEFAULT 0.0
);`,
		`
CREATE TABLE IF NOT EXISTS market_analysis (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  instrument TEXT NOT NULL,
  timestamp DATETIME NOT NULL,
  signal TEXT NOT NULL,
  confidence REAL NOT NULL,
  sentiment REAL NOT NULL,
  price_data TEXT,
  indicators TEXT
);`,
		`
CREATE TABLE IF NOT EXISTS news_sentiment (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  timestamp DATETIME NOT NULL,
  sentiment REAL NOT NULL,
  article_count INTEGER DEFAULT 0,
  headlines TEXT
);`,
		`
CREATE TABLE IF NOT EXISTS performance_metrics (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  timestamp DATETIME NOT NULL,
  total_trades INTEGER DEFAULT 0,
  winning_trades INTEGER DEFAULT 0,
  total_pnl REAL DEFAULT 0.0,
  max_drawdown REAL DEFAULT 0.0,
  sharpe_ratio REAL DEFAULT 0.0,
  win_rate REAL DEFAULT 0.0
);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_timestamp ON trades(timestamp);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_instrument ON trades(instrument);`,
		`CREATE INDEX IF NOT EXISTS idx_balance_timestamp ON balance_history(timestamp);`,
	}

	for _, stmt := range stmts {
		if _, err := h.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

type TradeRecord struct {
	Instrument string
	Side       string
	Units      int
	Price      float64
	Time       time.Time
	PnL        float64
	Commission float64
	Confidence float64
	Sentiment  float64
	Status     string
	Metadata   string
}

func (h *History) SaveTrade(ctx context.Context, t TradeRecord) error {
	if t.Time.IsZero() {
		t.Time = time.Now().UTC()
	}
	if t.Status == "" {
		t.Status = "pending"
	}
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO trades (instrument, side, units, price, timestamp, pnl, commission, confidence, sentiment, status, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Instrument, t.Side, t.Units, t.Price, t.Time.UTC().Format(time.RFC3339),
		t.PnL, t.Commission, t.Confidence, t.Sentiment, t.Status, t.Metadata)
	return err
}

func (h *History) SaveBalance(ctx context.Context, balance float64, tradeCount int, dailyPnL float64) error {
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO balance_history (balance, timestamp, trade_count, daily_pnl)
		VALUES (?, ?, ?, ?)`,
		balance, time.Now().UTC().Format(time.RFC3339), tradeCount, dailyPnL)
	return err
}

func (h *History) LatestBalance(ctx context.Context) (float64, bool, error) {
	var balance float64
	err := h.db.QueryRowContext(ctx,
		`SELECT balance FROM balance_history ORDER BY timestamp DESC, id DESC LIMIT 1`).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return balance, true, nil
}

func (h *History) SaveMarketAnalysis(ctx context.Context, instrument, signal string, confidence, sentiment float64, priceData, indicators map[string]float64) error {
	pd, _ := json.Marshal(priceData)
	ind, _ := json.Marshal(indicators)
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO market_analysis (instrument, timestamp, signal, confidence, sentiment, price_data, indicators)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		instrument, time.Now().UTC().Format(time.RFC3339), signal, confidence, sentiment, string(pd), string(ind))
	return err
}

func (h *History) SaveNewsSentiment(ctx context.Context, sample types.SentimentSample, headlines []string) error {
	hs, _ := json.Marshal(headlines)
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO news_sentiment (timestamp, sentiment, article_count, headlines)
		VALUES (?, ?, ?, ?)`,
		sample.Time.UTC().Format(time.RFC3339), sample.Sentiment, sample.ArticleCount, string(hs))
	return err
}

// RecentSentiment returns the last n sentiment samples in chronological
// order, for warm-starting the aggregator after a restart.
func (h *History) RecentSentiment(ctx context.Context, n int) ([]types.SentimentSample, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT timestamp, sentiment, article_count FROM news_sentiment
		ORDER BY timestamp DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.SentimentSample
	for rows.Next() {
		var ts string
		var s types.SentimentSample
		if err := rows.Scan(&ts, &s.Sentiment, &s.ArticleCount); err != nil {
			return nil, err
		}
		s.Time, _ = time.Parse(time.RFC3339, ts)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// RecentHeadlines returns headline lists from the latest sentiment rows.
func (h *History) RecentHeadlines(ctx context.Context, n int) ([]string, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT headlines FROM news_sentiment
		WHERE headlines IS NOT NULL AND headlines != ''
		ORDER BY timestamp DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var hs []string
		if err := json.Unmarshal([]byte(raw), &hs); err != nil {
			continue
		}
		out = append(out, hs...)
	}
	return out, rows.Err()
}

type DailyStats struct {
	Date          string
	Trades        int
	TotalPnL      float64
	AvgPnL        float64
	WinningTrades int
	WinRate       float64
}

func (h *History) DailyStats(ctx context.Context, day time.Time) (DailyStats, error) {
	date := day.UTC().Format("2006-01-02")
	stats := DailyStats{Date: date}

	var total, avg sql.NullFloat64
	var winning sql.NullInt64
	err := h.db.QueryRowContext(ctx, `
		SELECT COUNT(*), SUM(pnl), AVG(pnl), SUM(CASE WHEN pnl > 0 THEN 1 ELSE 0 END)
		FROM trades WHERE DATE(timestamp) = ?`, date).
		Scan(&stats.Trades, &total, &avg, &winning)
	if err != nil {
		return stats, err
	}
	stats.TotalPnL = total.Float64
	stats.AvgPnL = avg.Float64
	stats.WinningTrades = int(winning.Int64)
	if stats.Trades > 0 {
		stats.WinRate = float64(stats.WinningTrades) / float64(stats.Trades)
	}
	return stats, nil
}

type PerformanceMetrics struct {
	TotalTrades   int
	WinningTrades int
	TotalPnL      float64
	AvgPnL        float64
	MaxDrawdown   float64
	SharpeRatio   float64
	WinRate       float64
}

// Performance computes lifetime metrics over completed trades and journals
// a snapshot row.
func (h *History) Performance(ctx context.Context) (PerformanceMetrics, error) {
	var m PerformanceMetrics

	var total, avg sql.NullFloat64
	var winning sql.NullInt64
	err := h.db.QueryRowContext(ctx, `
		SELECT COUNT(*), SUM(CASE WHEN pnl > 0 THEN 1 ELSE 0 END), SUM(pnl), AVG(pnl)
		FROM trades WHERE status = 'completed'`).
		Scan(&m.TotalTrades, &winning, &total, &avg)
	if err != nil {
		return m, err
	}
	if m.TotalTrades == 0 {
		return m, nil
	}
	m.WinningTrades = int(winning.Int64)
	m.TotalPnL = total.Float64
	m.AvgPnL = avg.Float64
	m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades)

	rows, err := h.db.QueryContext(ctx, `
		SELECT pnl FROM trades WHERE status = 'completed' ORDER BY timestamp ASC`)
	if err != nil {
		return m, err
	}
	defer rows.Close()

	var pnls []float64
	for rows.Next() {
		var p float64
		if err := rows.Scan(&p); err != nil {
			return m, err
		}
		pnls = append(pnls, p)
	}
	if err := rows.Err(); err != nil {
		return m, err
	}

	var running, peak float64
	for _, p := range pnls {
		running += p
		if running > peak {
			peak = running
		}
		if dd := peak - running; dd > m.MaxDrawdown {
			m.MaxDrawdown = dd
		}
	}
	if sd := sampleStdDev(pnls); sd > 0 {
		m.SharpeRatio = m.AvgPnL / sd
	}

	_, err = h.db.ExecContext(ctx, `
		INSERT INTO performance_metrics (timestamp, total_trades, winning_trades, total_pnl, max_drawdown, sharpe_ratio, win_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339), m.TotalTrades, m.WinningTrades, m.TotalPnL, m.MaxDrawdown, m.SharpeRatio, m.WinRate)
	return m, err
}

// Cleanup deletes analysis and sentiment rows older than the retention
// window. Trades and balance history are kept.
func (h *History) Cleanup(ctx context.Context, days int) error {
	if days <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339)
	if _, err := h.db.ExecContext(ctx, `DELETE FROM market_analysis WHERE timestamp < ?`, cutoff); err != nil {
		return err
	}
	_, err := h.db.ExecContext(ctx, `DELETE FROM news_sentiment WHERE timestamp < ?`, cutoff)
	return err
}

func sampleStdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var sum float64
	for _, x := range xs {
		d := x - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)-1))
}
