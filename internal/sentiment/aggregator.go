package sentiment

import (
	"sync"
	"time"

	"fx-intel-bot/internal/types"
)

// AggregatorConfig tunes the rolling sentiment series.
type AggregatorConfig struct {
	HistorySize     int     // ring capacity for news samples
	RecentWindow    int     // samples considered by Current
	TrendWindow     int     // samples considered by Trend
	TrendMinSamples int     // below this Trend reports insufficient data
	SlopeThreshold  float64 // regression slope dead band
	NewsWeight      float64 // news share of the blend, market gets the rest
	MarketGain      float64 // percent change to sentiment shift factor
}

func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		HistorySize:     1000,
		RecentWindow:    10,
		TrendWindow:     20,
		TrendMinSamples: 5,
		SlopeThreshold:  0.005,
		NewsWeight:      0.7,
		MarketGain:      0.1,
	}
}

// Aggregator folds scored articles and market snapshots into a bounded
// sentiment time series. All values it stores and serves are on the [0,1]
// scale with 0.5 neutral. Safe for concurrent use.
type Aggregator struct {
	mu        sync.RWMutex
	cfg       AggregatorConfig
	history   []types.SentimentSample
	market    float64
	hasMarket bool
}

func NewAggregator(cfg AggregatorConfig) *Aggregator {
	def := DefaultAggregatorConfig()
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = def.HistorySize
	}
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = def.RecentWindow
	}
	if cfg.TrendWindow <= 0 {
		cfg.TrendWindow = def.TrendWindow
	}
	if cfg.TrendMinSamples <= 0 {
		cfg.TrendMinSamples = def.TrendMinSamples
	}
	if cfg.SlopeThreshold <= 0 {
		cfg.SlopeThreshold = def.SlopeThreshold
	}
	if cfg.NewsWeight <= 0 || cfg.NewsWeight > 1 {
		cfg.NewsWeight = def.NewsWeight
	}
	if cfg.MarketGain <= 0 {
		cfg.MarketGain = def.MarketGain
	}
	return &Aggregator{cfg: cfg}
}

// RecordNewsCycle folds one cycle of scored articles into a sample and
// appends it to the ring. Article weight is relevance times source weight,
// zero-weight articles contribute nothing. An empty cycle records a neutral
// sample so gaps stay visible in the series.
func (a *Aggregator) RecordNewsCycle(articles []types.ScoredArticle, sourcesScanned int) types.SentimentSample {
	var sum, wsum float64
	for _, art := range articles {
		w := art.Relevance * art.SourceWeight
		if w <= 0 {
			continue
		}
		sum += art.Sentiment * w
		wsum += w
	}
	mean := 0.0
	if wsum > 0 {
		mean = sum / wsum
	}

	sample := types.SentimentSample{
		Time:           time.Now().UTC(),
		Sentiment:      (mean + 1.0) / 2.0,
		ArticleCount:   len(articles),
		SourcesScanned: sourcesScanned,
	}

	a.mu.Lock()
	a.appendLocked(sample)
	a.mu.Unlock()
	return sample
}

// RecordMarketCycle converts a snapshot's mean percent change into a market
// sentiment value and keeps only the latest. A move against the gain factor
// saturates at 0 or 1. Snapshots with no bars leave the previous value in
// place.
func (a *Aggregator) RecordMarketCycle(snap types.MarketSnapshot) float64 {
	var sum float64
	var n int
	for _, b := range snap.FX {
		sum += b.PercentChange
		n++
	}
	for _, b := range snap.Crypto {
		sum += b.PercentChange
		n++
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if n > 0 {
		mean := sum / float64(n)
		a.market = 0.5 + clamp(mean*a.cfg.MarketGain, -0.5, 0.5)
		a.hasMarket = true
	}
	if !a.hasMarket {
		return 0.5
	}
	return a.market
}

// Current returns the blended sentiment in [0,1]. News samples in the recent
// window get strictly increasing weights toward the newest, then the market
// value joins the blend when present. With no data at all it returns 0.5.
func (a *Aggregator) Current() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	news, hasNews := a.recentNewsLocked()
	switch {
	case !hasNews && !a.hasMarket:
		return 0.5
	case !hasNews:
		return a.market
	case !a.hasMarket:
		return news
	}
	return a.cfg.NewsWeight*news + (1.0-a.cfg.NewsWeight)*a.market
}

func (a *Aggregator) recentNewsLocked() (float64, bool) {
	n := len(a.history)
	if n == 0 {
		return 0.0, false
	}
	w := a.cfg.RecentWindow
	if n < w {
		w = n
	}
	var sum, wsum float64
	for i := 0; i < w; i++ {
		weight := float64(i + 1)
		sum += a.history[n-w+i].Sentiment * weight
		wsum += weight
	}
	return sum / wsum, true
}

// Trend classifies the direction of the series with a least-squares slope
// over the trend window.
func (a *Aggregator) Trend() types.Trend {
	a.mu.RLock()
	defer a.mu.RUnlock()

	n := len(a.history)
	if n < a.cfg.TrendMinSamples {
		return types.TrendInsufficientData
	}
	k := a.cfg.TrendWindow
	if n < k {
		k = n
	}
	start := n - k

	var sumX, sumY, sumXY, sumXX float64
	for i := 0; i < k; i++ {
		x := float64(i)
		y := a.history[start+i].Sentiment
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	den := float64(k)*sumXX - sumX*sumX
	if den == 0 {
		return types.TrendStable
	}
	slope := (float64(k)*sumXY - sumX*sumY) / den

	switch {
	case slope > a.cfg.SlopeThreshold:
		return types.TrendImproving
	case slope < -a.cfg.SlopeThreshold:
		return types.TrendDeclining
	}
	return types.TrendStable
}

// History returns a copy of the sample ring, oldest first.
func (a *Aggregator) History() []types.SentimentSample {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]types.SentimentSample, len(a.history))
	copy(out, a.history)
	return out
}

// Preload seeds the ring, used to warm up from persisted samples.
func (a *Aggregator) Preload(samples []types.SentimentSample) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range samples {
		a.appendLocked(s)
	}
}

// Len returns the number of samples held.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.history)
}

// Market returns the latest market sentiment value and whether one exists.
func (a *Aggregator) Market() (float64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.market, a.hasMarket
}

func (a *Aggregator) appendLocked(s types.SentimentSample) {
	a.history = append(a.history, s)
	if over := len(a.history) - a.cfg.HistorySize; over > 0 {
		a.history = a.history[over:]
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
