package types

import "time"

type Candle struct {
	Ts                          int64
	Open, High, Low, Close, Vol float64
}

type Indicators struct {
	SMA   map[int]float64
	EMA   map[int]float64
	RSI   float64
	MACD  struct{ Line, Signal, Histogram float64 }
	BB    struct{ Middle, Upper, Lower float64 }
	Stoch struct{ K, D float64 }
	ATR   float64
	ROC   float64
}

// Article is one normalized entry from a news source. Description may be
// empty for headline-only sources.
type Article struct {
	Title             string
	Description       string
	URL               string
	Source            string
	SourceWeight      float64
	SourceReliability float64
	PublishedAt       time.Time
	FetchedAt         time.Time
}

// ScoredArticle carries the scorer's output: Relevance in [0,1],
// Sentiment in [-1,1].
type ScoredArticle struct {
	Article
	Relevance float64
	Sentiment float64
}

// SentimentSample is one completed news cycle folded to a scalar.
// Sentiment here is on the aggregate [0,1] scale, 0.5 neutral.
type SentimentSample struct {
	Time           time.Time
	Sentiment      float64
	ArticleCount   int
	SourcesScanned int
}

type Trend string

const (
	TrendUnknown          Trend = "UNKNOWN"
	TrendImproving        Trend = "IMPROVING"
	TrendDeclining        Trend = "DECLINING"
	TrendStable           Trend = "STABLE"
	TrendInsufficientData Trend = "INSUFFICIENT_DATA"
)

// InstrumentBar is the latest bar for one instrument. Volume is 0 when the
// endpoint does not report one.
type InstrumentBar struct {
	Instrument    string
	Price         float64
	Change        float64
	PercentChange float64
	Volume        float64
}

type MarketSnapshot struct {
	Time   time.Time
	FX     map[string]InstrumentBar
	Crypto map[string]InstrumentBar
}

// IntelStats is the diagnostic snapshot exposed by the intelligence
// service. CurrentSentiment is on the [0,1] scale.
type IntelStats struct {
	Running               bool    `json:"running"`
	NewsCyclesRun         int64   `json:"news_cycles_run"`
	MarketCyclesRun       int64   `json:"market_cycles_run"`
	HistoryLength         int     `json:"history_length"`
	CacheLength           int     `json:"cache_length"`
	CurrentSentiment      float64 `json:"current_sentiment"`
	ConfiguredSourceCount int     `json:"configured_source_count"`
}

type PriceQuote struct {
	Instrument string
	Bid, Ask   float64
	Mid        float64
	Spread     float64
	Time       time.Time
}

// MarketContext is the non-price state a decision is made against.
// Sentiment is on the [0,1] scale.
type MarketContext struct {
	Sentiment       float64
	Trend           Trend
	Regime          string
	Quote           PriceQuote
	OpenInstruments []string
	WinStreak       int
	LossStreak      int
}

const (
	RegimeNormal   = "NORMAL"
	RegimeVolatile = "VOLATILE"
	RegimeTrending = "TRENDING"
	RegimeBreakout = "BREAKOUT"
	RegimeReversal = "REVERSAL"
)

// InstrumentSpec carries per-instrument trading parameters.
type InstrumentSpec struct {
	MaxSpread    float64
	VolThreshold float64
	Precision    int // decimal places for price fields on orders
	PipSize      float64
	UnitScale    int // risk-amount to units conversion factor
}

// DefaultInstrumentSpecs returns the supported major pairs.
func DefaultInstrumentSpecs() map[string]InstrumentSpec {
	return map[string]InstrumentSpec{
		"EUR_USD": {MaxSpread: 0.0003, VolThreshold: 0.002, Precision: 5, PipSize: 0.0001, UnitScale: 100},
		"GBP_USD": {MaxSpread: 0.0004, VolThreshold: 0.003, Precision: 5, PipSize: 0.0001, UnitScale: 100},
		"USD_JPY": {MaxSpread: 0.003, VolThreshold: 0.02, Precision: 3, PipSize: 0.01, UnitScale: 100},
		"USD_CHF": {MaxSpread: 0.0004, VolThreshold: 0.002, Precision: 5, PipSize: 0.0001, UnitScale: 80},
		"AUD_USD": {MaxSpread: 0.0005, VolThreshold: 0.003, Precision: 5, PipSize: 0.0001, UnitScale: 100},
		"USD_CAD": {MaxSpread: 0.0004, VolThreshold: 0.002, Precision: 5, PipSize: 0.0001, UnitScale: 80},
		"NZD_USD": {MaxSpread: 0.0006, VolThreshold: 0.003, Precision: 5, PipSize: 0.0001, UnitScale: 100},
	}
}

// CorrelatedPairs maps each instrument to the pairs it tends to move with.
func CorrelatedPairs() map[string][]string {
	return map[string][]string{
		"EUR_USD": {"GBP_USD", "AUD_USD"},
		"GBP_USD": {"EUR_USD", "AUD_USD"},
		"USD_JPY": {"USD_CHF", "USD_CAD"},
		"USD_CHF": {"USD_JPY", "USD_CAD"},
		"AUD_USD": {"EUR_USD", "GBP_USD", "NZD_USD"},
		"USD_CAD": {"USD_JPY", "USD_CHF"},
		"NZD_USD": {"AUD_USD"},
	}
}

type Decision struct {
	Action     string  `json:"action"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
	Units      int     `json:"units,omitempty"`
}

type StepResult struct {
	Instrument string      `json:"instrument"`
	Decision   Decision    `json:"decision"`
	Price      float64     `json:"price"`
	Time       int64       `json:"time"`
	Orders     []OrderResp `json:"orders"`
	Reason     string      `json:"reason"`
}

type OrderReq struct {
	Instrument string
	Side       string
	Units      int
	StopLoss   float64
	TakeProfit float64
	Tag        string
}

type OrderResp struct {
	OrderID   string  `json:"order_id"`
	Status    string  `json:"status"`
	FillPrice float64 `json:"fill_price"`
	Message   string  `json:"message,omitempty"`
}

type PositionInfo struct {
	Instrument    string
	Side          string
	Units         int
	AvgPrice      float64
	UnrealizedPnL float64
}

type AccountSnapshot struct {
	Balance         float64
	MarginUsed      float64
	MarginAvailable float64
	Positions       []PositionInfo
}
