package store

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Mode        string   `yaml:"mode"`
	PollSeconds int      `yaml:"poll_seconds"`
	Instruments []string `yaml:"instruments"`
	Intel       struct {
		NewsIntervalSeconds   int            `yaml:"news_interval_seconds"`
		MarketIntervalSeconds int            `yaml:"market_interval_seconds"`
		FetchTimeoutSeconds   int            `yaml:"fetch_timeout_seconds"`
		PerSourceCap          int            `yaml:"per_source_cap"`
		HistorySize           int            `yaml:"history_size"`
		RecentWindow          int            `yaml:"recent_window"`
		TrendWindow           int            `yaml:"trend_window"`
		TrendMinSamples       int            `yaml:"trend_min_samples"`
		TrendSlopeThreshold   float64        `yaml:"trend_slope_threshold"`
		ArticleCacheSize      int            `yaml:"article_cache_size"`
		CryptoSymbols         []string       `yaml:"crypto_symbols"`
		ScrapeFallback        bool           `yaml:"scrape_fallback"`
		Sources               []SourceConfig `yaml:"sources"`
	} `yaml:"intel"`
	Risk struct {
		PerTradeRiskPct  float64 `yaml:"per_trade_risk_pct"`
		MaxDailyRiskPct  float64 `yaml:"max_daily_risk_pct"`
		MaxOpenPositions int     `yaml:"max_open_positions"`
		MaxDailyTrades   int     `yaml:"max_daily_trades"`
		MinConfidence    float64 `yaml:"min_confidence"`
	} `yaml:"risk"`
	Store struct {
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"store"`
	Report struct {
		DailyHourUTC int `yaml:"daily_hour_utc"`
	} `yaml:"report"`
}

// SourceConfig overrides one built-in news source. An empty list keeps the
// default registry.
type SourceConfig struct {
	Name        string  `yaml:"name"`
	URL         string  `yaml:"url"`
	Kind        string  `yaml:"kind"` // feed or json-api, feed when empty
	Weight      float64 `yaml:"weight"`
	Reliability float64 `yaml:"reliability"`
}

func (c *Config) Validate() error {
	if c.Mode != "DRY_RUN" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'DRY_RUN' or 'LIVE'", c.Mode)
	}
	if len(c.Instruments) == 0 {
		return errors.New("instruments cannot be empty")
	}
	if c.Intel.NewsIntervalSeconds <= 0 || c.Intel.MarketIntervalSeconds <= 0 {
		return errors.New("intel intervals must be positive")
	}
	if c.Intel.PerSourceCap <= 0 {
		return fmt.Errorf("intel.per_source_cap must be positive, got %d", c.Intel.PerSourceCap)
	}
	if c.Intel.HistorySize < c.Intel.TrendWindow {
		return fmt.Errorf("intel.history_size %d is smaller than intel.trend_window %d",
			c.Intel.HistorySize, c.Intel.TrendWindow)
	}
	if c.Intel.TrendMinSamples <= 1 {
		return fmt.Errorf("intel.trend_min_samples must be at least 2, got %d", c.Intel.TrendMinSamples)
	}
	for i, s := range c.Intel.Sources {
		if s.Name == "" || s.URL == "" {
			return fmt.Errorf("intel.sources[%d]: name and url are required", i)
		}
		if s.Kind != "" && s.Kind != "feed" && s.Kind != "json-api" {
			return fmt.Errorf("intel.sources[%d]: kind must be 'feed' or 'json-api', got '%s'", i, s.Kind)
		}
		if s.Weight < 0 || s.Weight > 1 || s.Reliability < 0 || s.Reliability > 1 {
			return fmt.Errorf("intel.sources[%d]: weight and reliability must be between 0-1", i)
		}
	}
	if c.Risk.PerTradeRiskPct <= 0 || c.Risk.PerTradeRiskPct > 100 {
		return fmt.Errorf("risk.per_trade_risk_pct must be between 0-100, got %.2f", c.Risk.PerTradeRiskPct)
	}
	if c.Risk.MinConfidence < 0 || c.Risk.MinConfidence > 1 {
		return fmt.Errorf("risk.min_confidence must be between 0-1, got %.2f", c.Risk.MinConfidence)
	}
	if c.Report.DailyHourUTC < 0 || c.Report.DailyHourUTC > 23 {
		return fmt.Errorf("report.daily_hour_utc must be between 0-23, got %d", c.Report.DailyHourUTC)
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	if c.PollSeconds == 0 {
		c.PollSeconds = 60
	}
	if c.Intel.NewsIntervalSeconds == 0 {
		c.Intel.NewsIntervalSeconds = 30
	}
	if c.Intel.MarketIntervalSeconds == 0 {
		c.Intel.MarketIntervalSeconds = 20
	}
	if c.Intel.FetchTimeoutSeconds == 0 {
		c.Intel.FetchTimeoutSeconds = 10
	}
	if c.Intel.PerSourceCap == 0 {
		c.Intel.PerSourceCap = 50
	}
	if c.Intel.HistorySize == 0 {
		c.Intel.HistorySize = 1000
	}
	if c.Intel.RecentWindow == 0 {
		c.Intel.RecentWindow = 10
	}
	if c.Intel.TrendWindow == 0 {
		c.Intel.TrendWindow = 20
	}
	if c.Intel.TrendMinSamples == 0 {
		c.Intel.TrendMinSamples = 5
	}
	if c.Intel.TrendSlopeThreshold == 0 {
		c.Intel.TrendSlopeThreshold = 0.005
	}
	if c.Intel.ArticleCacheSize == 0 {
		c.Intel.ArticleCacheSize = 200
	}
	if len(c.Intel.CryptoSymbols) == 0 {
		c.Intel.CryptoSymbols = []string{"BTCUSDT", "ETHUSDT"}
	}
	if c.Risk.PerTradeRiskPct == 0 {
		c.Risk.PerTradeRiskPct = 1.0
	}
	if c.Risk.MaxDailyRiskPct == 0 {
		c.Risk.MaxDailyRiskPct = 5.0
	}
	if c.Risk.MaxOpenPositions == 0 {
		c.Risk.MaxOpenPositions = 5
	}
	if c.Risk.MaxDailyTrades == 0 {
		c.Risk.MaxDailyTrades = 50
	}
	if c.Risk.MinConfidence == 0 {
		c.Risk.MinConfidence = 0.7
	}
	if c.Store.Path == "" {
		c.Store.Path = "data/fxintel.db"
	}
	if c.Store.RetentionDays == 0 {
		c.Store.RetentionDays = 30
	}
	if c.Report.DailyHourUTC == 0 {
		c.Report.DailyHourUTC = 17
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}
