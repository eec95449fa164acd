package marketdata

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"fx-intel-bot/internal/api"
	"fx-intel-bot/internal/logger"
	"fx-intel-bot/internal/types"
)

const binanceBaseURL = "https://api.binance.com"

// BinanceClient pulls 24h tickers for a fixed symbol list. Binance
// geoblocks some regions; the first 451 or 403 disables the client for the
// rest of the process.
type BinanceClient struct {
	client  *resty.Client
	symbols []string

	mu       sync.Mutex
	disabled bool
}

func NewBinanceClient(symbols []string) *BinanceClient {
	client := api.NewClient(
		api.WithBaseURL(binanceBaseURL),
		api.WithTimeout(10*time.Second),
		api.WithLogging(true),
	)
	return &BinanceClient{
		client:  client,
		symbols: symbols,
	}
}

// Disabled reports whether the client has been shut off by a geoblock.
func (b *BinanceClient) Disabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.disabled
}

func (b *BinanceClient) disable() {
	b.mu.Lock()
	b.disabled = true
	b.mu.Unlock()
}

type binanceTicker struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
	QuoteVolume        string `json:"quoteVolume"`
}

// Fetch returns the latest bars keyed by symbol. Failures are logged per
// symbol and never abort the rest of the batch.
func (b *BinanceClient) Fetch(ctx context.Context) map[string]types.InstrumentBar {
	if b.Disabled() {
		return nil
	}

	out := make(map[string]types.InstrumentBar, len(b.symbols))
	for _, sym := range b.symbols {
		var ticker binanceTicker
		resp, err := b.client.R().
			SetContext(ctx).
			SetQueryParam("symbol", sym).
			SetResult(&ticker).
			Get("/api/v3/ticker/24hr")
		if err != nil {
			logger.Warn(ctx, "Binance fetch failed", "symbol", sym, "error", err.Error())
			continue
		}
		if resp.StatusCode() == 451 || resp.StatusCode() == 403 {
			b.disable()
			logger.Warn(ctx, "Binance unavailable from this region, disabling crypto collection",
				"status", resp.StatusCode())
			return out
		}
		if resp.IsError() {
			logger.Warn(ctx, "Binance error response", "symbol", sym, "status", resp.StatusCode())
			continue
		}

		out[sym] = types.InstrumentBar{
			Instrument:    ticker.Symbol,
			Price:         parseFloat(ticker.LastPrice),
			Change:        parseFloat(ticker.PriceChange),
			PercentChange: parseFloat(ticker.PriceChangePercent),
			Volume:        parseFloat(ticker.QuoteVolume),
		}
	}
	return out
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0.0
	}
	return v
}
