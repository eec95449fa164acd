package marketdata

import (
	"context"
	"time"

	"fx-intel-bot/internal/interfaces"
	"fx-intel-bot/internal/logger"
	"fx-intel-bot/internal/types"
)

// Collector assembles one market snapshot per cycle: FX bars from the
// broker plus best-effort crypto bars. Failures are isolated per
// instrument, a snapshot is always returned.
type Collector struct {
	broker      interfaces.Broker
	crypto      *BinanceClient
	instruments []string
}

func NewCollector(broker interfaces.Broker, crypto *BinanceClient, instruments []string) *Collector {
	return &Collector{
		broker:      broker,
		crypto:      crypto,
		instruments: instruments,
	}
}

// Snapshot collects the current bars. The FX percent change comes from the
// two most recent completed candles.
func (c *Collector) Snapshot(ctx context.Context) types.MarketSnapshot {
	snap := types.MarketSnapshot{
		Time:   time.Now().UTC(),
		FX:     make(map[string]types.InstrumentBar, len(c.instruments)),
		Crypto: map[string]types.InstrumentBar{},
	}

	for _, inst := range c.instruments {
		candles, err := c.broker.RecentCandles(ctx, inst, 2)
		if err != nil {
			logger.Warn(ctx, "FX bar fetch failed", "instrument", inst, "error", err.Error())
			continue
		}
		if len(candles) == 0 {
			continue
		}
		last := candles[len(candles)-1]
		bar := types.InstrumentBar{
			Instrument: inst,
			Price:      last.Close,
			Volume:     last.Vol,
		}
		if len(candles) >= 2 {
			prev := candles[len(candles)-2]
			if prev.Close != 0 {
				bar.Change = last.Close - prev.Close
				bar.PercentChange = bar.Change / prev.Close * 100.0
			}
		}
		snap.FX[inst] = bar
	}

	if c.crypto != nil && !c.crypto.Disabled() {
		for sym, bar := range c.crypto.Fetch(ctx) {
			snap.Crypto[sym] = bar
		}
	}

	return snap
}
