package signal

import (
	"fx-intel-bot/internal/ta"
	"fx-intel-bot/internal/types"
)

const (
	trendUp       = "UP"
	trendDown     = "DOWN"
	trendSideways = "SIDEWAYS"
)

// view is the derived per-instrument market state the scoring rules run on.
// It is built from the recent mid-price series: candle closes with the live
// quote appended as the freshest point.
type view struct {
	mid        float64
	spread     float64
	sma20      float64
	sma50      float64
	volatility float64
	momentum   float64
	trend      string
}

func buildView(candles []types.Candle, quote types.PriceQuote) view {
	series := make([]float64, 0, len(candles)+1)
	for _, c := range candles {
		series = append(series, c.Close)
	}
	if quote.Mid > 0 {
		series = append(series, quote.Mid)
	}

	v := view{spread: quote.Spread, trend: trendSideways}
	if len(series) == 0 {
		return v
	}
	v.mid = series[len(series)-1]

	// Below 20 points there is nothing to derive; flat view keeps every
	// downstream score at zero.
	if len(series) < 20 {
		v.sma20 = v.mid
		v.sma50 = v.mid
		return v
	}

	v.sma20 = ta.SMA(series, 20)
	v.sma50 = v.sma20
	if len(series) >= 50 {
		v.sma50 = ta.SMA(series, 50)
	}
	v.volatility = ta.StdDev(series, 20)
	v.momentum = ta.Momentum(series, 10)

	switch {
	case v.mid > v.sma20 && v.sma20 > v.sma50:
		v.trend = trendUp
	case v.mid < v.sma20 && v.sma20 < v.sma50:
		v.trend = trendDown
	}

	return v
}
