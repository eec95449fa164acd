package engine

import (
	"time"

	"fx-intel-bot/internal/ta"
	"fx-intel-bot/internal/types"
)

func calcIndicators(cs []types.Candle) types.Indicators {
	cl := make([]float64, len(cs))
	h := make([]float64, len(cs))
	l := make([]float64, len(cs))
	for i, c := range cs {
		cl[i] = c.Close
		h[i] = c.High
		l[i] = c.Low
	}
	inds := types.Indicators{SMA: map[int]float64{}, EMA: map[int]float64{}}
	for _, w := range []int{20, 50, 200} {
		inds.SMA[w] = ta.SMA(cl, w)
	}
	for _, w := range []int{12, 26} {
		inds.EMA[w] = ta.EMA(cl, w)
	}
	inds.RSI = ta.RSI(cl, 14)
	line, sig, hist := ta.MACD(cl, 12, 26, 9)
	inds.MACD.Line, inds.MACD.Signal, inds.MACD.Histogram = line, sig, hist
	m, u, lo := ta.Bollinger(cl, 20, 2)
	inds.BB.Middle, inds.BB.Upper, inds.BB.Lower = m, u, lo
	k, d := ta.Stochastic(h, l, cl, 14, 3)
	inds.Stoch.K, inds.Stoch.D = k, d
	inds.ATR = ta.ATR(h, l, cl, 14)
	inds.ROC = ta.ROC(cl, 10)
	return inds
}

// seriesVolatility is the stop-sizing volatility: std dev of recent closes
// with the live mid appended, matching the view the decider prices against.
func seriesVolatility(candles []types.Candle, quote types.PriceQuote) float64 {
	series := make([]float64, 0, len(candles)+1)
	for _, c := range candles {
		series = append(series, c.Close)
	}
	if quote.Mid > 0 {
		series = append(series, quote.Mid)
	}
	return ta.StdDev(series, 20)
}

func indicatorMap(inds types.Indicators) map[string]float64 {
	return map[string]float64{
		"RSI":     inds.RSI,
		"SMA20":   inds.SMA[20],
		"SMA50":   inds.SMA[50],
		"SMA200":  inds.SMA[200],
		"BB_MID":  inds.BB.Middle,
		"BB_UP":   inds.BB.Upper,
		"BB_LOW":  inds.BB.Lower,
		"ATR":     inds.ATR,
		"MACD":    inds.MACD.Line,
		"STOCH_K": inds.Stoch.K,
		"ROC":     inds.ROC,
	}
}

func midnightUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
