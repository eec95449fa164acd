package signal

import (
	"context"
	"fmt"
	"math"

	"fx-intel-bot/internal/interfaces"
	"fx-intel-bot/internal/types"
)

// Rules is the deterministic decider: a weighted blend of technical,
// sentiment, multi-timeframe and news scores with regime-aware thresholds.
type Rules struct {
	specs map[string]types.InstrumentSpec
	corr  map[string][]string
}

var _ interfaces.Decider = (*Rules)(nil)

func NewRules() *Rules {
	return &Rules{
		specs: types.DefaultInstrumentSpecs(),
		corr:  types.CorrelatedPairs(),
	}
}

func (r *Rules) specFor(instrument string) types.InstrumentSpec {
	if s, ok := r.specs[instrument]; ok {
		return s
	}
	return types.InstrumentSpec{MaxSpread: 0.001, VolThreshold: 0.002, Precision: 5, PipSize: 0.0001, UnitScale: 80}
}

func (r *Rules) Decide(ctx context.Context, instrument string, candles []types.Candle, inds types.Indicators, mctx types.MarketContext) (types.Decision, error) {
	v := buildView(candles, mctx.Quote)
	spec := r.specFor(instrument)

	ts := trendStrength(v)
	tech := 0.0
	if v.trend == trendUp && ts > 0.6 {
		tech += 0.4 * ts
	} else if v.trend == trendDown && ts > 0.6 {
		tech -= 0.4 * ts
	}
	tech += momentumScore(v) * 0.3
	tech += breakout(v) * 0.25
	tech *= volumeConfirmation(v.spread, spec.MaxSpread)
	tech *= regimeMultiplier(mctx.Regime)
	tech *= volatilityFactor(v.volatility, spec.VolThreshold)

	sent := sentimentInfluence(mctx.Sentiment, v.trend)
	mtf := multiTimeframeScore(v)
	news := newsImpact(mctx.Trend, mctx.Sentiment)
	corr := r.correlationPenalty(instrument, mctx.OpenInstruments)

	total := (tech*0.45 + sent*0.25 + mtf*0.2 + news*0.1) * (1 - corr)
	if mctx.WinStreak >= 3 {
		total *= 1.2
	}

	conf := confidence(total, v.volatility, spec.VolThreshold, mctx)
	action, conf := finalSignal(total, conf, mctx.Regime)

	return types.Decision{
		Action:     action,
		Confidence: conf,
		Reason: fmt.Sprintf("score=%.3f tech=%.3f sent=%.3f mtf=%.3f news=%.2f corr=%.2f trend=%s regime=%s",
			total, tech, sent, mtf, news, corr, v.trend, mctx.Regime),
	}, nil
}

// trendStrength measures how far price sits from the slow average,
// boosted when the averages are stacked in order.
func trendStrength(v view) float64 {
	if v.sma20 == 0 || v.sma50 == 0 || v.mid == 0 {
		return 0
	}
	ts := math.Abs((v.mid - v.sma50) / v.sma50)
	if (v.mid > v.sma20 && v.sma20 > v.sma50) || (v.mid < v.sma20 && v.sma20 < v.sma50) {
		ts *= 1.5
	}
	return math.Min(ts, 1.0)
}

// momentumScore normalizes momentum by volatility and steps it.
func momentumScore(v view) float64 {
	if v.volatility <= 0 {
		return 0
	}
	norm := v.momentum / v.volatility
	switch {
	case math.Abs(norm) > 2.0:
		return sign(norm) * 0.8
	case math.Abs(norm) > 1.0:
		return sign(norm) * 0.4
	default:
		return norm * 0.2
	}
}

// breakout fires when price deviates from the fast average by a multiple
// of recent volatility.
func breakout(v view) float64 {
	if v.mid == 0 || v.sma20 == 0 {
		return 0
	}
	deviation := math.Abs(v.mid-v.sma20) / v.sma20
	switch {
	case deviation > v.volatility*3:
		return sign(v.mid-v.sma20) * 0.6
	case deviation > v.volatility*2:
		return sign(v.mid-v.sma20) * 0.3
	default:
		return 0
	}
}

// volumeConfirmation uses spread as a liquidity proxy: tight spread keeps
// the signal, wide spread dampens it, floor 0.5.
func volumeConfirmation(spread, maxSpread float64) float64 {
	if maxSpread <= 0 {
		return 1.0
	}
	return math.Max(0.5, 1.0-spread/maxSpread)
}

func regimeMultiplier(regime string) float64 {
	switch regime {
	case types.RegimeTrending:
		return 1.3
	case types.RegimeBreakout:
		return 1.5
	case types.RegimeVolatile:
		return 0.7
	case types.RegimeReversal:
		return 1.2
	default:
		return 1.0
	}
}

func volatilityFactor(vol, threshold float64) float64 {
	switch {
	case vol > threshold*2:
		return 0.5
	case vol > threshold:
		return 0.7
	default:
		return 1.2
	}
}

// sentimentInfluence converts [0,1] sentiment to a signed influence,
// amplified when it agrees with the technical trend.
func sentimentInfluence(sentiment float64, trend string) float64 {
	influence := (sentiment - 0.5) * 0.6
	if (sentiment > 0.6 && trend == trendUp) || (sentiment < 0.4 && trend == trendDown) {
		influence *= 1.5
	}
	return influence
}

func multiTimeframeScore(v view) float64 {
	short := v.momentum * 2
	medium := 0.0
	if v.mid != 0 {
		medium = (v.sma20 - v.sma50) / v.mid
	}
	long := 0.0
	switch v.trend {
	case trendUp:
		long = 0.3
	case trendDown:
		long = -0.3
	}
	return short*0.5 + medium*0.3 + long*0.2
}

func newsImpact(trend types.Trend, sentiment float64) float64 {
	switch {
	case trend == types.TrendImproving && sentiment > 0.6:
		return 0.3
	case trend == types.TrendDeclining && sentiment < 0.4:
		return -0.3
	default:
		return 0
	}
}

// correlationPenalty discounts the signal for every open position in a
// correlated pair, capped at half.
func (r *Rules) correlationPenalty(instrument string, open []string) float64 {
	held := make(map[string]bool, len(open))
	for _, inst := range open {
		held[inst] = true
	}
	penalty := 0.0
	for _, related := range r.corr[instrument] {
		if held[related] {
			penalty += 0.15
		}
	}
	return math.Min(penalty, 0.5)
}

func confidence(total, vol, volThreshold float64, mctx types.MarketContext) float64 {
	c := math.Min(math.Abs(total), 0.95)
	if mctx.WinStreak >= 3 {
		c *= 1.1
	} else if mctx.LossStreak >= 2 {
		c *= 0.9
	}
	if vol < volThreshold {
		c *= 1.15
	}
	return math.Min(c, 0.98)
}

func finalSignal(total, conf float64, regime string) (string, float64) {
	threshold := 0.45
	if regime == types.RegimeTrending || regime == types.RegimeBreakout {
		threshold = 0.35
	}
	if conf > 0.8 {
		threshold *= 0.8
	} else if conf < 0.6 {
		threshold *= 1.2
	}

	switch {
	case total > threshold:
		return "BUY", conf
	case total < -threshold:
		return "SELL", conf
	default:
		return "HOLD", 0.5
	}
}

func sign(x float64) float64 {
	if x > 0 {
		return 1
	}
	if x < 0 {
		return -1
	}
	return 0
}
