package signal

import (
	"context"
	"math"
	"testing"

	"fx-intel-bot/internal/types"
)

func almost(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestMomentumScoreSteps(t *testing.T) {
	cases := []struct {
		momentum, volatility, want float64
	}{
		{0.0025, 0.001, 0.8},   // norm 2.5
		{-0.0025, 0.001, -0.8}, // norm -2.5
		{0.0015, 0.001, 0.4},   // norm 1.5
		{-0.0015, 0.001, -0.4},
		{0.0005, 0.001, 0.1}, // norm 0.5, linear region
		{0.001, 0, 0},        // no volatility, no score
	}
	for _, tc := range cases {
		got := momentumScore(view{momentum: tc.momentum, volatility: tc.volatility})
		if !almost(got, tc.want) {
			t.Errorf("momentum=%f vol=%f: expected %f, got %f", tc.momentum, tc.volatility, tc.want, got)
		}
	}
}

func TestBreakoutLevels(t *testing.T) {
	// Deviation 5% against 1% volatility clears the 3x band.
	if got := breakout(view{mid: 1.05, sma20: 1.0, volatility: 0.01}); !almost(got, 0.6) {
		t.Errorf("Expected strong breakout 0.6, got %f", got)
	}
	// Deviation 2.5% clears only the 2x band, downside sign.
	if got := breakout(view{mid: 0.975, sma20: 1.0, volatility: 0.01}); !almost(got, -0.3) {
		t.Errorf("Expected weak downside breakout -0.3, got %f", got)
	}
	if got := breakout(view{mid: 1.001, sma20: 1.0, volatility: 0.01}); got != 0 {
		t.Errorf("Expected no breakout, got %f", got)
	}
	if got := breakout(view{mid: 0, sma20: 1.0, volatility: 0.01}); got != 0 {
		t.Errorf("Expected zero on missing price, got %f", got)
	}
}

func TestVolumeConfirmationFloor(t *testing.T) {
	if got := volumeConfirmation(0, 0.0002); !almost(got, 1.0) {
		t.Errorf("Expected 1.0 on zero spread, got %f", got)
	}
	if got := volumeConfirmation(0.0002, 0.0002); !almost(got, 0.5) {
		t.Errorf("Expected floor 0.5 at max spread, got %f", got)
	}
	if got := volumeConfirmation(0.0004, 0.0002); !almost(got, 0.5) {
		t.Errorf("Expected floor 0.5 beyond max spread, got %f", got)
	}
	if got := volumeConfirmation(0.00005, 0.0002); !almost(got, 0.75) {
		t.Errorf("Expected 0.75, got %f", got)
	}
}

func TestRegimeMultiplier(t *testing.T) {
	cases := map[string]float64{
		types.RegimeTrending: 1.3,
		types.RegimeBreakout: 1.5,
		types.RegimeVolatile: 0.7,
		types.RegimeReversal: 1.2,
		types.RegimeNormal:   1.0,
		"":                   1.0,
	}
	for regime, want := range cases {
		if got := regimeMultiplier(regime); got != want {
			t.Errorf("regime %q: expected %f, got %f", regime, want, got)
		}
	}
}

func TestVolatilityFactor(t *testing.T) {
	if got := volatilityFactor(0.005, 0.002); got != 0.5 {
		t.Errorf("Expected 0.5 in extreme volatility, got %f", got)
	}
	if got := volatilityFactor(0.003, 0.002); got != 0.7 {
		t.Errorf("Expected 0.7 in elevated volatility, got %f", got)
	}
	if got := volatilityFactor(0.001, 0.002); got != 1.2 {
		t.Errorf("Expected boost 1.2 in calm market, got %f", got)
	}
}

func TestSentimentInfluence(t *testing.T) {
	if got := sentimentInfluence(0.8, trendUp); !almost(got, 0.27) {
		t.Errorf("Expected aligned bullish 0.27, got %f", got)
	}
	if got := sentimentInfluence(0.8, trendSideways); !almost(got, 0.18) {
		t.Errorf("Expected unamplified 0.18, got %f", got)
	}
	if got := sentimentInfluence(0.2, trendDown); !almost(got, -0.27) {
		t.Errorf("Expected aligned bearish -0.27, got %f", got)
	}
	if got := sentimentInfluence(0.55, trendUp); !almost(got, 0.03) {
		t.Errorf("Expected mild 0.03 without amplification, got %f", got)
	}
	if got := sentimentInfluence(0.5, trendUp); got != 0 {
		t.Errorf("Expected neutral zero, got %f", got)
	}
}

func TestNewsImpact(t *testing.T) {
	if got := newsImpact(types.TrendImproving, 0.7); got != 0.3 {
		t.Errorf("Expected 0.3, got %f", got)
	}
	if got := newsImpact(types.TrendDeclining, 0.3); got != -0.3 {
		t.Errorf("Expected -0.3, got %f", got)
	}
	if got := newsImpact(types.TrendImproving, 0.5); got != 0 {
		t.Errorf("Expected 0 when sentiment disagrees, got %f", got)
	}
	if got := newsImpact(types.TrendStable, 0.9); got != 0 {
		t.Errorf("Expected 0 on stable trend, got %f", got)
	}
	if got := newsImpact(types.TrendInsufficientData, 0.9); got != 0 {
		t.Errorf("Expected 0 without trend data, got %f", got)
	}
}

func TestCorrelationPenalty(t *testing.T) {
	r := NewRules()

	if got := r.correlationPenalty("AUD_USD", []string{"EUR_USD", "GBP_USD", "NZD_USD"}); !almost(got, 0.45) {
		t.Errorf("Expected 0.45 for three correlated, got %f", got)
	}
	if got := r.correlationPenalty("EUR_USD", []string{"GBP_USD", "AUD_USD"}); !almost(got, 0.30) {
		t.Errorf("Expected 0.30 for two correlated, got %f", got)
	}
	if got := r.correlationPenalty("USD_JPY", []string{"EUR_USD", "GBP_USD"}); got != 0 {
		t.Errorf("Expected 0 for unrelated open positions, got %f", got)
	}
	if got := r.correlationPenalty("EUR_USD", nil); got != 0 {
		t.Errorf("Expected 0 with no open positions, got %f", got)
	}
}

func TestConfidenceAdjustments(t *testing.T) {
	spec := types.DefaultInstrumentSpecs()["EUR_USD"]

	// Calm market boost only.
	got := confidence(0.5, 0.0004, spec.VolThreshold, types.MarketContext{})
	if !almost(got, 0.5*1.15) {
		t.Errorf("Expected 0.575, got %f", got)
	}
	// Win streak compounds with calm market.
	got = confidence(0.5, 0.0004, spec.VolThreshold, types.MarketContext{WinStreak: 3})
	if !almost(got, 0.5*1.1*1.15) {
		t.Errorf("Expected 0.6325, got %f", got)
	}
	// Loss streak dampens.
	got = confidence(0.5, 0.0004, spec.VolThreshold, types.MarketContext{LossStreak: 2})
	if !almost(got, 0.5*0.9*1.15) {
		t.Errorf("Expected 0.5175, got %f", got)
	}
	// Base is capped at 0.95 before adjustments, result at 0.98.
	got = confidence(2.0, 0.0004, spec.VolThreshold, types.MarketContext{WinStreak: 5})
	if got != 0.98 {
		t.Errorf("Expected cap 0.98, got %f", got)
	}
	// Elevated volatility gets no boost.
	got = confidence(0.5, 0.002, spec.VolThreshold, types.MarketContext{})
	if got != 0.5 {
		t.Errorf("Expected plain 0.5, got %f", got)
	}
}

func TestFinalSignalThresholds(t *testing.T) {
	cases := []struct {
		total, conf float64
		regime      string
		wantAction  string
	}{
		{0.5, 0.7, types.RegimeNormal, "BUY"},
		{0.4, 0.7, types.RegimeNormal, "HOLD"},
		{0.4, 0.7, types.RegimeTrending, "BUY"},
		{-0.5, 0.7, types.RegimeNormal, "SELL"},
		{-0.4, 0.7, types.RegimeTrending, "SELL"},
		{0.4, 0.85, types.RegimeNormal, "BUY"},    // threshold eased to 0.36
		{0.5, 0.5, types.RegimeNormal, "HOLD"},    // threshold raised to 0.54
		{0.37, 0.5, types.RegimeTrending, "HOLD"}, // raised to 0.42
	}
	for _, tc := range cases {
		action, conf := finalSignal(tc.total, tc.conf, tc.regime)
		if action != tc.wantAction {
			t.Errorf("total=%f conf=%f regime=%s: expected %s, got %s",
				tc.total, tc.conf, tc.regime, tc.wantAction, action)
		}
		if action == "HOLD" && conf != 0.5 {
			t.Errorf("Expected HOLD confidence 0.5, got %f", conf)
		}
		if action != "HOLD" && conf != tc.conf {
			t.Errorf("Expected confidence passthrough %f, got %f", tc.conf, conf)
		}
	}
}

func TestDecideBuyOnBreakoutWithTailwinds(t *testing.T) {
	r := NewRules()
	quote := types.PriceQuote{Instrument: "EUR_USD", Mid: 1.003, Spread: 0.00002}
	mctx := types.MarketContext{
		Sentiment: 0.9,
		Trend:     types.TrendImproving,
		Regime:    types.RegimeTrending,
		Quote:     quote,
		WinStreak: 3,
	}

	d, err := r.Decide(context.Background(), "EUR_USD", flatCandles(59, 1.0), types.Indicators{}, mctx)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if d.Action != "BUY" {
		t.Fatalf("Expected BUY, got %s (%s)", d.Action, d.Reason)
	}
	if d.Confidence < 0.5 || d.Confidence > 0.65 {
		t.Errorf("Expected confidence near 0.59, got %f", d.Confidence)
	}
}

func TestDecideSellMirrorsBuy(t *testing.T) {
	r := NewRules()
	quote := types.PriceQuote{Instrument: "EUR_USD", Mid: 0.997, Spread: 0.00002}
	mctx := types.MarketContext{
		Sentiment: 0.1,
		Trend:     types.TrendDeclining,
		Regime:    types.RegimeTrending,
		Quote:     quote,
		WinStreak: 3,
	}

	d, err := r.Decide(context.Background(), "EUR_USD", flatCandles(59, 1.0), types.Indicators{}, mctx)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if d.Action != "SELL" {
		t.Fatalf("Expected SELL, got %s (%s)", d.Action, d.Reason)
	}
}

func TestDecideHoldOnQuietMarket(t *testing.T) {
	r := NewRules()
	quote := types.PriceQuote{Instrument: "EUR_USD", Mid: 1.0, Spread: 0.0001}
	mctx := types.MarketContext{
		Sentiment: 0.5,
		Trend:     types.TrendStable,
		Regime:    types.RegimeNormal,
		Quote:     quote,
	}

	d, err := r.Decide(context.Background(), "EUR_USD", flatCandles(60, 1.0), types.Indicators{}, mctx)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if d.Action != "HOLD" {
		t.Fatalf("Expected HOLD, got %s (%s)", d.Action, d.Reason)
	}
	if d.Confidence != 0.5 {
		t.Errorf("Expected neutral confidence 0.5, got %f", d.Confidence)
	}
}

func TestDecideCorrelationSuppressesSignal(t *testing.T) {
	r := NewRules()
	quote := types.PriceQuote{Instrument: "EUR_USD", Mid: 1.003, Spread: 0.00002}
	mctx := types.MarketContext{
		Sentiment:       0.9,
		Trend:           types.TrendImproving,
		Regime:          types.RegimeTrending,
		Quote:           quote,
		WinStreak:       3,
		OpenInstruments: []string{"GBP_USD", "AUD_USD"},
	}

	d, err := r.Decide(context.Background(), "EUR_USD", flatCandles(59, 1.0), types.Indicators{}, mctx)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if d.Action != "HOLD" {
		t.Errorf("Expected correlation to suppress the trade, got %s (%s)", d.Action, d.Reason)
	}
}

func TestDecideUnknownInstrumentFallsBack(t *testing.T) {
	r := NewRules()
	d, err := r.Decide(context.Background(), "EUR_SEK", flatCandles(60, 11.0), types.Indicators{},
		types.MarketContext{Sentiment: 0.5, Regime: types.RegimeNormal, Quote: types.PriceQuote{Mid: 11.0, Spread: 0.0005}})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if d.Action != "HOLD" {
		t.Errorf("Expected HOLD for unknown instrument on flat data, got %s", d.Action)
	}
}
