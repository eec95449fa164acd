package ta

import "math"

func SMA(closes []float64, n int) float64 {
	if len(closes) < n || n <= 0 {
		return math.NaN()
	}
	sum := 0.0
	for i := len(closes) - n; i < len(closes); i++ {
		sum += closes[i]
	}
	return sum / float64(n)
}

func EMA(closes []float64, n int) float64 {
	s := emaSeries(closes, n)
	if s == nil {
		return math.NaN()
	}
	return s[len(s)-1]
}

// emaSeries returns the EMA over the whole series, seeded with the SMA of
// the first n values. Indices before n-1 are NaN.
func emaSeries(vals []float64, n int) []float64 {
	if len(vals) < n || n <= 0 {
		return nil
	}
	out := make([]float64, len(vals))
	seed := 0.0
	for i := 0; i < n; i++ {
		seed += vals[i]
		if i < n-1 {
			out[i] = math.NaN()
		}
	}
	out[n-1] = seed / float64(n)
	k := 2.0 / float64(n+1)
	for i := n; i < len(vals); i++ {
		out[i] = vals[i]*k + out[i-1]*(1.0-k)
	}
	return out
}

func RSI(closes []float64, period int) float64 {
	if len(closes) < period+1 || period <= 0 {
		return math.NaN()
	}
	gain, loss := 0.0, 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	if loss == 0 {
		return 100.0
	}
	rs := (gain / float64(period)) / (loss / float64(period))
	return 100.0 - (100.0 / (1.0 + rs))
}

func StdDev(vals []float64, n int) float64 {
	if len(vals) < n || n <= 0 {
		return math.NaN()
	}
	m := SMA(vals, n)
	s := 0.0
	for i := len(vals) - n; i < len(vals); i++ {
		d := vals[i] - m
		s += d * d
	}
	return math.Sqrt(s / float64(n))
}

func Bollinger(closes []float64, n int, k float64) (mid, up, low float64) {
	mid = SMA(closes, n)
	sd := StdDev(closes, n)
	up = mid + k*sd
	low = mid - k*sd
	return
}

func MACD(closes []float64, fast, slow, signal int) (line, sig, hist float64) {
	if fast <= 0 || slow <= fast || signal <= 0 || len(closes) < slow+signal {
		return math.NaN(), math.NaN(), math.NaN()
	}
	fastS := emaSeries(closes, fast)
	slowS := emaSeries(closes, slow)
	diff := make([]float64, 0, len(closes)-slow+1)
	for i := slow - 1; i < len(closes); i++ {
		diff = append(diff, fastS[i]-slowS[i])
	}
	sigS := emaSeries(diff, signal)
	if sigS == nil {
		return math.NaN(), math.NaN(), math.NaN()
	}
	line = diff[len(diff)-1]
	sig = sigS[len(sigS)-1]
	hist = line - sig
	return
}

func Stochastic(highs, lows, closes []float64, kPeriod, dPeriod int) (k, d float64) {
	if kPeriod <= 0 || dPeriod <= 0 ||
		len(highs) != len(lows) || len(lows) != len(closes) ||
		len(closes) < kPeriod+dPeriod-1 {
		return math.NaN(), math.NaN()
	}
	ks := make([]float64, 0, dPeriod)
	for j := len(closes) - dPeriod; j < len(closes); j++ {
		hh := math.Inf(-1)
		ll := math.Inf(1)
		for i := j - kPeriod + 1; i <= j; i++ {
			hh = math.Max(hh, highs[i])
			ll = math.Min(ll, lows[i])
		}
		if hh == ll {
			ks = append(ks, 50.0)
		} else {
			ks = append(ks, 100.0*(closes[j]-ll)/(hh-ll))
		}
	}
	k = ks[len(ks)-1]
	sum := 0.0
	for _, v := range ks {
		sum += v
	}
	d = sum / float64(dPeriod)
	return
}

func ATR(highs, lows, closes []float64, period int) float64 {
	if len(highs) != len(lows) || len(lows) != len(closes) {
		return math.NaN()
	}
	n := period
	if len(closes) < n+1 {
		return math.NaN()
	}
	trs := make([]float64, 0, n)
	for i := len(closes) - n; i < len(closes); i++ {
		tr1 := highs[i] - lows[i]
		tr2 := math.Abs(highs[i] - closes[i-1])
		tr3 := math.Abs(lows[i] - closes[i-1])
		tr := math.Max(tr1, math.Max(tr2, tr3))
		trs = append(trs, tr)
	}
	sum := 0.0
	for _, v := range trs {
		sum += v
	}
	return sum / float64(n)
}

// Momentum is the fractional change from the value n slots back counting
// from the end, matching negative-index lookback.
func Momentum(closes []float64, n int) float64 {
	if n <= 1 || len(closes) < n {
		return math.NaN()
	}
	prev := closes[len(closes)-n]
	if prev == 0 {
		return math.NaN()
	}
	return (closes[len(closes)-1] - prev) / prev
}

func ROC(closes []float64, n int) float64 {
	m := Momentum(closes, n)
	if math.IsNaN(m) {
		return math.NaN()
	}
	return m * 100.0
}
