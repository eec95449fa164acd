package engine

// stopManager derives protective levels from realized volatility.
type stopManager struct {
	minDistance float64
}

func newStopManager() *stopManager {
	return &stopManager{minDistance: 0.001}
}

// distance is twice the recent volatility, floored so quiet markets still
// leave room for spread and noise.
func (sm *stopManager) distance(vol float64) float64 {
	d := 2 * vol
	if d < sm.minDistance {
		d = sm.minDistance
	}
	return d
}

// levels returns the stop and the 2:1 take-profit for an entry at price.
func (sm *stopManager) levels(side string, price, vol float64) (stop, target float64) {
	d := sm.distance(vol)
	if side == "SELL" {
		return price + d, price - 2*d
	}
	return price - d, price + 2*d
}
