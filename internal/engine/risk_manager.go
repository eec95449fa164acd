package engine

import (
	"context"
	"math"
	"time"

	"fx-intel-bot/internal/interfaces"
	"fx-intel-bot/internal/logger"
	"fx-intel-bot/internal/store"
	"fx-intel-bot/internal/types"
)

const (
	accountRefreshEvery = 15 * time.Second
	balanceHistoryCap   = 100
	regimeWindow        = 10
)

// riskManager owns account state: balance, the daily trade budget, win and
// loss streaks derived from balance deltas, and the balance-history regime
// detector. All methods are called from the engine's step goroutine only.
type riskManager struct {
	cfg     *store.Config
	brk     interfaces.Broker
	history *store.History

	balance         float64
	dayStart        time.Time
	dayStartBalance float64
	tradesToday     int
	winStreak       int
	lossStreak      int
	balanceHistory  []float64
	lastRefresh     time.Time
}

func newRiskManager(cfg *store.Config, brk interfaces.Broker, history *store.History) *riskManager {
	return &riskManager{
		cfg:      cfg,
		brk:      brk,
		history:  history,
		dayStart: midnightUTC(time.Now()),
	}
}

// refresh pulls the account summary at most once per window. A fetch
// failure keeps the last known balance; trading continues on stale state.
func (rm *riskManager) refresh(ctx context.Context) {
	now := time.Now()
	if now.Sub(rm.lastRefresh) < accountRefreshEvery {
		return
	}
	rm.lastRefresh = now
	rm.rollover(now)

	snap, err := rm.brk.AccountSummary(ctx)
	if err != nil {
		logger.Warn(ctx, "Account refresh failed, keeping last balance",
			"error", err.Error(), "balance", rm.balance)
		return
	}
	rm.observe(ctx, snap.Balance)
}

// observe folds a fresh balance into streaks and the regime history.
func (rm *riskManager) observe(ctx context.Context, balance float64) {
	prev := rm.balance
	rm.balance = balance
	if rm.dayStartBalance == 0 {
		rm.dayStartBalance = balance
	}

	if prev > 0 {
		switch {
		case balance > prev:
			rm.winStreak++
			rm.lossStreak = 0
			logger.Debug(ctx, "Balance up", "balance", balance, "delta", balance-prev, "win_streak", rm.winStreak)
		case balance < prev:
			rm.lossStreak++
			rm.winStreak = 0
			logger.Debug(ctx, "Balance down", "balance", balance, "delta", balance-prev, "loss_streak", rm.lossStreak)
		}
	}

	rm.balanceHistory = append(rm.balanceHistory, balance)
	if len(rm.balanceHistory) > balanceHistoryCap {
		rm.balanceHistory = rm.balanceHistory[len(rm.balanceHistory)-balanceHistoryCap:]
	}

	if rm.history != nil {
		if err := rm.history.SaveBalance(ctx, balance, rm.tradesToday, balance-rm.dayStartBalance); err != nil {
			logger.Warn(ctx, "Balance snapshot not persisted", "error", err.Error())
		}
	}
}

func (rm *riskManager) rollover(now time.Time) {
	day := midnightUTC(now)
	if day.Equal(rm.dayStart) {
		return
	}
	rm.dayStart = day
	rm.tradesToday = 0
	rm.dayStartBalance = rm.balance
}

// regime classifies recent balance turbulence. Small average moves read as
// a trending account, large ones as volatile conditions calling for
// smaller size.
func (rm *riskManager) regime() string {
	h := rm.balanceHistory
	if len(h) < regimeWindow {
		return types.RegimeNormal
	}
	recent := h[len(h)-regimeWindow:]
	var sum float64
	n := 0
	for i := 1; i < len(recent); i++ {
		if recent[i-1] == 0 {
			continue
		}
		sum += math.Abs(recent[i]-recent[i-1]) / recent[i-1]
		n++
	}
	if n == 0 {
		return types.RegimeNormal
	}
	avg := sum / float64(n)
	switch {
	case avg > 0.02:
		return types.RegimeVolatile
	case avg < 0.005:
		return types.RegimeTrending
	default:
		return types.RegimeNormal
	}
}

// allowTrade enforces the daily caps and the open-position ceiling.
func (rm *riskManager) allowTrade(openPositions int) (bool, string) {
	if rm.tradesToday >= rm.cfg.Risk.MaxDailyTrades {
		return false, "daily trade cap reached"
	}
	perTrade := rm.cfg.Risk.PerTradeRiskPct / 100
	maxDaily := rm.cfg.Risk.MaxDailyRiskPct / 100
	if float64(rm.tradesToday)*rm.balance*perTrade >= rm.balance*maxDaily {
		return false, "daily risk budget exhausted"
	}
	if openPositions >= rm.cfg.Risk.MaxOpenPositions {
		return false, "max open positions reached"
	}
	return true, ""
}

// positionSize converts the per-trade risk budget into units, scaled by
// confidence and regime, capped at min(50000, 10% of balance) and floored
// at the venue's practical minimum.
func (rm *riskManager) positionSize(confidence float64, regime string, spec types.InstrumentSpec) int {
	if rm.balance <= 0 {
		return 0
	}
	riskAmount := rm.balance * rm.cfg.Risk.PerTradeRiskPct / 100
	adjusted := riskAmount * (confidence * 2) * sizeMultiplier(regime)
	units := int(adjusted * float64(spec.UnitScale))

	maxUnits := int(rm.balance * 0.1)
	if maxUnits > 50000 {
		maxUnits = 50000
	}
	if units > maxUnits {
		units = maxUnits
	}
	if units <= 0 {
		return 0
	}
	if units < 1000 {
		units = 1000
	}
	return units
}

func sizeMultiplier(regime string) float64 {
	switch regime {
	case types.RegimeVolatile:
		return 0.5
	case types.RegimeTrending:
		return 1.5
	default:
		return 1.0
	}
}

func (rm *riskManager) recordTrade() {
	rm.tradesToday++
}
