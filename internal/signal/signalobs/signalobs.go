package signalobs

import (
	"context"

	"fx-intel-bot/internal/interfaces"
	"fx-intel-bot/internal/logger"
	"fx-intel-bot/internal/trace"
	"fx-intel-bot/internal/types"
)

// observableDecider wraps a Decider with observability (logging & tracing)
type observableDecider struct {
	decider interfaces.Decider
}

// Compile-time interface check
var _ interfaces.Decider = (*observableDecider)(nil)

// Wrap wraps a decider with observability middleware
func Wrap(decider interfaces.Decider) interfaces.Decider {
	return &observableDecider{
		decider: decider,
	}
}

// Decide makes a trading decision with observability
func (od *observableDecider) Decide(
	ctx context.Context,
	instrument string,
	candles []types.Candle,
	inds types.Indicators,
	mctx types.MarketContext,
) (types.Decision, error) {
	ctx, span := trace.StartSpan(ctx, "signal.Decide")
	defer span.End()

	logger.Debug(ctx, "Requesting trading decision",
		"instrument", instrument,
		"rsi", inds.RSI,
		"regime", mctx.Regime,
		"sentiment", mctx.Sentiment,
	)

	decision, err := od.decider.Decide(ctx, instrument, candles, inds, mctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to get trading decision", err,
			"instrument", instrument,
		)
		return types.Decision{}, err
	}

	logger.Info(ctx, "Trading decision received",
		"instrument", instrument,
		"action", decision.Action,
		"reason", decision.Reason,
		"confidence", decision.Confidence,
	)

	return decision, nil
}
