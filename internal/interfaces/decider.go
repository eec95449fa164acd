package interfaces

import (
	"context"

	"fx-intel-bot/internal/types"
)

type Decider interface {
	Decide(ctx context.Context, instrument string, candles []types.Candle, inds types.Indicators, mctx types.MarketContext) (types.Decision, error)
}
