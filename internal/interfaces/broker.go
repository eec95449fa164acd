package interfaces

import (
	"context"

	"fx-intel-bot/internal/types"
)

type Broker interface {
	AccountSummary(ctx context.Context) (types.AccountSnapshot, error)
	Pricing(ctx context.Context, instruments []string) (map[string]types.PriceQuote, error)
	RecentCandles(ctx context.Context, instrument string, n int) ([]types.Candle, error)
	PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error)
	OpenPositions(ctx context.Context) ([]types.PositionInfo, error)
}
