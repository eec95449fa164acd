package brokerobs

import (
	"context"

	"fx-intel-bot/internal/interfaces"
	"fx-intel-bot/internal/logger"
	"fx-intel-bot/internal/trace"
	"fx-intel-bot/internal/types"
)

// observableBroker wraps a Broker with observability (logging & tracing)
type observableBroker struct {
	broker interfaces.Broker
}

// Compile-time interface check
var _ interfaces.Broker = (*observableBroker)(nil)

// Wrap wraps a broker with observability middleware
func Wrap(broker interfaces.Broker) interfaces.Broker {
	return &observableBroker{
		broker: broker,
	}
}

func (ob *observableBroker) AccountSummary(ctx context.Context) (types.AccountSnapshot, error) {
	ctx, span := trace.StartSpan(ctx, "broker.AccountSummary")
	defer span.End()

	snap, err := ob.broker.AccountSummary(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to fetch account summary", err)
		return types.AccountSnapshot{}, err
	}

	logger.Debug(ctx, "Account summary fetched", "balance", snap.Balance)
	return snap, nil
}

func (ob *observableBroker) Pricing(ctx context.Context, instruments []string) (map[string]types.PriceQuote, error) {
	ctx, span := trace.StartSpan(ctx, "broker.Pricing")
	defer span.End()

	quotes, err := ob.broker.Pricing(ctx, instruments)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to fetch pricing", err, "instruments", instruments)
		return nil, err
	}

	logger.Debug(ctx, "Pricing fetched", "requested", len(instruments), "quoted", len(quotes))
	return quotes, nil
}

func (ob *observableBroker) RecentCandles(ctx context.Context, instrument string, n int) ([]types.Candle, error) {
	ctx, span := trace.StartSpan(ctx, "broker.RecentCandles")
	defer span.End()

	candles, err := ob.broker.RecentCandles(ctx, instrument, n)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to fetch candles", err, "instrument", instrument, "count", n)
		return nil, err
	}

	logger.Debug(ctx, "Candles fetched", "instrument", instrument, "count", len(candles))
	return candles, nil
}

func (ob *observableBroker) PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	ctx, span := trace.StartSpan(ctx, "broker.PlaceOrder")
	defer span.End()

	logger.Info(ctx, "Placing order",
		"instrument", req.Instrument,
		"side", req.Side,
		"units", req.Units,
		"tag", req.Tag,
	)

	resp, err := ob.broker.PlaceOrder(ctx, req)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to place order", err,
			"instrument", req.Instrument,
			"side", req.Side,
			"units", req.Units,
		)
		return types.OrderResp{}, err
	}

	logger.Info(ctx, "Order placed",
		"instrument", req.Instrument,
		"order_id", resp.OrderID,
		"status", resp.Status,
		"fill_price", resp.FillPrice,
	)
	return resp, nil
}

func (ob *observableBroker) OpenPositions(ctx context.Context) ([]types.PositionInfo, error) {
	ctx, span := trace.StartSpan(ctx, "broker.OpenPositions")
	defer span.End()

	ps, err := ob.broker.OpenPositions(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to fetch open positions", err)
		return nil, err
	}

	logger.Debug(ctx, "Open positions fetched", "count", len(ps))
	return ps, nil
}
