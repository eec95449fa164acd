package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"fx-intel-bot/internal/interfaces"
	"fx-intel-bot/internal/logger"
	"fx-intel-bot/internal/store"
	"fx-intel-bot/internal/tradelog"
	"fx-intel-bot/internal/types"
)

// orderPlan is everything the executor needs to place and record one entry.
type orderPlan struct {
	instrument string
	decision   types.Decision
	units      int
	price      float64
	stopLoss   float64
	takeProfit float64
	sentiment  float64
	regime     string
	spec       types.InstrumentSpec
}

// orderExecutor places orders and fans the result out to the journal, the
// history store and the notifier. Only the broker call can fail a trade;
// everything downstream is best effort.
type orderExecutor struct {
	brk      interfaces.Broker
	history  *store.History
	notifier interfaces.Notifier
}

func newOrderExecutor(brk interfaces.Broker, history *store.History, notifier interfaces.Notifier) *orderExecutor {
	return &orderExecutor{brk: brk, history: history, notifier: notifier}
}

func (oe *orderExecutor) execute(ctx context.Context, plan orderPlan) (types.OrderResp, error) {
	req := types.OrderReq{
		Instrument: plan.instrument,
		Side:       plan.decision.Action,
		Units:      plan.units,
		StopLoss:   plan.stopLoss,
		TakeProfit: plan.takeProfit,
		Tag:        "SIGNAL",
	}

	resp, err := oe.brk.PlaceOrder(ctx, req)
	if err != nil {
		logger.ErrorWithErr(ctx, "Order placement failed", err,
			"instrument", plan.instrument, "side", req.Side, "units", plan.units)
		return types.OrderResp{}, err
	}
	if resp.Status == "CANCELLED" {
		logger.Warn(ctx, "Order cancelled by venue",
			"instrument", plan.instrument, "side", req.Side, "units", plan.units, "message", resp.Message)
		return resp, nil
	}

	price := resp.FillPrice
	if price == 0 {
		price = plan.price
	}

	logger.Trade(ctx, plan.instrument, req.Side, plan.units, price, resp.OrderID,
		"stop_loss", plan.stopLoss,
		"take_profit", plan.takeProfit,
		"confidence", plan.decision.Confidence,
		"regime", plan.regime,
	)

	if err := tradelog.Append(tradelog.Entry{
		Instrument: plan.instrument,
		Side:       req.Side,
		Units:      plan.units,
		Price:      price,
		StopLoss:   plan.stopLoss,
		TakeProfit: plan.takeProfit,
		OrderID:    resp.OrderID,
		Reason:     plan.decision.Reason,
		Confidence: plan.decision.Confidence,
	}); err != nil {
		logger.Warn(ctx, "Trade journal write failed", "error", err.Error())
	}

	oe.persist(ctx, plan, resp, price)
	oe.alert(ctx, plan, price)

	return resp, nil
}

func (oe *orderExecutor) persist(ctx context.Context, plan orderPlan, resp types.OrderResp, price float64) {
	if oe.history == nil {
		return
	}
	meta, _ := json.Marshal(struct {
		OrderID    string  `json:"order_id"`
		StopLoss   float64 `json:"stop_loss"`
		TakeProfit float64 `json:"take_profit"`
		Regime     string  `json:"regime"`
	}{resp.OrderID, plan.stopLoss, plan.takeProfit, plan.regime})

	err := oe.history.SaveTrade(ctx, store.TradeRecord{
		Instrument: plan.instrument,
		Side:       plan.decision.Action,
		Units:      plan.units,
		Price:      price,
		Time:       time.Now().UTC(),
		Confidence: plan.decision.Confidence,
		Sentiment:  plan.sentiment,
		Status:     "completed",
		Metadata:   string(meta),
	})
	if err != nil {
		logger.Warn(ctx, "Trade not persisted", "error", err.Error(), "instrument", plan.instrument)
	}
}

func (oe *orderExecutor) alert(ctx context.Context, plan orderPlan, price float64) {
	if oe.notifier == nil {
		return
	}
	if err := oe.notifier.SendMessage(ctx, tradeAlert(plan, price)); err != nil {
		logger.Warn(ctx, "Trade alert not delivered", "error", err.Error())
	}
}

func tradeAlert(plan orderPlan, price float64) string {
	emoji := "🟢"
	if plan.decision.Action == "SELL" {
		emoji = "🔴"
	}
	fp := func(v float64) string {
		return strconv.FormatFloat(v, 'f', plan.spec.Precision, 64)
	}
	return fmt.Sprintf("%s <b>%s %s</b>\nUnits: %d\nPrice: %s\nStop: %s | Target: %s\nConfidence: %.0f%%",
		emoji, plan.decision.Action, plan.instrument, plan.units,
		fp(price), fp(plan.stopLoss), fp(plan.takeProfit), plan.decision.Confidence*100)
}
