package engine

import (
	"context"
	"errors"
	"fmt"

	"fx-intel-bot/internal/interfaces"
	"fx-intel-bot/internal/logger"
	"fx-intel-bot/internal/store"
	"fx-intel-bot/internal/tradelog"
	"fx-intel-bot/internal/types"
)

// minCandles is the floor below which indicators are too unstable to act.
const minCandles = 50

type Engine struct {
	cfg     *store.Config
	brk     interfaces.Broker
	decider interfaces.Decider
	intel   interfaces.Intelligence
	history *store.History
	specs   map[string]types.InstrumentSpec

	risk  *riskManager
	book  *positionBook
	stops *stopManager
	exec  *orderExecutor
}

// Step runs one decision cycle for the instrument: refresh account state,
// gate on spread, build the market context, ask the decider, and execute
// when every risk gate passes. Exits are not managed here; orders carry
// their stop and target and the venue works them.
func (e *Engine) Step(ctx context.Context, instrument string) (*types.StepResult, error) {
	logger.Debug(ctx, "Starting trading step", "instrument", instrument)
	spec := e.specFor(instrument)

	e.risk.refresh(ctx)

	quotes, err := e.brk.Pricing(ctx, []string{instrument})
	if err != nil {
		logger.ErrorWithErr(ctx, "Pricing fetch failed", err, "instrument", instrument)
		return nil, err
	}
	quote, ok := quotes[instrument]
	if !ok {
		err := fmt.Errorf("no quote for %s", instrument)
		logger.Error(ctx, "Instrument missing from pricing response", "instrument", instrument)
		return nil, err
	}

	if quote.Spread > spec.MaxSpread {
		logger.Risk(ctx, instrument, "SPREAD_TOO_WIDE",
			"spread", quote.Spread, "max_spread", spec.MaxSpread)
		d := types.Decision{
			Action:     "HOLD",
			Reason:     fmt.Sprintf("spread %.5f above limit %.5f", quote.Spread, spec.MaxSpread),
			Confidence: 0.5,
		}
		return &types.StepResult{
			Instrument: instrument,
			Decision:   d,
			Price:      quote.Mid,
			Time:       quote.Time.Unix(),
			Orders:     []types.OrderResp{},
			Reason:     d.Reason,
		}, nil
	}

	candles, err := e.brk.RecentCandles(ctx, instrument, 250)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to fetch candles", err, "instrument", instrument)
		return nil, err
	}
	if len(candles) < minCandles {
		err := errors.New("not enough candles")
		logger.Error(ctx, "Insufficient candle data",
			"instrument", instrument, "received", len(candles), "required", minCandles)
		return nil, err
	}

	inds := calcIndicators(candles)
	latest := candles[len(candles)-1]
	price := quote.Mid
	if price == 0 {
		price = latest.Close
	}

	e.book.sync(ctx, e.brk)

	mctx := types.MarketContext{
		Sentiment:       e.currentSentiment(),
		Trend:           e.sentimentTrend(),
		Regime:          e.risk.regime(),
		Quote:           quote,
		OpenInstruments: e.book.instruments(),
		WinStreak:       e.risk.winStreak,
		LossStreak:      e.risk.lossStreak,
	}

	decision, err := e.decider.Decide(ctx, instrument, candles, inds, mctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Decision failed", err, "instrument", instrument)
		return nil, err
	}

	logger.Decision(ctx, instrument, decision.Action, decision.Confidence, decision.Reason,
		"sentiment", mctx.Sentiment, "trend", string(mctx.Trend), "regime", mctx.Regime)
	if err := tradelog.AppendDecision(tradelog.DecisionEntry{
		Instrument: instrument,
		Action:     decision.Action,
		Confidence: decision.Confidence,
		Reason:     decision.Reason,
		Price:      price,
		Sentiment:  mctx.Sentiment,
		Indicators: indicatorMap(inds),
	}); err != nil {
		logger.Warn(ctx, "Decision journal write failed", "error", err.Error())
	}
	e.persistAnalysis(ctx, instrument, decision, quote, inds, mctx.Sentiment)

	reason := decision.Reason
	orders := []types.OrderResp{}

	if decision.Action == "BUY" || decision.Action == "SELL" {
		switch {
		case decision.Confidence <= e.cfg.Risk.MinConfidence:
			logger.Debug(ctx, "Signal below confidence floor",
				"instrument", instrument, "confidence", decision.Confidence, "floor", e.cfg.Risk.MinConfidence)
			reason += " | below confidence floor"

		case e.book.has(instrument):
			logger.Risk(ctx, instrument, "PYRAMIDING_BLOCKED",
				"action", decision.Action, "confidence", decision.Confidence)
			reason += " | blocked: position already open"

		default:
			if allowed, why := e.risk.allowTrade(e.book.count()); !allowed {
				logger.Risk(ctx, instrument, "TRADE_BLOCKED",
					"cause", why, "trades_today", e.risk.tradesToday, "open_positions", e.book.count())
				reason += " | blocked: " + why
				break
			}

			units := decision.Units
			if units <= 0 {
				units = e.risk.positionSize(decision.Confidence, mctx.Regime, spec)
			}
			if units <= 0 {
				logger.Debug(ctx, "Position sized to zero", "instrument", instrument, "balance", e.risk.balance)
				reason += " | sized to zero"
				break
			}

			vol := seriesVolatility(candles, quote)
			sl, tp := e.stops.levels(decision.Action, price, vol)

			resp, err := e.exec.execute(ctx, orderPlan{
				instrument: instrument,
				decision:   decision,
				units:      units,
				price:      price,
				stopLoss:   sl,
				takeProfit: tp,
				sentiment:  mctx.Sentiment,
				regime:     mctx.Regime,
				spec:       spec,
			})
			if err != nil {
				reason += " | order_err:" + err.Error()
				break
			}
			orders = append(orders, resp)
			if resp.Status == "CANCELLED" {
				reason += " | cancelled: " + resp.Message
				break
			}
			e.risk.recordTrade()
			fill := resp.FillPrice
			if fill == 0 {
				fill = price
			}
			e.book.markOpen(instrument, decision.Action, units, fill)
		}
	}

	logger.Debug(ctx, "Trading step completed",
		"instrument", instrument, "action", decision.Action, "orders", len(orders))
	return &types.StepResult{
		Instrument: instrument,
		Decision:   decision,
		Price:      price,
		Time:       latest.Ts,
		Orders:     orders,
		Reason:     reason,
	}, nil
}

func (e *Engine) specFor(instrument string) types.InstrumentSpec {
	if spec, ok := e.specs[instrument]; ok {
		return spec
	}
	return types.InstrumentSpec{MaxSpread: 0.001, VolThreshold: 0.002, Precision: 5, PipSize: 0.0001, UnitScale: 80}
}

func (e *Engine) currentSentiment() float64 {
	if e.intel == nil {
		return 0.5
	}
	return e.intel.CurrentSentiment()
}

func (e *Engine) sentimentTrend() types.Trend {
	if e.intel == nil {
		return types.TrendUnknown
	}
	return e.intel.Trend()
}

func (e *Engine) persistAnalysis(ctx context.Context, instrument string, d types.Decision, quote types.PriceQuote, inds types.Indicators, sentiment float64) {
	if e.history == nil {
		return
	}
	priceData := map[string]float64{
		"price":  quote.Mid,
		"bid":    quote.Bid,
		"ask":    quote.Ask,
		"spread": quote.Spread,
	}
	if err := e.history.SaveMarketAnalysis(ctx, instrument, d.Action, d.Confidence, sentiment, priceData, indicatorMap(inds)); err != nil {
		logger.Warn(ctx, "Market analysis not persisted", "error", err.Error(), "instrument", instrument)
	}
}
