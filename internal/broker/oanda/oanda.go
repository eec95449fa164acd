package oanda

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fx-intel-bot/internal/api"
	"fx-intel-bot/internal/interfaces"
	"fx-intel-bot/internal/types"

	"github.com/go-resty/resty/v2"
)

const (
	practiceURL = "https://api-fxpractice.oanda.com"
	liveURL     = "https://api-fxtrade.oanda.com"
)

type Params struct {
	Mode        string // DRY_RUN or LIVE
	APIKey      string
	AccountID   string
	Environment string // practice or live
	Granularity string // candle granularity, default M1
}

type Oanda struct {
	p      Params
	client *resty.Client
	sim    *simulator
	specs  map[string]types.InstrumentSpec
}

var _ interfaces.Broker = (*Oanda)(nil)

func NewOanda(p Params) *Oanda {
	if p.Granularity == "" {
		p.Granularity = "M1"
	}

	o := &Oanda{
		p:     p,
		specs: types.DefaultInstrumentSpecs(),
	}

	if p.APIKey != "" {
		base := practiceURL
		if strings.EqualFold(p.Environment, "live") {
			base = liveURL
		}
		o.client = api.NewClient(
			api.WithBaseURL(base),
			api.WithAuthToken(p.APIKey),
			api.WithHeader("Accept-Datetime-Format", "RFC3339"),
			api.WithTimeout(15*time.Second),
			api.WithRetry(2, 500*time.Millisecond, 3*time.Second),
		)
	}

	if p.Mode == "DRY_RUN" {
		o.sim = newSimulator(10000)
	}

	return o
}

// Offline reports whether the client has no API credentials and serves
// synthetic data only.
func (o *Oanda) Offline() bool {
	return o.client == nil
}

type accountResp struct {
	Account struct {
		Balance         string `json:"balance"`
		MarginUsed      string `json:"marginUsed"`
		MarginAvailable string `json:"marginAvailable"`
	} `json:"account"`
}

func (o *Oanda) AccountSummary(ctx context.Context) (types.AccountSnapshot, error) {
	if o.Offline() {
		return o.sim.accountSummary(), nil
	}

	var out accountResp
	resp, err := o.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/v3/accounts/" + o.p.AccountID + "/summary")
	if err != nil {
		return types.AccountSnapshot{}, fmt.Errorf("account summary: %w", err)
	}
	if err := api.CheckStatus(resp); err != nil {
		return types.AccountSnapshot{}, fmt.Errorf("account summary: %w", err)
	}

	return types.AccountSnapshot{
		Balance:         parseF(out.Account.Balance),
		MarginUsed:      parseF(out.Account.MarginUsed),
		MarginAvailable: parseF(out.Account.MarginAvailable),
	}, nil
}

type pricingResp struct {
	Prices []struct {
		Instrument string `json:"instrument"`
		Time       string `json:"time"`
		Bids       []struct {
			Price string `json:"price"`
		} `json:"bids"`
		Asks []struct {
			Price string `json:"price"`
		} `json:"asks"`
	} `json:"prices"`
}

func (o *Oanda) Pricing(ctx context.Context, instruments []string) (map[string]types.PriceQuote, error) {
	if o.Offline() {
		return o.sim.pricing(instruments), nil
	}

	var out pricingResp
	resp, err := o.client.R().
		SetContext(ctx).
		SetQueryParam("instruments", strings.Join(instruments, ",")).
		SetResult(&out).
		Get("/v3/accounts/" + o.p.AccountID + "/pricing")
	if err != nil {
		return nil, fmt.Errorf("pricing: %w", err)
	}
	if err := api.CheckStatus(resp); err != nil {
		return nil, fmt.Errorf("pricing: %w", err)
	}

	quotes := make(map[string]types.PriceQuote, len(out.Prices))
	for _, p := range out.Prices {
		if len(p.Bids) == 0 || len(p.Asks) == 0 {
			continue
		}
		bid := parseF(p.Bids[0].Price)
		ask := parseF(p.Asks[0].Price)
		quotes[p.Instrument] = types.PriceQuote{
			Instrument: p.Instrument,
			Bid:        bid,
			Ask:        ask,
			Mid:        (bid + ask) / 2,
			Spread:     ask - bid,
			Time:       parseT(p.Time),
		}
	}
	if o.sim != nil {
		o.sim.markQuotes(quotes)
	}
	return quotes, nil
}

type candlesResp struct {
	Candles []struct {
		Time     string `json:"time"`
		Volume   int64  `json:"volume"`
		Complete bool   `json:"complete"`
		Mid      struct {
			O string `json:"o"`
			H string `json:"h"`
			L string `json:"l"`
			C string `json:"c"`
		} `json:"mid"`
	} `json:"candles"`
}

func (o *Oanda) RecentCandles(ctx context.Context, instrument string, n int) ([]types.Candle, error) {
	if o.Offline() {
		return o.sim.recentCandles(instrument, n), nil
	}

	var out candlesResp
	resp, err := o.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"granularity": o.p.Granularity,
			"count":       strconv.Itoa(n),
			"price":       "M",
		}).
		SetResult(&out).
		Get("/v3/instruments/" + instrument + "/candles")
	if err != nil {
		return nil, fmt.Errorf("candles %s: %w", instrument, err)
	}
	if err := api.CheckStatus(resp); err != nil {
		return nil, fmt.Errorf("candles %s: %w", instrument, err)
	}

	cs := make([]types.Candle, 0, len(out.Candles))
	for _, c := range out.Candles {
		cs = append(cs, types.Candle{
			Ts:    parseT(c.Time).Unix(),
			Open:  parseF(c.Mid.O),
			High:  parseF(c.Mid.H),
			Low:   parseF(c.Mid.L),
			Close: parseF(c.Mid.C),
			Vol:   float64(c.Volume),
		})
	}
	if o.sim != nil && len(cs) > 0 {
		o.sim.markClose(instrument, cs[len(cs)-1].Close)
	}
	return cs, nil
}

type orderBody struct {
	Order struct {
		Type           string     `json:"type"`
		Instrument     string     `json:"instrument"`
		Units          string     `json:"units"`
		TimeInForce    string     `json:"timeInForce"`
		PositionFill   string     `json:"positionFill"`
		StopLossOnFill *onFill    `json:"stopLossOnFill,omitempty"`
		TakeProfit     *onFill    `json:"takeProfitOnFill,omitempty"`
		ClientExt      *clientExt `json:"clientExtensions,omitempty"`
	} `json:"order"`
}

type onFill struct {
	Price       string `json:"price"`
	TimeInForce string `json:"timeInForce"`
}

type clientExt struct {
	Tag string `json:"tag,omitempty"`
}

type orderResp struct {
	OrderFillTransaction *struct {
		ID    string `json:"id"`
		Price string `json:"price"`
	} `json:"orderFillTransaction"`
	OrderCancelTransaction *struct {
		ID     string `json:"id"`
		Reason string `json:"reason"`
	} `json:"orderCancelTransaction"`
	OrderCreateTransaction *struct {
		ID string `json:"id"`
	} `json:"orderCreateTransaction"`
	ErrorMessage string `json:"errorMessage"`
}

func (o *Oanda) PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	if o.p.Mode == "DRY_RUN" {
		return o.simulateOrder(ctx, req)
	}

	if o.Offline() {
		return types.OrderResp{}, errors.New("missing API key/account id")
	}

	units := req.Units
	if strings.EqualFold(req.Side, "SELL") {
		units = -units
	}

	body := orderBody{}
	body.Order.Type = "MARKET"
	body.Order.Instrument = req.Instrument
	body.Order.Units = strconv.Itoa(units)
	body.Order.TimeInForce = "FOK"
	body.Order.PositionFill = "DEFAULT"
	if req.StopLoss > 0 {
		body.Order.StopLossOnFill = &onFill{Price: o.formatPrice(req.Instrument, req.StopLoss), TimeInForce: "GTC"}
	}
	if req.TakeProfit > 0 {
		body.Order.TakeProfit = &onFill{Price: o.formatPrice(req.Instrument, req.TakeProfit), TimeInForce: "GTC"}
	}
	if req.Tag != "" {
		body.Order.ClientExt = &clientExt{Tag: req.Tag}
	}

	var out orderResp
	resp, err := o.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&out).
		Post("/v3/accounts/" + o.p.AccountID + "/orders")
	if err != nil {
		return types.OrderResp{}, fmt.Errorf("place order %s: %w", req.Instrument, err)
	}
	if resp.IsError() {
		msg := out.ErrorMessage
		if msg == "" {
			msg = resp.Status()
		}
		return types.OrderResp{}, fmt.Errorf("place order %s: HTTP %d: %s", req.Instrument, resp.StatusCode(), msg)
	}

	if out.OrderCancelTransaction != nil {
		return types.OrderResp{
			OrderID: out.OrderCancelTransaction.ID,
			Status:  "CANCELLED",
			Message: out.OrderCancelTransaction.Reason,
		}, nil
	}
	if out.OrderFillTransaction != nil {
		return types.OrderResp{
			OrderID:   out.OrderFillTransaction.ID,
			Status:    "FILLED",
			FillPrice: parseF(out.OrderFillTransaction.Price),
		}, nil
	}
	if out.OrderCreateTransaction != nil {
		return types.OrderResp{OrderID: out.OrderCreateTransaction.ID, Status: "PENDING"}, nil
	}
	return types.OrderResp{}, errors.New("order response missing transactions")
}

type positionsResp struct {
	Positions []struct {
		Instrument string       `json:"instrument"`
		Long       positionSide `json:"long"`
		Short      positionSide `json:"short"`
	} `json:"positions"`
}

type positionSide struct {
	Units        string `json:"units"`
	AveragePrice string `json:"averagePrice"`
	UnrealizedPL string `json:"unrealizedPL"`
}

func (o *Oanda) OpenPositions(ctx context.Context) ([]types.PositionInfo, error) {
	if o.p.Mode == "DRY_RUN" {
		return o.sim.openPositions(), nil
	}
	if o.Offline() {
		return nil, errors.New("missing API key/account id")
	}

	var out positionsResp
	resp, err := o.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/v3/accounts/" + o.p.AccountID + "/openPositions")
	if err != nil {
		return nil, fmt.Errorf("open positions: %w", err)
	}
	if err := api.CheckStatus(resp); err != nil {
		return nil, fmt.Errorf("open positions: %w", err)
	}

	var ps []types.PositionInfo
	for _, p := range out.Positions {
		if u := int(parseF(p.Long.Units)); u > 0 {
			ps = append(ps, types.PositionInfo{
				Instrument:    p.Instrument,
				Side:          "BUY",
				Units:         u,
				AvgPrice:      parseF(p.Long.AveragePrice),
				UnrealizedPnL: parseF(p.Long.UnrealizedPL),
			})
		}
		if u := int(parseF(p.Short.Units)); u < 0 {
			ps = append(ps, types.PositionInfo{
				Instrument:    p.Instrument,
				Side:          "SELL",
				Units:         -u,
				AvgPrice:      parseF(p.Short.AveragePrice),
				UnrealizedPnL: parseF(p.Short.UnrealizedPL),
			})
		}
	}
	return ps, nil
}

// simulateOrder fills a dry-run order at the best quote available.
func (o *Oanda) simulateOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	var fill float64
	if !o.Offline() {
		if quotes, err := o.Pricing(ctx, []string{req.Instrument}); err == nil {
			if q, ok := quotes[req.Instrument]; ok {
				fill = q.Mid
			}
		}
	}
	return o.sim.placeOrder(req, fill), nil
}

func (o *Oanda) formatPrice(instrument string, p float64) string {
	precision := 5
	if spec, ok := o.specs[instrument]; ok {
		precision = spec.Precision
	}
	return strconv.FormatFloat(p, 'f', precision, 64)
}

func parseF(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func parseT(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Now().UTC()
	}
	return t
}
