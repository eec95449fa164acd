package oanda

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fx-intel-bot/internal/api"
	"fx-intel-bot/internal/types"
)

func newTestClient(baseURL, mode string) *Oanda {
	o := &Oanda{
		p: Params{
			Mode:        mode,
			APIKey:      "test-key",
			AccountID:   "001-001-1234567-001",
			Granularity: "M1",
		},
		client: api.NewClient(api.WithBaseURL(baseURL), api.WithTimeout(2*time.Second)),
		specs:  types.DefaultInstrumentSpecs(),
	}
	if mode == "DRY_RUN" {
		o.sim = newSimulator(10000)
	}
	return o
}

func TestAccountSummaryParsesStrings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/summary") {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"account":{"balance":"10234.56","marginUsed":"120.00","marginAvailable":"10114.56"}}`)
	}))
	defer srv.Close()

	o := newTestClient(srv.URL, "LIVE")
	snap, err := o.AccountSummary(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if snap.Balance != 10234.56 {
		t.Errorf("Expected balance 10234.56, got %f", snap.Balance)
	}
	if snap.MarginAvailable != 10114.56 {
		t.Errorf("Expected margin available 10114.56, got %f", snap.MarginAvailable)
	}
}

func TestPricingBuildsQuotes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("instruments"); got != "EUR_USD,USD_JPY" {
			t.Errorf("Expected instruments param, got %q", got)
		}
		fmt.Fprint(w, `{"prices":[
			{"instrument":"EUR_USD","time":"2024-06-01T12:00:00.000000000Z",
			 "bids":[{"price":"1.08500"}],"asks":[{"price":"1.08520"}]},
			{"instrument":"USD_JPY","time":"2024-06-01T12:00:00.000000000Z",
			 "bids":[],"asks":[]}
		]}`)
	}))
	defer srv.Close()

	o := newTestClient(srv.URL, "LIVE")
	quotes, err := o.Pricing(context.Background(), []string{"EUR_USD", "USD_JPY"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	q, ok := quotes["EUR_USD"]
	if !ok {
		t.Fatal("Expected EUR_USD quote")
	}
	if q.Bid != 1.085 || q.Ask != 1.0852 {
		t.Errorf("Expected bid/ask 1.085/1.0852, got %f/%f", q.Bid, q.Ask)
	}
	if diff := q.Spread - 0.0002; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Expected spread 0.0002, got %f", q.Spread)
	}
	if _, ok := quotes["USD_JPY"]; ok {
		t.Error("Expected quote without depth to be dropped")
	}
}

func TestRecentCandlesParsesMid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("price"); got != "M" {
			t.Errorf("Expected price=M, got %q", got)
		}
		if got := r.URL.Query().Get("count"); got != "2" {
			t.Errorf("Expected count=2, got %q", got)
		}
		fmt.Fprint(w, `{"candles":[
			{"time":"2024-06-01T12:00:00.000000000Z","volume":120,"complete":true,
			 "mid":{"o":"1.0850","h":"1.0860","l":"1.0845","c":"1.0855"}},
			{"time":"2024-06-01T12:01:00.000000000Z","volume":140,"complete":true,
			 "mid":{"o":"1.0855","h":"1.0870","l":"1.0850","c":"1.0865"}}
		]}`)
	}))
	defer srv.Close()

	o := newTestClient(srv.URL, "LIVE")
	cs, err := o.RecentCandles(context.Background(), "EUR_USD", 2)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(cs) != 2 {
		t.Fatalf("Expected 2 candles, got %d", len(cs))
	}
	if cs[1].Close != 1.0865 {
		t.Errorf("Expected close 1.0865, got %f", cs[1].Close)
	}
	if cs[0].Vol != 120 {
		t.Errorf("Expected volume 120, got %f", cs[0].Vol)
	}
	if cs[1].Ts <= cs[0].Ts {
		t.Error("Expected ascending timestamps")
	}
}

func TestPlaceOrderSendsMarketFOK(t *testing.T) {
	var got orderBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode body: %v", err)
		}
		fmt.Fprint(w, `{"orderFillTransaction":{"id":"6789","price":"1.08510"}}`)
	}))
	defer srv.Close()

	o := newTestClient(srv.URL, "LIVE")
	resp, err := o.PlaceOrder(context.Background(), types.OrderReq{
		Instrument: "EUR_USD",
		Side:       "SELL",
		Units:      1500,
		StopLoss:   1.0901,
		TakeProfit: 1.0701,
		Tag:        "fx-intel",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if got.Order.Type != "MARKET" || got.Order.TimeInForce != "FOK" {
		t.Errorf("Expected MARKET FOK, got %s %s", got.Order.Type, got.Order.TimeInForce)
	}
	if got.Order.Units != "-1500" {
		t.Errorf("Expected sell units -1500, got %s", got.Order.Units)
	}
	if got.Order.StopLossOnFill == nil || got.Order.StopLossOnFill.Price != "1.09010" {
		t.Errorf("Expected stop loss 1.09010, got %+v", got.Order.StopLossOnFill)
	}
	if got.Order.TakeProfit == nil || got.Order.TakeProfit.Price != "1.07010" {
		t.Errorf("Expected take profit 1.07010, got %+v", got.Order.TakeProfit)
	}
	if resp.Status != "FILLED" || resp.FillPrice != 1.0851 {
		t.Errorf("Expected FILLED at 1.0851, got %s at %f", resp.Status, resp.FillPrice)
	}
}

func TestPlaceOrderCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"orderCancelTransaction":{"id":"42","reason":"INSUFFICIENT_LIQUIDITY"}}`)
	}))
	defer srv.Close()

	o := newTestClient(srv.URL, "LIVE")
	resp, err := o.PlaceOrder(context.Background(), types.OrderReq{Instrument: "EUR_USD", Side: "BUY", Units: 100})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if resp.Status != "CANCELLED" {
		t.Errorf("Expected CANCELLED, got %s", resp.Status)
	}
	if resp.Message != "INSUFFICIENT_LIQUIDITY" {
		t.Errorf("Expected cancel reason, got %q", resp.Message)
	}
}

func TestOpenPositionsSplitsSides(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"positions":[
			{"instrument":"EUR_USD",
			 "long":{"units":"2000","averagePrice":"1.0850","unrealizedPL":"12.50"},
			 "short":{"units":"0","averagePrice":"0","unrealizedPL":"0"}},
			{"instrument":"USD_JPY",
			 "long":{"units":"0","averagePrice":"0","unrealizedPL":"0"},
			 "short":{"units":"-1000","averagePrice":"147.250","unrealizedPL":"-3.20"}}
		]}`)
	}))
	defer srv.Close()

	o := newTestClient(srv.URL, "LIVE")
	ps, err := o.OpenPositions(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(ps) != 2 {
		t.Fatalf("Expected 2 positions, got %d", len(ps))
	}
	if ps[0].Side != "BUY" || ps[0].Units != 2000 {
		t.Errorf("Expected long 2000, got %s %d", ps[0].Side, ps[0].Units)
	}
	if ps[1].Side != "SELL" || ps[1].Units != 1000 {
		t.Errorf("Expected short 1000 units positive, got %s %d", ps[1].Side, ps[1].Units)
	}
}

func TestDryRunOrderNeverHitsOrderEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/orders") {
			t.Errorf("Dry-run must not POST orders, hit %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"prices":[{"instrument":"EUR_USD","time":"2024-06-01T12:00:00Z",
			"bids":[{"price":"1.08490"}],"asks":[{"price":"1.08510"}]}]}`)
	}))
	defer srv.Close()

	o := newTestClient(srv.URL, "DRY_RUN")
	resp, err := o.PlaceOrder(context.Background(), types.OrderReq{Instrument: "EUR_USD", Side: "BUY", Units: 1000})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.HasPrefix(resp.OrderID, "SIM-") {
		t.Errorf("Expected SIM- order id, got %s", resp.OrderID)
	}
	if resp.Status != "SIMULATED" {
		t.Errorf("Expected SIMULATED, got %s", resp.Status)
	}
	if resp.FillPrice != 1.085 {
		t.Errorf("Expected fill at mid 1.085, got %f", resp.FillPrice)
	}

	ps, _ := o.OpenPositions(context.Background())
	if len(ps) != 1 || ps[0].Units != 1000 {
		t.Fatalf("Expected one simulated position, got %+v", ps)
	}
}

func TestSimulatorNetsOppositeOrders(t *testing.T) {
	s := newSimulator(10000)

	s.placeOrder(types.OrderReq{Instrument: "EUR_USD", Side: "BUY", Units: 1000}, 1.0800)
	s.placeOrder(types.OrderReq{Instrument: "EUR_USD", Side: "SELL", Units: 1000}, 1.0850)

	if len(s.openPositions()) != 0 {
		t.Fatalf("Expected flat book, got %+v", s.openPositions())
	}
	want := 10000 + (1.0850-1.0800)*1000
	got := s.accountSummary().Balance
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Expected balance %f, got %f", want, got)
	}
}

func TestSimulatorPartialCloseKeepsRemainder(t *testing.T) {
	s := newSimulator(10000)

	s.placeOrder(types.OrderReq{Instrument: "EUR_USD", Side: "SELL", Units: 2000}, 1.0900)
	s.placeOrder(types.OrderReq{Instrument: "EUR_USD", Side: "BUY", Units: 500}, 1.0850)

	ps := s.openPositions()
	if len(ps) != 1 || ps[0].Units != 1500 || ps[0].Side != "SELL" {
		t.Fatalf("Expected 1500 short remaining, got %+v", ps)
	}
	// Short gains when bought back lower.
	want := 10000 + (1.0900-1.0850)*500
	got := s.accountSummary().Balance
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Expected balance %f, got %f", want, got)
	}
}

func TestSimulatorStopSweepClosesLong(t *testing.T) {
	s := newSimulator(10000)
	s.placeOrder(types.OrderReq{
		Instrument: "EUR_USD", Side: "BUY", Units: 1000,
		StopLoss: 1.0700, TakeProfit: 1.1000,
	}, 1.0800)

	s.markClose("EUR_USD", 1.0820)
	if len(s.openPositions()) != 1 {
		t.Fatalf("Expected position intact inside the band, got %+v", s.openPositions())
	}

	s.markClose("EUR_USD", 1.0690)
	if len(s.openPositions()) != 0 {
		t.Fatalf("Expected stop to flatten the book, got %+v", s.openPositions())
	}
	// Fills at the stop level, not the marked price.
	want := 10000 + (1.0700-1.0800)*1000
	got := s.accountSummary().Balance
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Expected balance %f, got %f", want, got)
	}
}

func TestSimulatorTargetSweepClosesShort(t *testing.T) {
	s := newSimulator(10000)
	s.placeOrder(types.OrderReq{
		Instrument: "EUR_USD", Side: "SELL", Units: 1000,
		StopLoss: 1.0900, TakeProfit: 1.0700,
	}, 1.0800)

	s.markClose("EUR_USD", 1.0695)
	if len(s.openPositions()) != 0 {
		t.Fatalf("Expected target to flatten the book, got %+v", s.openPositions())
	}
	want := 10000 + (1.0800-1.0700)*1000
	got := s.accountSummary().Balance
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Expected balance %f, got %f", want, got)
	}
}

func TestSimulatorQuoteSweep(t *testing.T) {
	s := newSimulator(10000)
	s.placeOrder(types.OrderReq{
		Instrument: "EUR_USD", Side: "BUY", Units: 1000,
		StopLoss: 1.0700, TakeProfit: 1.1000,
	}, 1.0800)
	s.placeOrder(types.OrderReq{
		Instrument: "GBP_USD", Side: "BUY", Units: 1000,
		StopLoss: 1.2500, TakeProfit: 1.2800,
	}, 1.2600)

	s.markQuotes(map[string]types.PriceQuote{
		"EUR_USD": {Instrument: "EUR_USD", Mid: 1.0650},
	})

	ps := s.openPositions()
	if len(ps) != 1 || ps[0].Instrument != "GBP_USD" {
		t.Fatalf("Expected only the untouched instrument to survive, got %+v", ps)
	}
}

func TestOfflineSyntheticCandles(t *testing.T) {
	o := NewOanda(Params{Mode: "DRY_RUN"})
	if !o.Offline() {
		t.Fatal("Expected offline without credentials")
	}

	cs, err := o.RecentCandles(context.Background(), "USD_JPY", 50)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(cs) != 50 {
		t.Fatalf("Expected 50 candles, got %d", len(cs))
	}
	for _, c := range cs {
		if c.Close < 140 || c.Close > 155 {
			t.Fatalf("Expected JPY-scale close, got %f", c.Close)
		}
		if c.High < c.Low {
			t.Fatal("Expected high >= low")
		}
	}

	quotes, err := o.Pricing(context.Background(), []string{"USD_JPY"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	q := quotes["USD_JPY"]
	if q.Mid != cs[len(cs)-1].Close {
		t.Errorf("Expected quote anchored to last close %f, got %f", cs[len(cs)-1].Close, q.Mid)
	}
}

func TestFormatPricePrecision(t *testing.T) {
	o := NewOanda(Params{Mode: "DRY_RUN"})

	if got := o.formatPrice("EUR_USD", 1.08515); got != "1.08515" {
		t.Errorf("Expected 5dp, got %s", got)
	}
	if got := o.formatPrice("USD_JPY", 147.2512); got != "147.251" {
		t.Errorf("Expected 3dp, got %s", got)
	}
}
