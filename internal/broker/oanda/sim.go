package oanda

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"fx-intel-bot/internal/types"
)

// simPosition is a paper-book entry. Stop and target levels are monitored
// locally since there is no venue to do it server-side in dry-run mode.
type simPosition struct {
	types.PositionInfo
	stopLoss   float64
	takeProfit float64
}

// simulator backs DRY_RUN mode: synthetic candles when offline and a local
// paper book so positions and balance survive without an account.
type simulator struct {
	mu        sync.Mutex
	balance   float64
	positions []simPosition
	lastClose map[string]float64
}

func newSimulator(balance float64) *simulator {
	return &simulator{
		balance:   balance,
		lastClose: make(map[string]float64),
	}
}

func syntheticBase(instrument string) float64 {
	switch {
	case strings.HasSuffix(instrument, "_JPY"):
		return 147.0
	case strings.HasPrefix(instrument, "GBP_"):
		return 1.26
	case strings.HasPrefix(instrument, "AUD_") || strings.HasPrefix(instrument, "NZD_"):
		return 0.65
	default:
		return 1.08
	}
}

func (s *simulator) recentCandles(instrument string, n int) []types.Candle {
	base := syntheticBase(instrument)
	pip := 0.0001
	if strings.HasSuffix(instrument, "_JPY") {
		pip = 0.01
	}

	cs := make([]types.Candle, 0, n)
	now := time.Now().Unix()
	price := base

	for i := n; i > 0; i-- {
		price += (rand.Float64() - 0.5) * 10 * pip
		h := price + rand.Float64()*5*pip
		l := price - rand.Float64()*5*pip
		cs = append(cs, types.Candle{
			Ts:    now - int64(i*60),
			Open:  price - 2*pip,
			High:  h,
			Low:   l,
			Close: price,
			Vol:   50 + rand.Float64()*200,
		})
	}

	s.markClose(instrument, price)

	return cs
}

func (s *simulator) pricing(instruments []string) map[string]types.PriceQuote {
	s.mu.Lock()
	defer s.mu.Unlock()

	quotes := make(map[string]types.PriceQuote, len(instruments))
	for _, inst := range instruments {
		mid, ok := s.lastClose[inst]
		if !ok {
			mid = syntheticBase(inst)
		}
		spread := 1.5 * 0.0001
		if strings.HasSuffix(inst, "_JPY") {
			spread = 1.5 * 0.01
		}
		quotes[inst] = types.PriceQuote{
			Instrument: inst,
			Bid:        mid - spread/2,
			Ask:        mid + spread/2,
			Mid:        mid,
			Spread:     spread,
			Time:       time.Now().UTC(),
		}
	}
	return quotes
}

func (s *simulator) accountSummary() types.AccountSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return types.AccountSnapshot{
		Balance:         s.balance,
		MarginAvailable: s.balance,
		Positions:       s.infos(),
	}
}

func (s *simulator) placeOrder(req types.OrderReq, fill float64) types.OrderResp {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fill == 0 {
		if last, ok := s.lastClose[req.Instrument]; ok {
			fill = last
		} else {
			fill = syntheticBase(req.Instrument)
		}
	}

	s.apply(req, fill)

	return types.OrderResp{
		OrderID:   fmt.Sprintf("SIM-%d", time.Now().UnixNano()),
		Status:    "SIMULATED",
		FillPrice: fill,
		Message:   "dry-run",
	}
}

// apply nets the order against the paper book, realizing pnl on closes.
func (s *simulator) apply(req types.OrderReq, fill float64) {
	for i, p := range s.positions {
		if p.Instrument != req.Instrument {
			continue
		}
		if p.Side == req.Side {
			total := p.Units + req.Units
			p.AvgPrice = (p.AvgPrice*float64(p.Units) + fill*float64(req.Units)) / float64(total)
			p.Units = total
			if req.StopLoss > 0 {
				p.stopLoss = req.StopLoss
			}
			if req.TakeProfit > 0 {
				p.takeProfit = req.TakeProfit
			}
			s.positions[i] = p
			return
		}

		dir := 1.0
		if p.Side == "SELL" {
			dir = -1
		}
		closed := min(p.Units, req.Units)
		s.balance += (fill - p.AvgPrice) * float64(closed) * dir

		switch {
		case req.Units < p.Units:
			p.Units -= req.Units
			s.positions[i] = p
		case req.Units > p.Units:
			s.positions[i] = simPosition{
				PositionInfo: types.PositionInfo{
					Instrument: req.Instrument,
					Side:       req.Side,
					Units:      req.Units - p.Units,
					AvgPrice:   fill,
				},
				stopLoss:   req.StopLoss,
				takeProfit: req.TakeProfit,
			}
		default:
			s.positions = append(s.positions[:i], s.positions[i+1:]...)
		}
		return
	}

	s.positions = append(s.positions, simPosition{
		PositionInfo: types.PositionInfo{
			Instrument: req.Instrument,
			Side:       req.Side,
			Units:      req.Units,
			AvgPrice:   fill,
		},
		stopLoss:   req.StopLoss,
		takeProfit: req.TakeProfit,
	})
}

// markClose records a fresh price for the instrument and settles any
// position whose stop or target that price crosses.
func (s *simulator) markClose(instrument string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastClose[instrument] = price
	s.sweep(instrument, price)
}

// markQuotes feeds live quotes into the paper book when dry-run trades
// against real market data.
func (s *simulator) markQuotes(quotes map[string]types.PriceQuote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for inst, q := range quotes {
		if q.Mid <= 0 {
			continue
		}
		s.lastClose[inst] = q.Mid
		s.sweep(inst, q.Mid)
	}
}

// sweep closes positions hit by the price, filling at the level itself.
// Callers hold s.mu.
func (s *simulator) sweep(instrument string, price float64) {
	kept := s.positions[:0]
	for _, p := range s.positions {
		exit := 0.0
		if p.Instrument == instrument {
			if p.Side == "BUY" {
				switch {
				case p.stopLoss > 0 && price <= p.stopLoss:
					exit = p.stopLoss
				case p.takeProfit > 0 && price >= p.takeProfit:
					exit = p.takeProfit
				}
			} else {
				switch {
				case p.stopLoss > 0 && price >= p.stopLoss:
					exit = p.stopLoss
				case p.takeProfit > 0 && price <= p.takeProfit:
					exit = p.takeProfit
				}
			}
		}
		if exit == 0 {
			kept = append(kept, p)
			continue
		}
		dir := 1.0
		if p.Side == "SELL" {
			dir = -1
		}
		s.balance += (exit - p.AvgPrice) * float64(p.Units) * dir
	}
	s.positions = kept
}

func (s *simulator) openPositions() []types.PositionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.infos()
}

// infos copies the book as plain position info. Callers hold s.mu.
func (s *simulator) infos() []types.PositionInfo {
	ps := make([]types.PositionInfo, len(s.positions))
	for i, p := range s.positions {
		ps[i] = p.PositionInfo
	}
	return ps
}
