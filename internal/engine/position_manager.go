package engine

import (
	"context"
	"sort"

	"fx-intel-bot/internal/interfaces"
	"fx-intel-bot/internal/logger"
	"fx-intel-bot/internal/types"
)

// positionBook mirrors the broker's open positions. The broker is the
// source of truth (exits run server-side via the attached stops); the book
// exists so one fetch per step serves the pyramiding gate, the position
// cap and the correlation context, and so a fetch failure degrades to the
// last known state instead of blinding the step.
type positionBook struct {
	positions map[string]types.PositionInfo
}

func newPositionBook() *positionBook {
	return &positionBook{positions: make(map[string]types.PositionInfo)}
}

func (pb *positionBook) sync(ctx context.Context, brk interfaces.Broker) {
	ps, err := brk.OpenPositions(ctx)
	if err != nil {
		logger.Warn(ctx, "Open positions fetch failed, using last known book",
			"error", err.Error(), "known_positions", len(pb.positions))
		return
	}
	pb.positions = make(map[string]types.PositionInfo, len(ps))
	for _, p := range ps {
		pb.positions[p.Instrument] = p
	}
}

func (pb *positionBook) has(instrument string) bool {
	_, ok := pb.positions[instrument]
	return ok
}

func (pb *positionBook) count() int {
	return len(pb.positions)
}

func (pb *positionBook) instruments() []string {
	out := make([]string, 0, len(pb.positions))
	for inst := range pb.positions {
		out = append(out, inst)
	}
	sort.Strings(out)
	return out
}

// markOpen records a fresh fill so later steps in the same cycle see it
// even if the broker's position feed lags the order.
func (pb *positionBook) markOpen(instrument, side string, units int, price float64) {
	pb.positions[instrument] = types.PositionInfo{
		Instrument: instrument,
		Side:       side,
		Units:      units,
		AvgPrice:   price,
	}
}
