package engine

import (
	"fx-intel-bot/internal/interfaces"
	"fx-intel-bot/internal/store"
	"fx-intel-bot/internal/types"
)

// New assembles the trading engine. history and notifier may be nil; the
// engine then skips persistence and alerts but trades the same.
func New(cfg *store.Config, brk interfaces.Broker, d interfaces.Decider, intel interfaces.Intelligence, history *store.History, notifier interfaces.Notifier) interfaces.Engine {
	return &Engine{
		cfg:     cfg,
		brk:     brk,
		decider: d,
		intel:   intel,
		history: history,
		specs:   types.DefaultInstrumentSpecs(),
		risk:    newRiskManager(cfg, brk, history),
		book:    newPositionBook(),
		stops:   newStopManager(),
		exec:    newOrderExecutor(brk, history, notifier),
	}
}
