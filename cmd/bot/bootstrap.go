package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"fx-intel-bot/internal/broker/brokerobs"
	"fx-intel-bot/internal/broker/oanda"
	"fx-intel-bot/internal/engine"
	"fx-intel-bot/internal/engine/engineobs"
	"fx-intel-bot/internal/interfaces"
	"fx-intel-bot/internal/logger"
	"fx-intel-bot/internal/signal"
	"fx-intel-bot/internal/signal/signalobs"
	"fx-intel-bot/internal/store"
	"fx-intel-bot/internal/trace"
	"fx-intel-bot/internal/tradelog"

	"github.com/joho/godotenv"
)

// initializeSystem initializes the logger and tracer
func initializeSystem() error {
	// Load environment variables
	_ = godotenv.Load()

	// Initialize logger
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Initialize tracer
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	return nil
}

// loadConfig loads and returns the configuration
func loadConfig(ctx context.Context) (*store.Config, error) {
	cfg, err := store.LoadConfig("config.yaml")
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err)
		return nil, err
	}
	return cfg, nil
}

// compressOldLogs compresses old journal files if retention is configured
func compressOldLogs(ctx context.Context) {
	if v := os.Getenv("TRADER_LOG_RETENTION_DAYS"); v != "" {
		var n int
		fmt.Sscanf(v, "%d", &n)
		if err := tradelog.CompressOlder(n); err != nil {
			logger.Warn(ctx, "Failed to compress old logs", "error", err)
		}
	}
}

// initializeBroker initializes and returns the broker instance with observability
func initializeBroker(ctx context.Context, cfg *store.Config) interfaces.Broker {
	// Create base broker
	brk := oanda.NewOanda(oanda.Params{
		Mode:        cfg.Mode,
		APIKey:      os.Getenv("OANDA_API_KEY"),
		AccountID:   os.Getenv("OANDA_ACCOUNT_ID"),
		Environment: os.Getenv("OANDA_ENVIRONMENT"),
		Granularity: os.Getenv("OANDA_GRANULARITY"),
	})

	// Log initialization info
	if cfg.Mode == "DRY_RUN" {
		logger.Warn(ctx, "Running in DRY_RUN mode - orders will be simulated")
	}

	if brk.Offline() {
		logger.Warn(ctx, "No OANDA credentials - prices and candles will be simulated")
	} else {
		logger.Info(ctx, "Using LIVE market data from OANDA")
	}

	// Wrap with observability middleware
	return brokerobs.Wrap(brk)
}

// initializeDecider initializes and returns the rule decider with observability
func initializeDecider() interfaces.Decider {
	// Wrap with observability middleware
	return signalobs.Wrap(signal.NewRules())
}

// initializeEngine initializes and returns the trading engine with observability
func initializeEngine(cfg *store.Config, brk interfaces.Broker, decider interfaces.Decider, intel interfaces.Intelligence, history *store.History, notifier interfaces.Notifier) interfaces.Engine {
	// Create base engine
	eng := engine.New(cfg, brk, decider, intel, history, notifier)

	// Wrap with observability middleware
	return engineobs.Wrap(eng)
}

// validateStartup probes the broker account so credential problems surface
// before the first trading cycle instead of inside it.
func validateStartup(ctx context.Context, brk interfaces.Broker) error {
	probeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	snap, err := brk.AccountSummary(probeCtx)
	if err != nil {
		return fmt.Errorf("broker account probe failed: %w", err)
	}

	logger.Info(ctx, "Broker account verified",
		"balance", snap.Balance,
		"margin_available", snap.MarginAvailable,
	)
	return nil
}
