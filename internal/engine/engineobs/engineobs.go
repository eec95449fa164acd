package engineobs

import (
	"context"
	"time"

	"fx-intel-bot/internal/interfaces"
	"fx-intel-bot/internal/logger"
	"fx-intel-bot/internal/trace"
	"fx-intel-bot/internal/types"
)

type observableEngine struct {
	engine interfaces.Engine
}

var _ interfaces.Engine = (*observableEngine)(nil)

func Wrap(eng interfaces.Engine) interfaces.Engine {
	return &observableEngine{engine: eng}
}

func (oe *observableEngine) Step(ctx context.Context, instrument string) (*types.StepResult, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Step")
	defer span.End()

	start := time.Now()
	logger.Debug(ctx, "Trading cycle starting", "instrument", instrument)

	result, err := oe.engine.Step(ctx, instrument)
	if err != nil {
		logger.ErrorWithErr(ctx, "Trading cycle failed", err,
			"instrument", instrument,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	logger.Info(ctx, "Trading cycle completed",
		"instrument", instrument,
		"action", result.Decision.Action,
		"confidence", result.Decision.Confidence,
		"orders", len(result.Orders),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}
