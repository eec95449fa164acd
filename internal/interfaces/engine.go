package interfaces

import (
	"context"

	"fx-intel-bot/internal/types"
)

type Engine interface {
	Step(ctx context.Context, instrument string) (*types.StepResult, error)
}
