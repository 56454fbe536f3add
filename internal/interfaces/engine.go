package interfaces

import (
	"context"

	"llm-equity-trader/internal/types"
)

type Engine interface {
	AccountID() string
	RunCycle(ctx context.Context) (*types.CycleResult, error)
}
