package engineobs

import (
	"context"
	"time"

	"llm-equity-trader/internal/interfaces"
	"llm-equity-trader/internal/logger"
	"llm-equity-trader/internal/trace"
	"llm-equity-trader/internal/types"
)

type observableEngine struct {
	engine interfaces.Engine
}

var _ interfaces.Engine = (*observableEngine)(nil)

func Wrap(eng interfaces.Engine) interfaces.Engine {
	return &observableEngine{
		engine: eng,
	}
}

func (oe *observableEngine) AccountID() string { return oe.engine.AccountID() }

func (oe *observableEngine) RunCycle(ctx context.Context) (*types.CycleResult, error) {
	ctx, span := trace.StartSpan(ctx, "engine.RunCycle")
	defer span.End()

	start := time.Now()
	account := oe.engine.AccountID()

	logger.InfoSkip(ctx, 1, "Starting trading cycle",
		"account", account,
	)

	result, err := oe.engine.RunCycle(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Trading cycle failed", err,
			"account", account,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return result, err
	}

	if result.Skipped {
		logger.DebugSkip(ctx, 1, "Trading cycle skipped", "account", account)
		return result, nil
	}

	executed := 0
	for _, ex := range result.Executions {
		if ex.Status == types.StatusExecuted {
			executed++
		}
	}
	fields := []any{
		"account", account,
		"decisions", len(result.Decisions),
		"executed", executed,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if result.Portfolio != nil {
		fields = append(fields, "total_value", result.Portfolio.TotalValue.StringFixed(2), "cash", result.Portfolio.Cash.StringFixed(2))
	}
	logger.InfoSkip(ctx, 1, "Trading cycle completed", fields...)

	return result, nil
}
