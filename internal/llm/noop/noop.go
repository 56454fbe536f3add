package noop

import (
	"context"

	"llm-equity-trader/internal/interfaces"
	"llm-equity-trader/internal/logger"
)

// Oracle is the fallback used when no provider is configured. Its reply
// normalizes to an empty decision set, so a cycle runs without trading.
type Oracle struct{}

var _ interfaces.Oracle = (*Oracle)(nil)

func New() *Oracle {
	return &Oracle{}
}

func (o *Oracle) Complete(ctx context.Context, prompt string) (string, error) {
	logger.Debug(ctx, "Noop oracle called - holding everything")
	return `{"cot_trace": "noop oracle: no provider configured", "decisions": {}}`, nil
}
