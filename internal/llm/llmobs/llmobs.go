package llmobs

import (
	"context"

	"llm-equity-trader/internal/interfaces"
	"llm-equity-trader/internal/logger"
	"llm-equity-trader/internal/trace"
)

// observableOracle wraps an Oracle with observability (logging & tracing)
type observableOracle struct {
	oracle   interfaces.Oracle
	provider string
}

// Compile-time interface check
var _ interfaces.Oracle = (*observableOracle)(nil)

// Wrap wraps an oracle with observability middleware
func Wrap(provider string, oracle interfaces.Oracle) interfaces.Oracle {
	return &observableOracle{oracle: oracle, provider: provider}
}

func (oo *observableOracle) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "llm.Complete")
	defer span.End()

	// Use DebugSkip(1) to report the actual caller, not this middleware wrapper
	logger.DebugSkip(ctx, 1, "Requesting oracle completion",
		"provider", oo.provider,
		"prompt_chars", len(prompt),
	)

	raw, err := oo.oracle.Complete(ctx, prompt)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Oracle completion failed", err, "provider", oo.provider)
		return "", err
	}

	logger.InfoSkip(ctx, 1, "Oracle completion received",
		"provider", oo.provider,
		"reply_chars", len(raw),
	)
	return raw, nil
}
