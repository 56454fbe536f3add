package llm

import (
	"context"
	"fmt"
	"time"

	"llm-equity-trader/internal/interfaces"
	"llm-equity-trader/internal/metrics"
	"llm-equity-trader/internal/types"
)

// Reply is one oracle round trip.
type Reply struct {
	Prompt string
	Raw    string
	Normalized
}

// Trader renders the prompt, calls the oracle once and normalizes the reply.
type Trader struct {
	oracle  interfaces.Oracle
	rules   PromptRules
	metrics *metrics.Metrics
}

func NewTrader(oracle interfaces.Oracle, rules PromptRules, m *metrics.Metrics) *Trader {
	return &Trader{oracle: oracle, rules: rules, metrics: m}
}

// MakeDecision fails only when the oracle call fails. A malformed reply is
// returned with an empty decision set.
func (t *Trader) MakeDecision(ctx context.Context, state types.MarketState, account types.AccountInfo, portfolio *types.Portfolio) (*Reply, error) {
	prompt := RenderPrompt(state, account, portfolio, t.rules)

	start := time.Now()
	raw, err := t.oracle.Complete(ctx, prompt)
	t.metrics.ObserveOracle(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("oracle request failed: %w", err)
	}

	return &Reply{
		Prompt:     prompt,
		Raw:        raw,
		Normalized: Normalize(raw),
	}, nil
}
