package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-equity-trader/internal/interfaces"
	"llm-equity-trader/internal/store"
	"llm-equity-trader/internal/types"
)

const testYAML = `
ledger:
  in_memory: true
accounts:
  - id: baseline
    initial_capital: 50000
    provider: NOOP
  - id: gpt
    initial_capital: 100000
    provider: OPENAI
    model: gpt-4o
    api_key_env: TEST_OPENAI_KEY
universe:
  - {symbol: "600519", name: Kweichow Moutai, exchange: XSHG}
`

func testConfig(t *testing.T) *store.Config {
	t.Helper()
	cfg, err := store.Parse([]byte(testYAML))
	require.NoError(t, err)
	return cfg
}

func TestBuildSystemRegistersAccounts(t *testing.T) {
	t.Setenv("TRADER_LOG_DIR", t.TempDir())
	t.Setenv("TEST_OPENAI_KEY", "sk-test")
	ctx := context.Background()

	s, err := buildSystem(ctx, testConfig(t))
	require.NoError(t, err)
	defer s.Close()

	require.Len(t, s.engines, 2)
	assert.Equal(t, "baseline", s.engines[0].AccountID())
	assert.Equal(t, "gpt", s.engines[1].AccountID())

	m, err := s.ledger.GetModel(ctx, "baseline")
	require.NoError(t, err)
	assert.Equal(t, "50000", m.InitialCapital.String())
}

func TestBuildSystemNeedsAPIKey(t *testing.T) {
	t.Setenv("TRADER_LOG_DIR", t.TempDir())
	t.Setenv("TEST_OPENAI_KEY", "")

	_, err := buildSystem(context.Background(), testConfig(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEST_OPENAI_KEY")
}

func TestInitializeQuoteSource(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	src, err := initializeQuoteSource(ctx, cfg)
	require.NoError(t, err)
	assert.NotNil(t, src)

	cfg.MarketData.Source = "YAHOO"
	_, err = initializeQuoteSource(ctx, cfg)
	require.NoError(t, err)

	t.Setenv("KITE_API_KEY", "")
	t.Setenv("KITE_ACCESS_TOKEN", "")
	cfg.MarketData.Source = "KITE"
	_, err = initializeQuoteSource(ctx, cfg)
	assert.Error(t, err)

	cfg.MarketData.Source = "BLOOMBERG"
	_, err = initializeQuoteSource(ctx, cfg)
	assert.Error(t, err)
}

type stubEngine struct {
	id  string
	res *types.CycleResult
	err error
}

func (s stubEngine) AccountID() string { return s.id }

func (s stubEngine) RunCycle(ctx context.Context) (*types.CycleResult, error) {
	return s.res, s.err
}

func TestRunCyclesKeepsOrderAndFillsFailures(t *testing.T) {
	results := runCycles(context.Background(), []interfaces.Engine{
		stubEngine{id: "a", res: &types.CycleResult{AccountID: "a", Success: true}},
		stubEngine{id: "b", err: errors.New("oracle timeout")},
	})

	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.Equal(t, "b", results[1].AccountID)
	assert.False(t, results[1].Success)
	assert.Equal(t, "oracle timeout", results[1].Error)
}
