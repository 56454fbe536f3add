package engineobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-equity-trader/internal/types"
)

type stubEngine struct {
	result *types.CycleResult
	err    error
}

func (s stubEngine) AccountID() string { return "acct" }

func (s stubEngine) RunCycle(ctx context.Context) (*types.CycleResult, error) {
	return s.result, s.err
}

func TestWrapReturnsResult(t *testing.T) {
	want := &types.CycleResult{AccountID: "acct", Success: true, Executions: []types.ExecutionResult{{Status: types.StatusExecuted}}}
	eng := Wrap(stubEngine{result: want})

	assert.Equal(t, "acct", eng.AccountID())
	got, err := eng.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Same(t, want, got)
}

func TestWrapKeepsFailedResult(t *testing.T) {
	failed := &types.CycleResult{AccountID: "acct", Error: "oracle down"}
	got, err := Wrap(stubEngine{result: failed, err: errors.New("oracle down")}).RunCycle(context.Background())
	assert.Error(t, err)
	assert.Same(t, failed, got)
}

func TestWrapSkipped(t *testing.T) {
	got, err := Wrap(stubEngine{result: &types.CycleResult{Skipped: true}}).RunCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Skipped)
}
