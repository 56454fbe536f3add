package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-equity-trader/internal/types"
)

type stubOracle struct {
	reply  string
	err    error
	prompt string
}

func (s *stubOracle) Complete(ctx context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.reply, s.err
}

func sampleInputs() (types.MarketState, types.AccountInfo, *types.Portfolio) {
	state := types.MarketState{
		"600519": {
			Quote: types.Quote{Symbol: "600519", Name: "Kweichow Moutai", Price: decimal.RequireFromString("1500.5")},
			Indicators: &types.TechnicalSnapshot{
				SMA5: 1490.123, SMA20: 1470, RSI14: 61.27, Change5dPct: 1.5, Change20dPct: -2.25,
			},
		},
		"000001": {
			Quote: types.Quote{Symbol: "000001", Name: "Ping An Bank", Price: decimal.RequireFromString("11.2")},
		},
	}
	account := types.AccountInfo{
		InitialCapital: decimal.NewFromInt(100000),
		TotalReturnPct: 2.5,
	}
	portfolio := &types.Portfolio{
		Cash:       decimal.NewFromInt(80000),
		TotalValue: decimal.NewFromInt(102500),
		Positions: []types.Position{
			{Symbol: "600519", Side: types.SideLong, Quantity: 15, AvgPrice: decimal.NewFromInt(1400), Leverage: 1},
		},
	}
	return state, account, portfolio
}

func TestRenderPromptContents(t *testing.T) {
	state, account, portfolio := sampleInputs()
	p := RenderPrompt(state, account, portfolio, PromptRules{MaxPositions: 3, MaxRiskPct: 5})

	assert.Contains(t, p, "600519 (Kweichow Moutai): 1500.50 | 5d change: +1.50% | 20d change: -2.25%")
	assert.Contains(t, p, "SMA5: 1490.12, SMA20: 1470.00, RSI14: 61.3")
	assert.Contains(t, p, "000001 (Ping An Bank): 11.20\n")
	assert.Contains(t, p, "- Initial capital: 100000.00")
	assert.Contains(t, p, "- Available cash: 80000.00")
	assert.Contains(t, p, "- Total return: 2.50%")
	assert.Contains(t, p, "- 600519 long 15 shares @ 1400.00")
	assert.Contains(t, p, "Hold at most 3 positions")
	assert.Contains(t, p, "at most 5% of available cash")
	assert.Contains(t, p, `"cot_trace"`)

	// quotes are listed in symbol order
	assert.Less(t, strings.Index(p, "000001 ("), strings.Index(p, "600519 ("))
}

func TestRenderPromptWithoutPositions(t *testing.T) {
	state, account, portfolio := sampleInputs()
	portfolio.Positions = nil
	p := RenderPrompt(state, account, portfolio, PromptRules{MaxPositions: 3, MaxRiskPct: 5})
	assert.Contains(t, p, "Open positions:\nNone\n")
}

func TestMakeDecisionNormalizesReply(t *testing.T) {
	oracle := &stubOracle{reply: "Sure!\n```json\n{\"decisions\": {\"600519\": {\"signal\": \"close_position\"}}, \"cot_trace\": \"take profit\"}\n```"}
	trader := NewTrader(oracle, PromptRules{MaxPositions: 3, MaxRiskPct: 5}, nil)

	state, account, portfolio := sampleInputs()
	reply, err := trader.MakeDecision(context.Background(), state, account, portfolio)
	require.NoError(t, err)

	assert.Equal(t, oracle.prompt, reply.Prompt)
	assert.Equal(t, oracle.reply, reply.Raw)
	assert.Equal(t, "take profit", reply.Reasoning)
	assert.Equal(t, types.SignalClosePosition, reply.Decisions["600519"].Signal)
}

func TestMakeDecisionOracleFailure(t *testing.T) {
	trader := NewTrader(&stubOracle{err: errors.New("connection refused")}, PromptRules{}, nil)
	state, account, portfolio := sampleInputs()

	reply, err := trader.MakeDecision(context.Background(), state, account, portfolio)
	assert.Nil(t, reply)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
