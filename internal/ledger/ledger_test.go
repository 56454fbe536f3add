package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-equity-trader/internal/types"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.CreateModel(context.Background(), types.Model{
		ID: "gpt", Name: "GPT", Provider: "OPENAI", ModelName: "gpt-4o", InitialCapital: decimal.NewFromInt(100000),
	}))
	return s
}

func TestModelLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	m, err := s.GetModel(ctx, "gpt")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", m.ModelName)
	assert.False(t, m.CreatedAt.IsZero())

	assert.ErrorIs(t, s.CreateModel(ctx, types.Model{ID: "gpt"}), ErrModelExists)

	_, err = s.GetModel(ctx, "missing")
	assert.ErrorIs(t, err, ErrModelNotFound)

	kept, err := s.EnsureModel(ctx, types.Model{ID: "gpt", InitialCapital: decimal.NewFromInt(1)})
	require.NoError(t, err)
	assert.True(t, kept.InitialCapital.Equal(decimal.NewFromInt(100000)), "existing capital is kept")

	created, err := s.EnsureModel(ctx, types.Model{ID: "claude", InitialCapital: decimal.NewFromInt(50000)})
	require.NoError(t, err)
	assert.Equal(t, "claude", created.ID)
}

func TestEmptyPortfolio(t *testing.T) {
	p, err := newStore(t).GetPortfolio(context.Background(), "gpt", nil)
	require.NoError(t, err)
	assert.True(t, p.Cash.Equal(decimal.NewFromInt(100000)))
	assert.True(t, p.TotalValue.Equal(decimal.NewFromInt(100000)))
	assert.Empty(t, p.Positions)
}

func TestPortfolioValuation(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.UpdatePosition(ctx, "gpt", "600519", 10, dec("1000"), 1, types.SideLong))
	require.NoError(t, s.AddTrade(ctx, types.Trade{AccountID: "gpt", Symbol: "600519", Signal: types.SignalBuyToEnter, Quantity: 10, Price: dec("1000"), Fee: dec("10")}))
	require.NoError(t, s.UpdatePosition(ctx, "gpt", "000001", 100, dec("10"), 2, types.SideLong))
	require.NoError(t, s.AddTrade(ctx, types.Trade{AccountID: "gpt", Symbol: "000001", Signal: types.SignalBuyToEnter, Quantity: 100, Price: dec("10"), Fee: dec("1")}))

	p, err := s.GetPortfolio(ctx, "gpt", map[string]decimal.Decimal{"600519": dec("1100")})
	require.NoError(t, err)

	// margin: 10*1000/1 + 100*10/2 = 10500
	assert.True(t, p.MarginUsed.Equal(dec("10500")), "margin %s", p.MarginUsed)
	assert.True(t, p.Cash.Equal(dec("89489")), "cash %s", p.Cash)
	// 000001 has no price and is valued at cost
	assert.True(t, p.PositionsValue.Equal(dec("12000")), "positions %s", p.PositionsValue)
	assert.True(t, p.UnrealizedPnL.Equal(dec("1000")))
	assert.True(t, p.TotalValue.Equal(dec("100989")), "total %s", p.TotalValue)

	require.Len(t, p.Positions, 2)
	assert.Equal(t, "600519", p.Positions[0].Symbol, "positions keep insertion order")
	assert.Equal(t, "000001", p.Positions[1].Symbol)
}

func TestUpdatePositionAveragesAndKeepsLeverage(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.UpdatePosition(ctx, "gpt", "600519", 10, dec("1000"), 1, types.SideLong))
	require.NoError(t, s.UpdatePosition(ctx, "gpt", "600519", 30, dec("1200"), 3, types.SideLong))

	p, err := s.GetPortfolio(ctx, "gpt", nil)
	require.NoError(t, err)
	require.Len(t, p.Positions, 1)
	pos := p.Positions[0]
	assert.EqualValues(t, 40, pos.Quantity)
	assert.True(t, pos.AvgPrice.Equal(dec("1150")), "avg %s", pos.AvgPrice)
	assert.Equal(t, 1, pos.Leverage)

	assert.Error(t, s.UpdatePosition(ctx, "gpt", "600519", 0, dec("1"), 1, types.SideLong))
}

func TestCloseRealizesPnL(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.UpdatePosition(ctx, "gpt", "600519", 10, dec("1000"), 1, types.SideLong))
	require.NoError(t, s.AddTrade(ctx, types.Trade{AccountID: "gpt", Symbol: "600519", Signal: types.SignalBuyToEnter, Quantity: 10, Price: dec("1000"), Fee: dec("10")}))
	require.NoError(t, s.ClosePosition(ctx, "gpt", "600519", types.SideLong))
	require.NoError(t, s.AddTrade(ctx, types.Trade{AccountID: "gpt", Symbol: "600519", Signal: types.SignalClosePosition, Quantity: 10, Price: dec("1050"), Fee: dec("10.5"), PnL: dec("489.5")}))

	p, err := s.GetPortfolio(ctx, "gpt", nil)
	require.NoError(t, err)
	assert.Empty(t, p.Positions)
	assert.True(t, p.Cash.Equal(dec("100479.5")), "cash %s", p.Cash)

	assert.ErrorIs(t, s.ClosePosition(ctx, "gpt", "600519", types.SideLong), ErrPositionNotFound)

	trades, err := s.ListTrades(ctx, "gpt", 0)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, types.SignalBuyToEnter, trades[0].Signal)
	assert.Equal(t, types.SignalClosePosition, trades[1].Signal)

	last, err := s.ListTrades(ctx, "gpt", 1)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, types.SignalClosePosition, last[0].Signal)
}

func TestAccountsAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.CreateModel(ctx, types.Model{ID: "gp", InitialCapital: decimal.NewFromInt(1000)}))

	require.NoError(t, s.UpdatePosition(ctx, "gpt", "600519", 1, dec("100"), 1, types.SideLong))

	p, err := s.GetPortfolio(ctx, "gp", nil)
	require.NoError(t, err)
	assert.Empty(t, p.Positions)
}

func TestDailyPrices(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.UpsertDailyPrice(ctx, "600519", dec("1490"), "2026-02-27"))
	require.NoError(t, s.UpsertDailyPrice(ctx, "600519", dec("1502.3"), "2026-03-02"))
	require.NoError(t, s.UpsertDailyPrice(ctx, "600519", dec("1500"), "2026-03-02"))
	require.NoError(t, s.UpsertDailyPrice(ctx, "000001", dec("11.05"), "2026-03-02"))

	got, err := s.GetLatestDailyPrices(ctx, []string{"600519", "300750"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2026-03-02", got["600519"].Date)
	assert.True(t, got["600519"].Price.Equal(dec("1500")), "upsert replaces the day's close")
}

func TestHistoryLists(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordAccountValue(ctx, types.AccountValue{AccountID: "gpt", TotalValue: decimal.NewFromInt(int64(100000 + i)), Timestamp: base.Add(time.Duration(i) * time.Minute)}))
	}
	require.NoError(t, s.AddConversation(ctx, types.Conversation{AccountID: "gpt", Prompt: "p", RawResponse: "{}", Reasoning: "flat"}))

	values, err := s.ListAccountValues(ctx, "gpt", 2)
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.True(t, values[1].TotalValue.Equal(decimal.NewFromInt(100002)))

	convs, err := s.ListConversations(ctx, "gpt", 10)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "flat", convs[0].Reasoning)
}

func TestCancelledContext(t *testing.T) {
	s := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.GetPortfolio(ctx, "gpt", nil)
	assert.ErrorIs(t, err, context.Canceled)
}
