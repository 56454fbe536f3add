package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"llm-equity-trader/internal/types"
)

// memLedger is a minimal in-memory ledger mirroring the badger valuation.
type memLedger struct {
	mu            sync.Mutex
	model         types.Model
	realized      decimal.Decimal
	buyFees       decimal.Decimal
	positions     []types.Position
	trades        []types.Trade
	conversations []types.Conversation
	values        []types.AccountValue
	failUpdate    map[string]error
	failPortfolio error
	failValue     error
}

func newMemLedger(capital int64) *memLedger {
	return &memLedger{
		model:      types.Model{ID: "acct", InitialCapital: decimal.NewFromInt(capital)},
		failUpdate: map[string]error{},
	}
}

func (m *memLedger) hold(symbol string, qty int64, avg int64) {
	m.positions = append(m.positions, types.Position{Symbol: symbol, Side: types.SideLong, Quantity: qty, AvgPrice: decimal.NewFromInt(avg), Leverage: 1})
}

func (m *memLedger) GetPortfolio(ctx context.Context, accountID string, prices map[string]decimal.Decimal) (*types.Portfolio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPortfolio != nil {
		return nil, m.failPortfolio
	}
	p := &types.Portfolio{Positions: append([]types.Position(nil), m.positions...)}
	margin := decimal.Zero
	for _, pos := range m.positions {
		qty := decimal.NewFromInt(pos.Quantity)
		margin = margin.Add(qty.Mul(pos.AvgPrice).Div(decimal.NewFromInt(int64(pos.Leverage))))
		cur, ok := prices[pos.Symbol]
		if !ok {
			cur = pos.AvgPrice
		}
		p.PositionsValue = p.PositionsValue.Add(qty.Mul(cur))
		p.UnrealizedPnL = p.UnrealizedPnL.Add(cur.Sub(pos.AvgPrice).Mul(qty))
	}
	p.MarginUsed = margin
	p.Cash = m.model.InitialCapital.Add(m.realized).Sub(m.buyFees).Sub(margin)
	p.TotalValue = p.Cash.Add(margin).Add(p.UnrealizedPnL)
	return p, nil
}

func (m *memLedger) GetModel(ctx context.Context, accountID string) (*types.Model, error) {
	model := m.model
	return &model, nil
}

func (m *memLedger) UpdatePosition(ctx context.Context, accountID, symbol string, qty int64, price decimal.Decimal, leverage int, side string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failUpdate[symbol]; err != nil {
		return err
	}
	for i, pos := range m.positions {
		if pos.Symbol == symbol && pos.Side == side {
			total := pos.AvgPrice.Mul(decimal.NewFromInt(pos.Quantity)).Add(price.Mul(decimal.NewFromInt(qty)))
			pos.Quantity += qty
			pos.AvgPrice = total.Div(decimal.NewFromInt(pos.Quantity))
			m.positions[i] = pos
			return nil
		}
	}
	m.positions = append(m.positions, types.Position{Symbol: symbol, Side: side, Quantity: qty, AvgPrice: price, Leverage: leverage})
	return nil
}

func (m *memLedger) ClosePosition(ctx context.Context, accountID, symbol, side string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, pos := range m.positions {
		if pos.Symbol == symbol && pos.Side == side {
			m.positions = append(m.positions[:i], m.positions[i+1:]...)
			return nil
		}
	}
	return errors.New("position not found")
}

func (m *memLedger) AddTrade(ctx context.Context, t types.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, t)
	m.realized = m.realized.Add(t.PnL)
	if t.Signal == types.SignalBuyToEnter {
		m.buyFees = m.buyFees.Add(t.Fee)
	}
	return nil
}

func (m *memLedger) RecordAccountValue(ctx context.Context, v types.AccountValue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failValue != nil {
		return m.failValue
	}
	m.values = append(m.values, v)
	return nil
}

func (m *memLedger) AddConversation(ctx context.Context, c types.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations = append(m.conversations, c)
	return nil
}

func (m *memLedger) UpsertDailyPrice(ctx context.Context, symbol string, price decimal.Decimal, date string) error {
	return nil
}

func (m *memLedger) GetLatestDailyPrices(ctx context.Context, symbols []string) (map[string]types.DailyPrice, error) {
	return map[string]types.DailyPrice{}, nil
}
