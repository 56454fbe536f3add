package interfaces

import (
	"context"

	"github.com/shopspring/decimal"

	"llm-equity-trader/internal/types"
)

// PriceStore persists closing prices used by the quote cache.
type PriceStore interface {
	UpsertDailyPrice(ctx context.Context, symbol string, price decimal.Decimal, date string) error
	GetLatestDailyPrices(ctx context.Context, symbols []string) (map[string]types.DailyPrice, error)
}

// Ledger owns cash, positions and trade history per account.
type Ledger interface {
	PriceStore
	GetPortfolio(ctx context.Context, accountID string, prices map[string]decimal.Decimal) (*types.Portfolio, error)
	GetModel(ctx context.Context, accountID string) (*types.Model, error)
	UpdatePosition(ctx context.Context, accountID, symbol string, qty int64, price decimal.Decimal, leverage int, side string) error
	ClosePosition(ctx context.Context, accountID, symbol, side string) error
	AddTrade(ctx context.Context, trade types.Trade) error
	RecordAccountValue(ctx context.Context, value types.AccountValue) error
	AddConversation(ctx context.Context, conv types.Conversation) error
}
