package interfaces

import (
	"context"

	"llm-equity-trader/internal/types"
)

// QuoteSource fetches current quotes for a set of universe entries.
type QuoteSource interface {
	Fetch(ctx context.Context, stocks []types.Stock) (map[string]types.Quote, error)
}

// HistorySource returns up to days closing prices, oldest first.
type HistorySource interface {
	History(ctx context.Context, stock types.Stock, days int) ([]float64, error)
}
