package quoteobs

import (
	"context"

	"llm-equity-trader/internal/interfaces"
	"llm-equity-trader/internal/logger"
	"llm-equity-trader/internal/trace"
	"llm-equity-trader/internal/types"
)

// Source is a feed that serves both quotes and daily history.
type Source interface {
	interfaces.QuoteSource
	interfaces.HistorySource
}

// observableSource wraps a Source with observability (logging & tracing)
type observableSource struct {
	src  Source
	name string
}

var _ Source = (*observableSource)(nil)

// Wrap wraps a quote feed with observability middleware
func Wrap(name string, src Source) Source {
	return &observableSource{src: src, name: name}
}

func (o *observableSource) Fetch(ctx context.Context, stocks []types.Stock) (map[string]types.Quote, error) {
	ctx, span := trace.StartSpan(ctx, "quotes.Fetch")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching quotes", "source", o.name, "count", len(stocks))

	quotes, err := o.src.Fetch(ctx, stocks)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch quotes", err, "source", o.name, "count", len(stocks))
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Quotes fetched", "source", o.name, "requested", len(stocks), "received", len(quotes))
	return quotes, nil
}

func (o *observableSource) History(ctx context.Context, stock types.Stock, days int) ([]float64, error) {
	ctx, span := trace.StartSpan(ctx, "quotes.History")
	defer span.End()

	closes, err := o.src.History(ctx, stock, days)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch history", err, "source", o.name, "symbol", stock.Symbol, "days", days)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "History fetched", "source", o.name, "symbol", stock.Symbol, "points", len(closes))
	return closes, nil
}
