package yahoo

import (
	"context"
	"fmt"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"

	"llm-equity-trader/internal/interfaces"
	"llm-equity-trader/internal/types"
)

// Source reads Yahoo Finance quotes and daily bars through finance-go.
// Universe entries carry the Yahoo ticker (e.g. 600519.SS) in APISymbol.
type Source struct {
	timeout time.Duration
	quotes  func(tickers []string) ([]finance.Quote, error)
	closes  func(ticker string, start, end time.Time) ([]float64, error)
}

var (
	_ interfaces.QuoteSource   = (*Source)(nil)
	_ interfaces.HistorySource = (*Source)(nil)
)

func New(timeout time.Duration) *Source {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Source{timeout: timeout, quotes: listQuotes, closes: dailyCloses}
}

func ticker(s types.Stock) string {
	if s.APISymbol != "" {
		return s.APISymbol
	}
	return s.Symbol
}

func listQuotes(tickers []string) ([]finance.Quote, error) {
	iter := quote.List(tickers)
	var out []finance.Quote
	for iter.Next() {
		if q := iter.Quote(); q != nil {
			out = append(out, *q)
		}
	}
	return out, iter.Err()
}

func dailyCloses(t string, start, end time.Time) ([]float64, error) {
	iter := chart.Get(&chart.Params{
		Symbol:   t,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	})
	var out []float64
	for iter.Next() {
		c, _ := iter.Bar().Close.Float64()
		out = append(out, c)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Source) Fetch(ctx context.Context, stocks []types.Stock) (map[string]types.Quote, error) {
	if len(stocks) == 0 {
		return map[string]types.Quote{}, nil
	}

	byTicker := make(map[string]types.Stock, len(stocks))
	tickers := make([]string, 0, len(stocks))
	for _, st := range stocks {
		t := ticker(st)
		byTicker[t] = st
		tickers = append(tickers, t)
	}

	var qs []finance.Quote
	err := s.withTimeout(ctx, func() error {
		var err error
		qs, err = s.quotes(tickers)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("yahoo quote: %w", err)
	}

	out := make(map[string]types.Quote, len(qs))
	for _, q := range qs {
		st, ok := byTicker[q.Symbol]
		if !ok {
			continue
		}
		name := st.Name
		if name == "" {
			name = q.ShortName
		}
		exchange := st.Exchange
		if exchange == "" {
			exchange = q.FullExchangeName
		}
		out[st.Symbol] = types.Quote{
			Symbol:    st.Symbol,
			Price:     decimal.NewFromFloat(q.RegularMarketPrice),
			PrevClose: decimal.NewFromFloat(q.RegularMarketPreviousClose),
			Name:      name,
			Exchange:  exchange,
		}
	}
	return out, nil
}

func (s *Source) History(ctx context.Context, stock types.Stock, days int) ([]float64, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -days*3/2-7)

	var closes []float64
	err := s.withTimeout(ctx, func() error {
		var err error
		closes, err = s.closes(ticker(stock), start, end)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("yahoo history %s: %w", stock.Symbol, err)
	}
	if len(closes) > days {
		closes = closes[len(closes)-days:]
	}
	return closes, nil
}

func (s *Source) withTimeout(ctx context.Context, call func() error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- call() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
