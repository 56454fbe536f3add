package kite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"llm-equity-trader/internal/interfaces"
	"llm-equity-trader/internal/types"
)

// kiteAPI is the subset of *kiteconnect.Client used here.
type kiteAPI interface {
	GetQuote(instruments ...string) (kiteconnect.Quote, error)
	GetHistoricalData(instrumentToken int, interval string, fromDate time.Time, toDate time.Time, continuous bool, OI bool) ([]kiteconnect.HistoricalData, error)
}

type Params struct {
	APIKey      string
	AccessToken string
	Exchange    string
	Timeout     time.Duration
}

// Source serves quotes and daily closes from Zerodha Kite Connect.
type Source struct {
	kc       kiteAPI
	exchange string
	timeout  time.Duration
	mapper   *instrumentMapper
}

var (
	_ interfaces.QuoteSource   = (*Source)(nil)
	_ interfaces.HistorySource = (*Source)(nil)
)

func New(p Params) (*Source, error) {
	if p.APIKey == "" || p.AccessToken == "" {
		return nil, errors.New("missing KITE_API_KEY/KITE_ACCESS_TOKEN")
	}
	kc := kiteconnect.New(p.APIKey)
	kc.SetAccessToken(p.AccessToken)
	return newSource(kc, p), nil
}

func newSource(kc kiteAPI, p Params) *Source {
	if p.Exchange == "" {
		p.Exchange = "NSE"
	}
	if p.Timeout <= 0 {
		p.Timeout = 5 * time.Second
	}
	return &Source{kc: kc, exchange: p.Exchange, timeout: p.Timeout, mapper: newInstrumentMapper()}
}

// instrument returns the EXCHANGE:TRADINGSYMBOL key Kite expects.
func (s *Source) instrument(st types.Stock) string {
	if strings.Contains(st.APISymbol, ":") {
		return st.APISymbol
	}
	ex := st.Exchange
	if ex == "" {
		ex = s.exchange
	}
	sym := st.APISymbol
	if sym == "" {
		sym = st.Symbol
	}
	return strings.ToUpper(ex) + ":" + sym
}

func (s *Source) Fetch(ctx context.Context, stocks []types.Stock) (map[string]types.Quote, error) {
	if len(stocks) == 0 {
		return map[string]types.Quote{}, nil
	}

	keys := make([]string, 0, len(stocks))
	byKey := make(map[string]types.Stock, len(stocks))
	for _, st := range stocks {
		k := s.instrument(st)
		keys = append(keys, k)
		byKey[k] = st
	}

	var quote kiteconnect.Quote
	err := s.withTimeout(ctx, func() error {
		var err error
		quote, err = s.kc.GetQuote(keys...)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("kite quote: %w", err)
	}

	out := make(map[string]types.Quote, len(quote))
	for key, q := range quote {
		st, ok := byKey[key]
		if !ok {
			continue
		}
		s.mapper.addMapping(st.Symbol, q.InstrumentToken)
		out[st.Symbol] = types.Quote{
			Symbol:    st.Symbol,
			Price:     decimal.NewFromFloat(q.LastPrice),
			PrevClose: decimal.NewFromFloat(q.OHLC.Close),
			Name:      st.Name,
			Exchange:  st.Exchange,
		}
	}
	return out, nil
}

func (s *Source) History(ctx context.Context, stock types.Stock, days int) ([]float64, error) {
	token, ok := s.mapper.getToken(stock.Symbol)
	if !ok {
		if _, err := s.Fetch(ctx, []types.Stock{stock}); err != nil {
			return nil, err
		}
		if token, ok = s.mapper.getToken(stock.Symbol); !ok {
			return nil, fmt.Errorf("kite: no instrument token for %s", stock.Symbol)
		}
	}

	to := time.Now()
	// calendar days; weekends and holidays leave gaps
	from := to.AddDate(0, 0, -days*3/2-7)

	var bars []kiteconnect.HistoricalData
	err := s.withTimeout(ctx, func() error {
		var err error
		bars, err = s.kc.GetHistoricalData(token, "day", from, to, false, false)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("kite history %s: %w", stock.Symbol, err)
	}

	if len(bars) > days {
		bars = bars[len(bars)-days:]
	}
	closes := make([]float64, 0, len(bars))
	for _, b := range bars {
		closes = append(closes, b.Close)
	}
	return closes, nil
}

// withTimeout bounds a blocking SDK call, which takes no context.
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
