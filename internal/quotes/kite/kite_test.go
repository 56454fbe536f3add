package kite

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"llm-equity-trader/internal/types"
)

type fakeKite struct {
	quoteJSON  string
	quoteErr   error
	requested  []string
	quoteCalls int
	bars       []kiteconnect.HistoricalData
	histErr    error
	histToken  int
	histCalls  int
}

func (f *fakeKite) GetQuote(instruments ...string) (kiteconnect.Quote, error) {
	f.quoteCalls++
	f.requested = instruments
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	var q kiteconnect.Quote
	if err := json.Unmarshal([]byte(f.quoteJSON), &q); err != nil {
		return nil, err
	}
	return q, nil
}

func (f *fakeKite) GetHistoricalData(token int, interval string, from, to time.Time, continuous, oi bool) ([]kiteconnect.HistoricalData, error) {
	f.histCalls++
	f.histToken = token
	return f.bars, f.histErr
}

const infyQuote = `{"NSE:INFY":{"instrument_token":408065,"last_price":1502.5,"ohlc":{"open":1490,"high":1510,"low":1488,"close":1495.25}}}`

var infy = types.Stock{Symbol: "INFY", Name: "Infosys", Exchange: "NSE"}

func TestInstrumentKey(t *testing.T) {
	s := newSource(&fakeKite{}, Params{})
	assert.Equal(t, "NSE:INFY", s.instrument(types.Stock{Symbol: "INFY"}))
	assert.Equal(t, "BSE:TCS", s.instrument(types.Stock{Symbol: "TCS", Exchange: "bse"}))
	assert.Equal(t, "NSE:M&M", s.instrument(types.Stock{Symbol: "MM", APISymbol: "M&M"}))
	assert.Equal(t, "NFO:NIFTY", s.instrument(types.Stock{Symbol: "NIFTY", APISymbol: "NFO:NIFTY"}))
}

func TestFetchMapsQuotes(t *testing.T) {
	fk := &fakeKite{quoteJSON: infyQuote}
	s := newSource(fk, Params{})

	got, err := s.Fetch(context.Background(), []types.Stock{infy})
	require.NoError(t, err)
	assert.Equal(t, []string{"NSE:INFY"}, fk.requested)

	q := got["INFY"]
	assert.True(t, q.Price.Equal(decimal.RequireFromString("1502.5")))
	assert.True(t, q.PrevClose.Equal(decimal.RequireFromString("1495.25")))
	assert.Equal(t, "Infosys", q.Name)

	token, ok := s.mapper.getToken("INFY")
	require.True(t, ok)
	assert.Equal(t, 408065, token)
}

func TestFetchError(t *testing.T) {
	s := newSource(&fakeKite{quoteErr: errors.New("TokenException")}, Params{})
	_, err := s.Fetch(context.Background(), []types.Stock{infy})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TokenException")
}

func TestHistoryResolvesTokenAndTrims(t *testing.T) {
	fk := &fakeKite{
		quoteJSON: infyQuote,
		bars: []kiteconnect.HistoricalData{
			{Close: 1480}, {Close: 1490}, {Close: 1500},
		},
	}
	s := newSource(fk, Params{})

	closes, err := s.History(context.Background(), infy, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{1490, 1500}, closes)
	assert.Equal(t, 408065, fk.histToken)
	assert.Equal(t, 1, fk.quoteCalls)

	// token is cached after the first lookup
	_, err = s.History(context.Background(), infy, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, fk.quoteCalls)
	assert.Equal(t, 2, fk.histCalls)
}

func TestHistoryWithoutTokenFails(t *testing.T) {
	s := newSource(&fakeKite{quoteJSON: `{}`}, Params{})
	_, err := s.History(context.Background(), infy, 20)
	assert.Error(t, err)
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Params{APIKey: "key"})
	assert.Error(t, err)
}
