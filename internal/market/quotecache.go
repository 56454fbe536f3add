package market

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"llm-equity-trader/internal/interfaces"
	"llm-equity-trader/internal/logger"
	"llm-equity-trader/internal/metrics"
	"llm-equity-trader/internal/types"
)

const DefaultQuoteTTL = 5 * time.Second

type cacheEntry struct {
	quotes  map[string]types.Quote
	expires time.Time
}

// QuoteCache serves the freshest usable quote per symbol: live, then the
// stored close, then a live fallback fetch, then the last live snapshot.
// It is shared by all accounts and lives for the process lifetime.
type QuoteCache struct {
	source  interfaces.QuoteSource
	prices  interfaces.PriceStore
	gate    *Gate
	stocks  map[string]types.Stock
	ttl     time.Duration
	now     func() time.Time
	metrics *metrics.Metrics

	group singleflight.Group

	mu       sync.Mutex
	entries  map[string]cacheEntry
	lastLive map[string]types.Quote
	wasOpen  bool
}

type Option func(*QuoteCache)

func WithTTL(ttl time.Duration) Option {
	return func(c *QuoteCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *QuoteCache) { c.metrics = m }
}

func WithNow(now func() time.Time) Option {
	return func(c *QuoteCache) { c.now = now }
}

func NewQuoteCache(source interfaces.QuoteSource, prices interfaces.PriceStore, gate *Gate, universe []types.Stock, opts ...Option) *QuoteCache {
	c := &QuoteCache{
		source:   source,
		prices:   prices,
		gate:     gate,
		stocks:   make(map[string]types.Stock, len(universe)),
		ttl:      DefaultQuoteTTL,
		now:      time.Now,
		entries:  make(map[string]cacheEntry),
		lastLive: make(map[string]types.Quote),
	}
	for _, s := range universe {
		c.stocks[s.Symbol] = s
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetPrices returns a quote for every symbol some tier could price. A
// missing entry means no data; a zero price means the upstream failed.
func (c *QuoteCache) GetPrices(ctx context.Context, symbols []string) map[string]types.Quote {
	stocks := c.resolve(symbols)
	if len(stocks) == 0 {
		return map[string]types.Quote{}
	}

	open := c.gate.IsOpen()
	c.handleTransition(ctx, open)

	var result map[string]types.Quote
	if open {
		result = c.openMarketQuotes(ctx, stocks)
	} else {
		result = c.closedMarketQuotes(ctx, stocks)
	}

	for _, q := range result {
		c.metrics.QuoteServed(string(q.Freshness))
	}
	return result
}

func (c *QuoteCache) openMarketQuotes(ctx context.Context, stocks []types.Stock) map[string]types.Quote {
	quotes, err := c.fetchLive(ctx, stocks)
	if err != nil {
		logger.Warn(ctx, "Live quote fetch failed, degrading", "error", err, "symbols", len(stocks))
		return c.degraded(stocks)
	}

	today := c.gate.Today()
	result := make(map[string]types.Quote, len(stocks))

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range stocks {
		q, ok := quotes[s.Symbol]
		if !ok {
			continue
		}
		q.Freshness = types.FreshnessLive
		q.PriceDate = today
		result[s.Symbol] = q
		if q.Known() {
			c.lastLive[s.Symbol] = q
		}
	}
	return result
}

func (c *QuoteCache) closedMarketQuotes(ctx context.Context, stocks []types.Stock) map[string]types.Quote {
	result := make(map[string]types.Quote, len(stocks))

	symbols := make([]string, 0, len(stocks))
	for _, s := range stocks {
		symbols = append(symbols, s.Symbol)
	}
	stored, err := c.prices.GetLatestDailyPrices(ctx, symbols)
	if err != nil {
		logger.Warn(ctx, "Failed to read stored closing prices", "error", err)
	}
	for _, s := range stocks {
		dp, ok := stored[s.Symbol]
		if !ok || !dp.Price.IsPositive() {
			continue
		}
		result[s.Symbol] = types.Quote{
			Symbol:    s.Symbol,
			Price:     dp.Price,
			Name:      s.Name,
			Exchange:  s.Exchange,
			Freshness: types.FreshnessClosing,
			PriceDate: dp.Date,
		}
	}

	missing := missingStocks(stocks, result)
	if len(missing) > 0 {
		c.mergeLiveFallback(ctx, missing, result)
	}

	c.mergePreviousLive(missingStocks(stocks, result), result)
	return result
}

// mergeLiveFallback prices symbols with no stored close by fetching them
// live, storing the result as that day's close and remembering it as the
// last live snapshot.
func (c *QuoteCache) mergeLiveFallback(ctx context.Context, missing []types.Stock, result map[string]types.Quote) {
	quotes, err := c.fetchLive(ctx, missing)
	if err != nil {
		logger.Warn(ctx, "Live fallback fetch failed", "error", err, "symbols", len(missing))
		return
	}
	today := c.gate.Today()
	for _, s := range missing {
		q, ok := quotes[s.Symbol]
		if !ok || !q.Known() {
			continue
		}
		if err := c.prices.UpsertDailyPrice(ctx, s.Symbol, q.Price, today); err != nil {
			logger.Warn(ctx, "Failed to persist fallback closing price", "symbol", s.Symbol, "error", err)
		}
		q.PriceDate = today

		c.mu.Lock()
		live := q
		live.Freshness = types.FreshnessLive
		c.lastLive[s.Symbol] = live
		c.mu.Unlock()

		q.Freshness = types.FreshnessLiveFallback
		result[s.Symbol] = q
	}
}

func (c *QuoteCache) mergePreviousLive(missing []types.Stock, result map[string]types.Quote) {
	if len(missing) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range missing {
		if q, ok := c.lastLive[s.Symbol]; ok {
			q.Freshness = types.FreshnessPreviousLive
			result[s.Symbol] = q
		}
	}
}

// degraded serves the previous live snapshot where one exists and a
// zero-price placeholder elsewhere.
func (c *QuoteCache) degraded(stocks []types.Stock) map[string]types.Quote {
	result := make(map[string]types.Quote, len(stocks))
	c.mergePreviousLive(stocks, result)
	for _, s := range stocks {
		if _, ok := result[s.Symbol]; ok {
			continue
		}
		result[s.Symbol] = types.Quote{
			Symbol:   s.Symbol,
			Price:    decimal.Zero,
			Name:     s.Name,
			Exchange: s.Exchange,
		}
	}
	return result
}

// handleTransition persists the last live snapshot as closing prices once
// per open-to-closed transition.
func (c *QuoteCache) handleTransition(ctx context.Context, open bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	closing := c.wasOpen && !open
	c.wasOpen = open
	if !closing || len(c.lastLive) == 0 {
		return
	}

	persisted := 0
	for sym, q := range c.lastLive {
		if err := c.prices.UpsertDailyPrice(ctx, sym, q.Price, q.PriceDate); err != nil {
			logger.Warn(ctx, "Failed to persist closing price", "symbol", sym, "error", err)
			continue
		}
		persisted++
	}
	logger.Info(ctx, "Market closed, stored last live snapshot as closing prices", "symbols", persisted)
}

// fetchLive consults the short TTL cache for this exact symbol set and
// coalesces concurrent refreshes of the same key.
func (c *QuoteCache) fetchLive(ctx context.Context, stocks []types.Stock) (map[string]types.Quote, error) {
	key := cacheKey(stocks)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.now().Before(e.expires) {
		c.mu.Unlock()
		return copyQuotes(e.quotes), nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (any, error) {
		quotes, err := c.source.Fetch(ctx, stocks)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = cacheEntry{quotes: quotes, expires: c.now().Add(c.ttl)}
		c.mu.Unlock()
		return quotes, nil
	})
	if err != nil {
		return nil, err
	}
	return copyQuotes(v.(map[string]types.Quote)), nil
}

func (c *QuoteCache) resolve(symbols []string) []types.Stock {
	seen := make(map[string]bool, len(symbols))
	out := make([]types.Stock, 0, len(symbols))
	for _, sym := range symbols {
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		s, ok := c.stocks[sym]
		if !ok {
			s = types.Stock{Symbol: sym, APISymbol: sym}
		}
		out = append(out, s)
	}
	return out
}

func cacheKey(stocks []types.Stock) string {
	syms := make([]string, len(stocks))
	for i, s := range stocks {
		syms[i] = s.Symbol
	}
	sort.Strings(syms)
	return strings.Join(syms, ",")
}

func missingStocks(stocks []types.Stock, have map[string]types.Quote) []types.Stock {
	var out []types.Stock
	for _, s := range stocks {
		if _, ok := have[s.Symbol]; !ok {
			out = append(out, s)
		}
	}
	return out
}

func copyQuotes(in map[string]types.Quote) map[string]types.Quote {
	out := make(map[string]types.Quote, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
