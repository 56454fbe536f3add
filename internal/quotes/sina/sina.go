package sina

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/simplifiedchinese"

	"llm-equity-trader/internal/api"
	"llm-equity-trader/internal/interfaces"
	"llm-equity-trader/internal/types"
)

const (
	DefaultQuoteURL = "https://hq.sinajs.cn/list="
	DefaultKlineURL = "https://quotes.sina.cn/cn/api/jsonp_v2.php/var=/CN_MarketDataService.getKLineData"
)

// Params configures the Sina feed.
type Params struct {
	QuoteURL          string
	KlineURL          string
	Timeout           time.Duration
	RequestsPerSecond float64
	// Debug logs every request and response.
	Debug             bool
}

// Source reads the GBK encoded hq.sinajs.cn quote list and the kline
// JSONP endpoint.
type Source struct {
	client   *api.Client
	quoteURL string
	klineURL string
}

var (
	_ interfaces.QuoteSource   = (*Source)(nil)
	_ interfaces.HistorySource = (*Source)(nil)
)

func New(p Params) *Source {
	if p.QuoteURL == "" {
		p.QuoteURL = DefaultQuoteURL
	}
	if p.KlineURL == "" {
		p.KlineURL = DefaultKlineURL
	}
	if p.Timeout <= 0 {
		p.Timeout = 5 * time.Second
	}
	return &Source{
		client: api.NewClient(
			api.WithTimeout(p.Timeout),
			api.WithHeaders(api.SinaHeaders()),
			api.WithRateLimit(p.RequestsPerSecond, 2),
			api.WithLogging(p.Debug),
		),
		quoteURL: p.QuoteURL,
		klineURL: p.KlineURL,
	}
}

// Code converts a universe entry to Sina's prefixed code, e.g. sh600519.
func Code(s types.Stock) string {
	switch strings.ToLower(s.Exchange) {
	case "xshg", "sh", "sse":
		return "sh" + s.Symbol
	case "xshe", "sz", "szse":
		return "sz" + s.Symbol
	case "bj", "bse", "xbse":
		return "bj" + s.Symbol
	}
	if strings.HasPrefix(s.Symbol, "6") {
		return "sh" + s.Symbol
	}
	return "sz" + s.Symbol
}

func (s *Source) Fetch(ctx context.Context, stocks []types.Stock) (map[string]types.Quote, error) {
	if len(stocks) == 0 {
		return map[string]types.Quote{}, nil
	}

	byCode := make(map[string]types.Stock, len(stocks))
	codes := make([]string, 0, len(stocks))
	for _, st := range stocks {
		c := Code(st)
		byCode[c] = st
		codes = append(codes, c)
	}

	resp, err := s.client.GET(ctx, s.quoteURL+strings.Join(codes, ","))
	if err != nil {
		return nil, fmt.Errorf("sina quote request: %w", err)
	}
	body, err := simplifiedchinese.GBK.NewDecoder().Bytes(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("sina quote decode: %w", err)
	}
	return ParseQuotes(string(body), byCode), nil
}

// ParseQuotes reads lines of the form
//
//	var hq_str_sh600519="NAME,open,prev_close,price,...";
//
// skipping empty or short records.
func ParseQuotes(body string, byCode map[string]types.Stock) map[string]types.Quote {
	out := make(map[string]types.Quote)
	for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
		eq := strings.Index(line, "=")
		if eq < 0 {
			continue
		}
		lhs := strings.TrimSpace(line[:eq])
		code := lhs[strings.LastIndex(lhs, "_")+1:]
		st, ok := byCode[code]
		if !ok {
			continue
		}

		data := strings.Trim(strings.TrimSpace(line[eq+1:]), `;"`)
		fields := strings.Split(data, ",")
		if data == "" || len(fields) < 4 {
			continue
		}

		price, _ := decimal.NewFromString(fields[3])
		prevClose, _ := decimal.NewFromString(fields[2])
		if !price.IsPositive() && prevClose.IsPositive() {
			// suspended or pre-open: Sina reports 0.000 as current price
			price = prevClose
		}
		name := strings.TrimSpace(fields[0])
		if name == "" {
			name = st.Name
		}
		out[st.Symbol] = types.Quote{
			Symbol:    st.Symbol,
			Price:     price,
			PrevClose: prevClose,
			Name:      name,
			Exchange:  st.Exchange,
		}
	}
	return out
}

type klineBar struct {
	Day   string      `json:"day"`
	Close json.Number `json:"close"`
}

func (s *Source) History(ctx context.Context, stock types.Stock, days int) ([]float64, error) {
	req := api.NewRequest(http.MethodGet, s.klineURL).
		WithContext(ctx).
		WithQuery("symbol", Code(stock)).
		WithQuery("scale", "240").
		WithQuery("ma", "no").
		WithQuery("datalen", strconv.Itoa(days))

	resp, err := s.client.DoWithRetry(req, &api.RetryConfig{MaxAttempts: 2, InitialWait: 200 * time.Millisecond, MaxWait: time.Second})
	if err != nil {
		return nil, fmt.Errorf("sina kline %s: %w", stock.Symbol, err)
	}
	return ParseKline(resp.String())
}

// ParseKline strips the JSONP wrapper ("/*comment*/ var=(...);") and
// returns closes oldest first.
func ParseKline(text string) ([]float64, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, ";")
	for strings.HasPrefix(text, "/*") {
		end := strings.Index(text, "*/")
		if end < 0 {
			break
		}
		text = strings.TrimSpace(text[end+2:])
	}
	if i := strings.Index(text, "="); i >= 0 {
		text = strings.TrimSpace(text[i+1:])
	}
	if strings.HasPrefix(text, "(") && strings.HasSuffix(text, ")") {
		text = strings.TrimSpace(text[1 : len(text)-1])
	}
	if text == "" || text == "null" || text == "[]" {
		return nil, errors.New("empty kline payload")
	}

	var bars []klineBar
	if err := json.Unmarshal([]byte(text), &bars); err != nil {
		return nil, fmt.Errorf("parse kline: %w", err)
	}
	closes := make([]float64, 0, len(bars))
	for _, b := range bars {
		if b.Day == "" {
			continue
		}
		c, err := b.Close.Float64()
		if err != nil {
			continue
		}
		closes = append(closes, c)
	}
	return closes, nil
}
