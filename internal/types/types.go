package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stock is one entry of the configured trading universe.
type Stock struct {
	Symbol    string `json:"symbol" yaml:"symbol"`
	Name      string `json:"name" yaml:"name"`
	Exchange  string `json:"exchange" yaml:"exchange"`
	APISymbol string `json:"api_symbol,omitempty" yaml:"api_symbol"`
}

type Freshness string

const (
	FreshnessLive         Freshness = "live"
	FreshnessClosing      Freshness = "closing"
	FreshnessLiveFallback Freshness = "live_fallback"
	FreshnessPreviousLive Freshness = "previous_live"
)

// Quote is a point-in-time price for one symbol. A zero Price means the
// price is unknown.
type Quote struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	PrevClose decimal.Decimal `json:"prev_close"`
	Name      string          `json:"name"`
	Exchange  string          `json:"exchange"`
	Freshness Freshness       `json:"source,omitempty"`
	PriceDate string          `json:"price_date,omitempty"`
}

// Known reports whether the quote carries a usable price.
func (q Quote) Known() bool { return q.Price.IsPositive() }

type TechnicalSnapshot struct {
	SMA5         float64 `json:"sma_5"`
	SMA20        float64 `json:"sma_20"`
	RSI14        float64 `json:"rsi_14"`
	Change5dPct  float64 `json:"change_5d"`
	Change20dPct float64 `json:"change_20d"`
	LastPrice    float64 `json:"current_price"`
}

// SymbolState is the per-symbol market view handed to the oracle.
type SymbolState struct {
	Quote      Quote              `json:"quote"`
	Indicators *TechnicalSnapshot `json:"indicators,omitempty"`
}

// MarketState maps tracked symbols with a known price to their state.
type MarketState map[string]SymbolState

const SideLong = "long"

type Position struct {
	Symbol   string          `json:"symbol"`
	Side     string          `json:"side"`
	Quantity int64           `json:"quantity"`
	AvgPrice decimal.Decimal `json:"avg_price"`
	Leverage int             `json:"leverage"`
	Seq      uint64          `json:"seq"`
	OpenedAt time.Time       `json:"opened_at"`
}

type Portfolio struct {
	Cash           decimal.Decimal `json:"cash"`
	MarginUsed     decimal.Decimal `json:"margin_used"`
	PositionsValue decimal.Decimal `json:"positions_value"`
	UnrealizedPnL  decimal.Decimal `json:"unrealized_pnl"`
	TotalValue     decimal.Decimal `json:"total_value"`
	Positions      []Position      `json:"positions"`
}

// Position returns the open position for symbol, if any.
func (p *Portfolio) Position(symbol string) (Position, bool) {
	for _, pos := range p.Positions {
		if pos.Symbol == symbol {
			return pos, true
		}
	}
	return Position{}, false
}

// Model is a managed trading account and its oracle settings.
type Model struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Provider       string          `json:"provider"`
	ModelName      string          `json:"model_name"`
	InitialCapital decimal.Decimal `json:"initial_capital"`
	CreatedAt      time.Time       `json:"created_at"`
}

type AccountInfo struct {
	InitialCapital decimal.Decimal `json:"initial_capital"`
	TotalValue     decimal.Decimal `json:"total_value"`
	Cash           decimal.Decimal `json:"cash"`
	TotalReturnPct float64         `json:"total_return"`
}

type Signal string

const (
	SignalBuyToEnter    Signal = "buy_to_enter"
	SignalSellToEnter   Signal = "sell_to_enter"
	SignalClosePosition Signal = "close_position"
	SignalHold          Signal = "hold"
)

// TradeDecision is one oracle instruction after normalization. Values are
// untrusted; HasRiskBudget is false when the oracle omitted the field.
type TradeDecision struct {
	Symbol        string  `json:"symbol"`
	Signal        Signal  `json:"signal"`
	Quantity      int64   `json:"quantity"`
	Confidence    float64 `json:"confidence"`
	RiskBudgetPct float64 `json:"risk_budget_pct"`
	HasRiskBudget bool    `json:"-"`
	Leverage      int     `json:"leverage"`
	ProfitTarget  float64 `json:"profit_target"`
	StopLoss      float64 `json:"stop_loss"`
	Justification string  `json:"justification"`
}

type ExecStatus string

const (
	StatusExecuted ExecStatus = "executed"
	StatusInfo     ExecStatus = "info"
	StatusRejected ExecStatus = "rejected"
	StatusError    ExecStatus = "error"
)

type ExecutionResult struct {
	Symbol   string          `json:"symbol"`
	Signal   Signal          `json:"signal"`
	Status   ExecStatus      `json:"status"`
	Quantity int64           `json:"quantity,omitempty"`
	Price    decimal.Decimal `json:"price"`
	Leverage int             `json:"leverage,omitempty"`
	Fee      decimal.Decimal `json:"fee"`
	PnL      decimal.Decimal `json:"pnl"`
	Message  string          `json:"message,omitempty"`
	Error    string          `json:"error,omitempty"`
}

type CycleResult struct {
	AccountID  string                   `json:"account_id"`
	Success    bool                     `json:"success"`
	Skipped    bool                     `json:"skipped,omitempty"`
	Error      string                   `json:"error,omitempty"`
	// Partial is set when decisions were executed but a later step failed.
	Partial    bool                     `json:"partial,omitempty"`
	Warning    string                   `json:"warning,omitempty"`
	Decisions  map[string]TradeDecision `json:"decisions,omitempty"`
	Executions []ExecutionResult        `json:"executions,omitempty"`
	Portfolio  *Portfolio               `json:"portfolio,omitempty"`
	StartedAt  time.Time                `json:"started_at"`
}

type Trade struct {
	ID        string          `json:"id"`
	AccountID string          `json:"account_id"`
	Symbol    string          `json:"symbol"`
	Signal    Signal          `json:"signal"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Leverage  int             `json:"leverage"`
	Side      string          `json:"side"`
	PnL       decimal.Decimal `json:"pnl"`
	Fee       decimal.Decimal `json:"fee"`
	Timestamp time.Time       `json:"timestamp"`
}

type Conversation struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	Prompt      string    `json:"prompt"`
	RawResponse string    `json:"raw_response"`
	Reasoning   string    `json:"reasoning,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type AccountValue struct {
	AccountID      string          `json:"account_id"`
	TotalValue     decimal.Decimal `json:"total_value"`
	Cash           decimal.Decimal `json:"cash"`
	PositionsValue decimal.Decimal `json:"positions_value"`
	Timestamp      time.Time       `json:"timestamp"`
}

// DailyPrice is a stored closing price.
type DailyPrice struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	Date   string          `json:"date"`
}
