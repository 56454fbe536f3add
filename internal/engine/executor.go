package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"llm-equity-trader/internal/interfaces"
	"llm-equity-trader/internal/logger"
	"llm-equity-trader/internal/metrics"
	"llm-equity-trader/internal/store"
	"llm-equity-trader/internal/tradelog"
	"llm-equity-trader/internal/types"
)

var (
	ErrPositionCap       = errors.New("maximum number of positions reached")
	ErrInsufficientCash  = errors.New("insufficient cash")
	ErrInsufficientFunds = errors.New("insufficient funds including fee")
	ErrNoPosition        = errors.New("no position to close")
	ErrShortUnsupported  = errors.New("short selling is not supported")
	ErrUnknownSignal     = errors.New("unknown signal")
	ErrNoPrice           = errors.New("no usable price")
)

type ExecutorConfig struct {
	FeeRate        decimal.Decimal
	MaxPositions   int
	MinRiskPct     float64
	MaxRiskPct     float64
	DefaultRiskPct float64
	MaxLeverage    int
}

func ExecutorConfigFrom(cfg *store.Config) ExecutorConfig {
	return ExecutorConfig{
		FeeRate:        decimal.NewFromFloat(cfg.FeeRate),
		MaxPositions:   cfg.Risk.MaxPositions,
		MinRiskPct:     cfg.Risk.MinRiskPct,
		MaxRiskPct:     cfg.Risk.MaxRiskPct,
		DefaultRiskPct: cfg.Risk.DefaultRiskPct,
		MaxLeverage:    cfg.Risk.MaxLeverage,
	}
}

// Executor applies one cycle's decisions to the ledger. Every symbol is
// handled independently; a failure produces an error result for that
// symbol only.
type Executor struct {
	ledger  interfaces.Ledger
	risk    *riskManager
	orders  *orderExecutor
	tracked map[string]bool
	metrics *metrics.Metrics
}

func NewExecutor(ledger interfaces.Ledger, universe []types.Stock, cfg ExecutorConfig, journal *tradelog.Journal, m *metrics.Metrics) *Executor {
	tracked := make(map[string]bool, len(universe))
	for _, s := range universe {
		tracked[s.Symbol] = true
	}
	return &Executor{
		ledger:  ledger,
		risk:    newRiskManager(cfg),
		orders:  newOrderExecutor(ledger, journal),
		tracked: tracked,
		metrics: m,
	}
}

// Execute walks the decisions in symbol order. The portfolio is re-read
// after every ledger mutation so later buys see the reduced cash and the
// new position count.
func (x *Executor) Execute(ctx context.Context, accountID string, decisions map[string]types.TradeDecision, prices map[string]decimal.Decimal, portfolio *types.Portfolio) []types.ExecutionResult {
	symbols := make([]string, 0, len(decisions))
	for s := range decisions {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	var results []types.ExecutionResult
	for _, symbol := range symbols {
		if !x.tracked[symbol] {
			logger.Debug(ctx, "Skipping decision for untracked symbol", "account", accountID, "symbol", symbol)
			continue
		}
		d := decisions[symbol]
		d.Symbol = symbol

		var res types.ExecutionResult
		if portfolio == nil {
			res = errorResult(d, errors.New("portfolio unavailable"))
		} else {
			res = x.executeOne(ctx, accountID, d, prices[symbol], portfolio)
		}
		results = append(results, res)
		x.metrics.Execution(string(d.Signal), string(res.Status))
		x.orders.logDecision(ctx, accountID, d, res.Status)

		if res.Status == types.StatusExecuted {
			refreshed, err := x.ledger.GetPortfolio(ctx, accountID, prices)
			if err != nil {
				logger.ErrorWithErr(ctx, "Portfolio refresh failed", err, "account", accountID)
			}
			portfolio = refreshed
		}
	}
	return results
}

func (x *Executor) executeOne(ctx context.Context, accountID string, d types.TradeDecision, price decimal.Decimal, portfolio *types.Portfolio) types.ExecutionResult {
	switch d.Signal {
	case types.SignalHold:
		return types.ExecutionResult{Symbol: d.Symbol, Signal: d.Signal, Status: types.StatusInfo, Message: "hold"}
	case types.SignalSellToEnter:
		logger.Risk(ctx, d.Symbol, "SHORT_REJECTED", "account", accountID)
		return rejected(d, ErrShortUnsupported)
	case types.SignalClosePosition:
		pos, ok := portfolio.Position(d.Symbol)
		if !ok {
			logger.Risk(ctx, d.Symbol, "CLOSE_WITHOUT_POSITION", "account", accountID)
			return errorResult(d, ErrNoPosition)
		}
		if !price.IsPositive() {
			return errorResult(d, ErrNoPrice)
		}
		return x.executeClose(ctx, accountID, d, pos, price)
	case types.SignalBuyToEnter:
		if !price.IsPositive() {
			return errorResult(d, ErrNoPrice)
		}
		return x.executeBuy(ctx, accountID, d, price, portfolio)
	default:
		return rejected(d, fmt.Errorf("%w: %q", ErrUnknownSignal, d.Signal))
	}
}

func (x *Executor) executeBuy(ctx context.Context, accountID string, d types.TradeDecision, price decimal.Decimal, p *types.Portfolio) types.ExecutionResult {
	_, held := p.Position(d.Symbol)
	if open := distinctSymbols(p.Positions); !held && open >= x.risk.maxPositions {
		logger.Risk(ctx, d.Symbol, "TRADE_BLOCKED_POSITION_CAP", "account", accountID, "open_positions", open, "max_positions", x.risk.maxPositions)
		return rejected(d, ErrPositionCap)
	}

	pct := x.risk.riskPct(d.RiskBudgetPct, d.HasRiskBudget)
	qty := x.risk.sizeBuy(d.Quantity, p.Cash, price, pct)
	if qty <= 0 {
		logger.Risk(ctx, d.Symbol, "TRADE_BLOCKED_INSUFFICIENT_CASH", "account", accountID, "cash", p.Cash.StringFixed(2), "price", price.StringFixed(2))
		return rejected(d, ErrInsufficientCash)
	}

	leverage := x.risk.leverage(d.Leverage)
	fee, margin := x.risk.buyCost(qty, price, leverage)
	if margin.Add(fee).GreaterThan(p.Cash) {
		logger.Risk(ctx, d.Symbol, "TRADE_BLOCKED_INSUFFICIENT_FUNDS", "account", accountID,
			"required", margin.Add(fee).StringFixed(2), "cash", p.Cash.StringFixed(2))
		return rejected(d, ErrInsufficientFunds)
	}

	if err := x.orders.openLong(ctx, accountID, d.Symbol, qty, price, leverage, fee); err != nil {
		return errorResult(d, err)
	}
	return types.ExecutionResult{
		Symbol:   d.Symbol,
		Signal:   d.Signal,
		Status:   types.StatusExecuted,
		Quantity: qty,
		Price:    price,
		Leverage: leverage,
		Fee:      fee,
		Message:  fmt.Sprintf("bought %d %s @ %s (fee %s)", qty, d.Symbol, price.StringFixed(2), fee.StringFixed(2)),
	}
}

func (x *Executor) executeClose(ctx context.Context, accountID string, d types.TradeDecision, pos types.Position, price decimal.Decimal) types.ExecutionResult {
	qty := decimal.NewFromInt(pos.Quantity)
	gross := price.Sub(pos.AvgPrice).Mul(qty)
	fee := qty.Mul(price).Mul(x.risk.feeRate)
	net := gross.Sub(fee)

	if err := x.orders.closePosition(ctx, accountID, pos, price, fee, net); err != nil {
		return errorResult(d, err)
	}
	return types.ExecutionResult{
		Symbol:   d.Symbol,
		Signal:   d.Signal,
		Status:   types.StatusExecuted,
		Quantity: pos.Quantity,
		Price:    price,
		Leverage: pos.Leverage,
		Fee:      fee,
		PnL:      net,
		Message: fmt.Sprintf("closed %s: gross %s, fee %s, net %s",
			d.Symbol, gross.StringFixed(2), fee.StringFixed(2), net.StringFixed(2)),
	}
}

func rejected(d types.TradeDecision, err error) types.ExecutionResult {
	return types.ExecutionResult{Symbol: d.Symbol, Signal: d.Signal, Status: types.StatusRejected, Error: err.Error()}
}

func errorResult(d types.TradeDecision, err error) types.ExecutionResult {
	return types.ExecutionResult{Symbol: d.Symbol, Signal: d.Signal, Status: types.StatusError, Error: err.Error()}
}
