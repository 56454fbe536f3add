package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"llm-equity-trader/internal/interfaces"
	"llm-equity-trader/internal/llm"
	"llm-equity-trader/internal/logger"
	"llm-equity-trader/internal/market"
	"llm-equity-trader/internal/metrics"
	"llm-equity-trader/internal/ta"
	"llm-equity-trader/internal/types"
)

// PriceSource serves the tiered quote snapshot.
type PriceSource interface {
	GetPrices(ctx context.Context, symbols []string) map[string]types.Quote
}

// Decider is one oracle round trip.
type Decider interface {
	MakeDecision(ctx context.Context, state types.MarketState, account types.AccountInfo, portfolio *types.Portfolio) (*llm.Reply, error)
}

// Deps are the collaborators of one account's engine.
type Deps struct {
	Gate        *market.Gate
	Quotes      PriceSource
	History     interfaces.HistorySource
	HistoryDays int
	Trader      Decider
	Ledger      interfaces.Ledger
	Executor    *Executor
	Locks       *AccountLocks
	Metrics     *metrics.Metrics
}

// Engine runs trading cycles for a single account.
type Engine struct {
	accountID string
	universe  []types.Stock
	deps      Deps
	now       func() time.Time
}

func newEngine(accountID string, universe []types.Stock, deps Deps) *Engine {
	if deps.Locks == nil {
		deps.Locks = NewAccountLocks()
	}
	if deps.HistoryDays < ta.MinHistory {
		deps.HistoryDays = 60
	}
	return &Engine{accountID: accountID, universe: universe, deps: deps, now: time.Now}
}

func (e *Engine) AccountID() string { return e.accountID }

// RunCycle executes one gated cycle. The returned error is non-nil only
// when the cycle failed; the result then carries Success=false and the
// error text.
func (e *Engine) RunCycle(ctx context.Context) (*types.CycleResult, error) {
	result := &types.CycleResult{AccountID: e.accountID, StartedAt: e.now()}

	if !e.deps.Gate.IsOpen() {
		start, end := e.deps.Gate.Window()
		logger.Info(ctx, "Outside trading window, cycle skipped", "account", e.accountID, "window_start", start.String(), "window_end", end.String())
		result.Skipped = true
		e.deps.Metrics.CycleOutcome(e.accountID, "skipped")
		return result, nil
	}

	if err := e.runCycle(ctx, result); err != nil {
		result.Success = false
		result.Error = err.Error()
		e.deps.Metrics.CycleOutcome(e.accountID, "failed")
		return result, err
	}
	result.Success = true
	if result.Partial {
		e.deps.Metrics.CycleOutcome(e.accountID, "partial")
	} else {
		e.deps.Metrics.CycleOutcome(e.accountID, "success")
	}
	return result, nil
}

func (e *Engine) runCycle(ctx context.Context, result *types.CycleResult) error {
	state, quotes := e.marketState(ctx)
	prices := knownPrices(quotes)

	portfolio, err := e.deps.Ledger.GetPortfolio(ctx, e.accountID, prices)
	if err != nil {
		return fmt.Errorf("load portfolio: %w", err)
	}
	account, err := e.accountInfo(ctx, portfolio)
	if err != nil {
		return err
	}

	reply, err := e.deps.Trader.MakeDecision(ctx, state, account, portfolio)
	if err != nil {
		return err
	}
	result.Decisions = reply.Decisions

	conv := types.Conversation{
		ID:          uuid.NewString(),
		AccountID:   e.accountID,
		Prompt:      reply.Prompt,
		RawResponse: reply.Raw,
		Reasoning:   reply.Reasoning,
		Timestamp:   e.now(),
	}
	if err := e.deps.Ledger.AddConversation(ctx, conv); err != nil {
		return fmt.Errorf("record conversation: %w", err)
	}

	result.Executions, result.Portfolio, err = e.execute(ctx, reply.Decisions, prices)
	if err != nil {
		if len(result.Executions) == 0 {
			return err
		}
		e.partial(ctx, result, err)
		return nil
	}

	value := types.AccountValue{
		AccountID:      e.accountID,
		TotalValue:     result.Portfolio.TotalValue,
		Cash:           result.Portfolio.Cash,
		PositionsValue: result.Portfolio.PositionsValue,
		Timestamp:      e.now(),
	}
	if err := e.deps.Ledger.RecordAccountValue(ctx, value); err != nil {
		err = fmt.Errorf("record account value: %w", err)
		if len(result.Executions) == 0 {
			return err
		}
		e.partial(ctx, result, err)
	}
	return nil
}

// execute holds the account lock from the portfolio read that sizes the
// buys until the post-trade refresh, so overlapping cycles for one account
// never size against cash another cycle already spent.
func (e *Engine) execute(ctx context.Context, decisions map[string]types.TradeDecision, prices map[string]decimal.Decimal) ([]types.ExecutionResult, *types.Portfolio, error) {
	unlock := e.deps.Locks.Lock(e.accountID)
	defer unlock()

	current, err := e.deps.Ledger.GetPortfolio(ctx, e.accountID, prices)
	if err != nil {
		return nil, nil, fmt.Errorf("load portfolio: %w", err)
	}
	executions := e.deps.Executor.Execute(ctx, e.accountID, decisions, prices, current)
	updated, err := e.deps.Ledger.GetPortfolio(ctx, e.accountID, prices)
	if err != nil {
		return executions, nil, fmt.Errorf("refresh portfolio: %w", err)
	}
	return executions, updated, nil
}

// partial records a failure that happened after decisions were executed.
// The cycle still counts as a success since the ledger has been mutated.
func (e *Engine) partial(ctx context.Context, result *types.CycleResult, err error) {
	logger.ErrorWithErr(ctx, "Cycle completed with errors after execution", err, "account", e.accountID, "executions", len(result.Executions))
	result.Partial = true
	result.Warning = err.Error()
}

// marketState collects quotes for the universe and indicators for every
// symbol with a known price. History failures leave the indicators empty.
func (e *Engine) marketState(ctx context.Context) (types.MarketState, map[string]types.Quote) {
	quotes := e.deps.Quotes.GetPrices(ctx, symbolsOf(e.universe))
	state := make(types.MarketState, len(quotes))

	for _, stock := range e.universe {
		q, ok := quotes[stock.Symbol]
		if !ok || !q.Known() {
			continue
		}
		st := types.SymbolState{Quote: q}
		if e.deps.History != nil {
			closes, err := e.deps.History.History(ctx, stock, e.deps.HistoryDays)
			if err != nil {
				logger.Warn(ctx, "Price history unavailable", "symbol", stock.Symbol, "error", err)
			} else if snap, ok := ta.Snapshot(closes); ok {
				st.Indicators = &snap
			} else {
				logger.Debug(ctx, "Insufficient history for indicators", "symbol", stock.Symbol, "points", len(closes))
			}
		}
		state[stock.Symbol] = st
	}
	return state, quotes
}

func (e *Engine) accountInfo(ctx context.Context, p *types.Portfolio) (types.AccountInfo, error) {
	model, err := e.deps.Ledger.GetModel(ctx, e.accountID)
	if err != nil {
		return types.AccountInfo{}, fmt.Errorf("load account: %w", err)
	}
	return types.AccountInfo{
		InitialCapital: model.InitialCapital,
		TotalValue:     p.TotalValue,
		Cash:           p.Cash,
		TotalReturnPct: totalReturnPct(p.TotalValue, model.InitialCapital),
	}, nil
}
