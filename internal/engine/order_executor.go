package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"llm-equity-trader/internal/interfaces"
	"llm-equity-trader/internal/logger"
	"llm-equity-trader/internal/tradelog"
	"llm-equity-trader/internal/types"
)

// orderExecutor applies fills to the ledger and journals them.
type orderExecutor struct {
	ledger  interfaces.Ledger
	journal *tradelog.Journal
	now     func() time.Time
}

func newOrderExecutor(ledger interfaces.Ledger, journal *tradelog.Journal) *orderExecutor {
	return &orderExecutor{ledger: ledger, journal: journal, now: time.Now}
}

// openLong opens or increases a long position and records the buy trade.
func (oe *orderExecutor) openLong(ctx context.Context, accountID, symbol string, qty int64, price decimal.Decimal, leverage int, fee decimal.Decimal) error {
	if err := oe.ledger.UpdatePosition(ctx, accountID, symbol, qty, price, leverage, types.SideLong); err != nil {
		logger.ErrorWithErr(ctx, "Update position failed", err, "account", accountID, "symbol", symbol)
		return err
	}

	trade := types.Trade{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Symbol:    symbol,
		Signal:    types.SignalBuyToEnter,
		Quantity:  qty,
		Price:     price,
		Leverage:  leverage,
		Side:      types.SideLong,
		PnL:       decimal.Zero,
		Fee:       fee,
		Timestamp: oe.now(),
	}
	if err := oe.ledger.AddTrade(ctx, trade); err != nil {
		logger.ErrorWithErr(ctx, "Add trade failed", err, "account", accountID, "symbol", symbol, "signal", trade.Signal)
		return err
	}

	logger.Trade(ctx, accountID, symbol, string(trade.Signal), qty, price.StringFixed(2), "leverage", leverage, "fee", fee.StringFixed(2))
	oe.journalTrade(ctx, trade)
	return nil
}

// closePosition removes the full position and records the closing trade
// with its net pnl.
func (oe *orderExecutor) closePosition(ctx context.Context, accountID string, pos types.Position, price, fee, netPnL decimal.Decimal) error {
	if err := oe.ledger.ClosePosition(ctx, accountID, pos.Symbol, pos.Side); err != nil {
		logger.ErrorWithErr(ctx, "Close position failed", err, "account", accountID, "symbol", pos.Symbol)
		return err
	}

	trade := types.Trade{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Symbol:    pos.Symbol,
		Signal:    types.SignalClosePosition,
		Quantity:  pos.Quantity,
		Price:     price,
		Leverage:  pos.Leverage,
		Side:      pos.Side,
		PnL:       netPnL,
		Fee:       fee,
		Timestamp: oe.now(),
	}
	if err := oe.ledger.AddTrade(ctx, trade); err != nil {
		logger.ErrorWithErr(ctx, "Add trade failed", err, "account", accountID, "symbol", pos.Symbol, "signal", trade.Signal)
		return err
	}

	logger.Trade(ctx, accountID, pos.Symbol, string(trade.Signal), pos.Quantity, price.StringFixed(2), "fee", fee.StringFixed(2), "net_pnl", netPnL.StringFixed(2))
	oe.journalTrade(ctx, trade)
	return nil
}

func (oe *orderExecutor) journalTrade(ctx context.Context, t types.Trade) {
	err := oe.journal.Append(tradelog.Entry{
		Account:  t.AccountID,
		Symbol:   t.Symbol,
		Signal:   string(t.Signal),
		Qty:      t.Quantity,
		Price:    t.Price,
		Fee:      t.Fee,
		PnL:      t.PnL,
		Leverage: t.Leverage,
	})
	if err != nil {
		logger.Warn(ctx, "Trade journal append failed", "symbol", t.Symbol, "error", err)
	}
}

// logDecision journals a decision together with how it was handled.
func (oe *orderExecutor) logDecision(ctx context.Context, accountID string, d types.TradeDecision, status types.ExecStatus) {
	logger.Decision(ctx, d.Symbol, string(d.Signal), d.Confidence, d.Justification, "account", accountID, "status", status)
	err := oe.journal.AppendDecision(tradelog.DecisionEntry{
		Account:       accountID,
		Symbol:        d.Symbol,
		Signal:        string(d.Signal),
		Quantity:      d.Quantity,
		Confidence:    d.Confidence,
		Justification: d.Justification,
		Status:        string(status),
	})
	if err != nil {
		logger.Warn(ctx, "Decision journal append failed", "symbol", d.Symbol, "error", err)
	}
}
