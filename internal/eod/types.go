package eod

import "github.com/shopspring/decimal"

// aggRow is one symbol's totals for the day. Values are qty*price sums.
type aggRow struct {
	Symbol     string
	BuyQty     int64
	BuyValue   decimal.Decimal
	CloseQty   int64
	CloseValue decimal.Decimal
	Fees       decimal.Decimal
	NetPnL     decimal.Decimal
	Trades     int
}

var csvHeader = []string{"symbol", "trades", "buy_qty", "buy_value", "close_qty", "close_value", "fees", "net_pnl"}

func (r *aggRow) record() []string {
	return []string{
		r.Symbol,
		itoa(int64(r.Trades)),
		itoa(r.BuyQty),
		r.BuyValue.StringFixed(2),
		itoa(r.CloseQty),
		r.CloseValue.StringFixed(2),
		r.Fees.StringFixed(2),
		r.NetPnL.StringFixed(2),
	}
}

func (r *aggRow) add(o *aggRow) {
	r.Trades += o.Trades
	r.BuyQty += o.BuyQty
	r.BuyValue = r.BuyValue.Add(o.BuyValue)
	r.CloseQty += o.CloseQty
	r.CloseValue = r.CloseValue.Add(o.CloseValue)
	r.Fees = r.Fees.Add(o.Fees)
	r.NetPnL = r.NetPnL.Add(o.NetPnL)
}
