package engine

import (
	"github.com/shopspring/decimal"

	"llm-equity-trader/internal/types"
)

func distinctSymbols(positions []types.Position) int {
	seen := make(map[string]struct{}, len(positions))
	for _, p := range positions {
		seen[p.Symbol] = struct{}{}
	}
	return len(seen)
}

// totalReturnPct is (total - initial) / initial * 100, or 0 without capital.
func totalReturnPct(total, initial decimal.Decimal) float64 {
	if !initial.IsPositive() {
		return 0
	}
	return total.Sub(initial).Div(initial).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

func symbolsOf(stocks []types.Stock) []string {
	out := make([]string, 0, len(stocks))
	for _, s := range stocks {
		out = append(out, s.Symbol)
	}
	return out
}

func knownPrices(quotes map[string]types.Quote) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(quotes))
	for sym, q := range quotes {
		if q.Known() {
			out[sym] = q.Price
		}
	}
	return out
}
