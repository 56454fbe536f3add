package engine

import (
	"math"

	"github.com/shopspring/decimal"
)

// riskManager sizes buys and checks solvency against available cash.
type riskManager struct {
	feeRate        decimal.Decimal
	maxPositions   int
	minRiskPct     float64
	maxRiskPct     float64
	defaultRiskPct float64
	maxLeverage    int
}

func newRiskManager(cfg ExecutorConfig) *riskManager {
	rm := &riskManager{
		feeRate:        cfg.FeeRate,
		maxPositions:   cfg.MaxPositions,
		minRiskPct:     cfg.MinRiskPct,
		maxRiskPct:     cfg.MaxRiskPct,
		defaultRiskPct: cfg.DefaultRiskPct,
		maxLeverage:    cfg.MaxLeverage,
	}
	if rm.maxPositions <= 0 {
		rm.maxPositions = 3
	}
	if rm.minRiskPct <= 0 {
		rm.minRiskPct = 1
	}
	if rm.maxRiskPct < rm.minRiskPct {
		rm.maxRiskPct = math.Max(5, rm.minRiskPct)
	}
	if rm.defaultRiskPct <= 0 {
		rm.defaultRiskPct = 3
	}
	if rm.maxLeverage < 1 {
		rm.maxLeverage = 1
	}
	return rm
}

// riskPct clamps the requested budget to [min, max]; absent or non-finite
// requests use the default.
func (rm *riskManager) riskPct(requested float64, present bool) float64 {
	if !present || math.IsNaN(requested) || math.IsInf(requested, 0) {
		requested = rm.defaultRiskPct
	}
	return math.Min(math.Max(requested, rm.minRiskPct), rm.maxRiskPct)
}

func (rm *riskManager) leverage(requested int) int {
	if requested < 1 {
		return 1
	}
	if requested > rm.maxLeverage {
		return rm.maxLeverage
	}
	return requested
}

// unitCost is the cash needed per share including the fee.
func (rm *riskManager) unitCost(price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(1).Add(rm.feeRate))
}

func (rm *riskManager) maxAffordable(cash, price decimal.Decimal) int64 {
	if !cash.IsPositive() || !price.IsPositive() {
		return 0
	}
	return fitting(cash, rm.unitCost(price))
}

func (rm *riskManager) riskBased(cash, price decimal.Decimal, pct float64) int64 {
	if !cash.IsPositive() || !price.IsPositive() {
		return 0
	}
	budget := cash.Mul(decimal.NewFromFloat(pct)).Div(decimal.NewFromInt(100))
	return fitting(budget, rm.unitCost(price))
}

// fitting is the largest share count whose total unit cost stays within
// budget. The quotient is rounded to DivisionPrecision, so it is stepped
// down when rounding pushed it over.
func fitting(budget, unit decimal.Decimal) int64 {
	qty := budget.Div(unit).Floor().IntPart()
	for qty > 0 && decimal.NewFromInt(qty).Mul(unit).GreaterThan(budget) {
		qty--
	}
	return qty
}

// sizeBuy keeps the requested quantity when it is positive and affordable;
// otherwise it falls back to the risk budget, capped by affordability.
func (rm *riskManager) sizeBuy(requested int64, cash, price decimal.Decimal, pct float64) int64 {
	maxQty := rm.maxAffordable(cash, price)
	if requested > 0 && requested <= maxQty {
		return requested
	}
	riskQty := rm.riskBased(cash, price, pct)
	if riskQty > 0 && riskQty < maxQty {
		return riskQty
	}
	return maxQty
}

// buyCost returns the fee and margin for qty shares at price.
func (rm *riskManager) buyCost(qty int64, price decimal.Decimal, leverage int) (fee, margin decimal.Decimal) {
	amount := price.Mul(decimal.NewFromInt(qty))
	fee = amount.Mul(rm.feeRate)
	margin = amount.Div(decimal.NewFromInt(int64(leverage)))
	return fee, margin
}
