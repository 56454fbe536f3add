package ta

import (
	"math"

	"llm-equity-trader/internal/types"
)

// MinHistory is the shortest history that yields a snapshot.
const MinHistory = 14

func SMA(closes []float64, n int) float64 {
	if len(closes) < n || n <= 0 {
		return math.NaN()
	}
	sum := 0.0
	for i := len(closes) - n; i < len(closes); i++ {
		sum += closes[i]
	}
	return sum / float64(n)
}

// RSI averages the last period gains and losses over period, even when
// fewer than period deltas exist. A series without losses is 100.
func RSI(closes []float64, period int) float64 {
	if len(closes) < 2 || period <= 0 {
		return math.NaN()
	}
	first := len(closes) - period
	if first < 1 {
		first = 1
	}
	gain, loss := 0.0, 0.0
	for i := first; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	if loss == 0 {
		return 100.0
	}
	rs := (gain / float64(period)) / (loss / float64(period))
	return 100.0 - (100.0 / (1.0 + rs))
}

// PctChange compares the latest close with the one back steps earlier.
// A missing or zero base reports 0.
func PctChange(closes []float64, back int) float64 {
	if back <= 0 || len(closes) <= back {
		return 0
	}
	base := closes[len(closes)-1-back]
	if base == 0 {
		return 0
	}
	return (closes[len(closes)-1] - base) / base * 100
}

func mean(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// Snapshot derives the indicator set for an oldest-first history. It
// reports false when the history is shorter than MinHistory.
func Snapshot(closes []float64) (types.TechnicalSnapshot, bool) {
	if len(closes) < MinHistory {
		return types.TechnicalSnapshot{}, false
	}

	sma20 := mean(closes)
	if len(closes) >= 20 {
		sma20 = SMA(closes, 20)
	}

	return types.TechnicalSnapshot{
		SMA5:         SMA(closes, 5),
		SMA20:        sma20,
		RSI14:        RSI(closes, 14),
		Change5dPct:  PctChange(closes, 5),
		Change20dPct: PctChange(closes, 20),
		LastPrice:    closes[len(closes)-1],
	}, true
}
