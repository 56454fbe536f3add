package ta

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rising(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestSnapshotNeedsFourteenPoints(t *testing.T) {
	_, ok := Snapshot(rising(13, 10, 1))
	assert.False(t, ok)

	_, ok = Snapshot(nil)
	assert.False(t, ok)

	_, ok = Snapshot(rising(14, 10, 1))
	assert.True(t, ok)
}

func TestSnapshotAllGains(t *testing.T) {
	closes := rising(30, 100, 1) // 100..129
	snap, ok := Snapshot(closes)
	require.True(t, ok)

	assert.Equal(t, 100.0, snap.RSI14)
	assert.InDelta(t, 127.0, snap.SMA5, 1e-9)  // mean of 125..129
	assert.InDelta(t, 119.5, snap.SMA20, 1e-9) // mean of 110..129
	assert.Equal(t, 129.0, snap.LastPrice)
	assert.InDelta(t, (129.0-124.0)/124.0*100, snap.Change5dPct, 1e-9)
	assert.InDelta(t, (129.0-109.0)/109.0*100, snap.Change20dPct, 1e-9)
}

func TestSnapshotShortHistoryUsesAllPointsForSMA20(t *testing.T) {
	closes := rising(16, 10, 2) // 10..40
	snap, ok := Snapshot(closes)
	require.True(t, ok)

	assert.InDelta(t, 25.0, snap.SMA20, 1e-9)
	assert.Zero(t, snap.Change20dPct, "no price 20 steps back")
}

func TestRSIMixedSeries(t *testing.T) {
	// 14 deltas alternating +2 / -1: gains 14, losses 7.
	closes := []float64{50}
	for i := 0; i < 14; i++ {
		if i%2 == 0 {
			closes = append(closes, closes[len(closes)-1]+2)
		} else {
			closes = append(closes, closes[len(closes)-1]-1)
		}
	}
	rsi := RSI(closes, 14)
	assert.InDelta(t, 100-100/(1+2.0), rsi, 1e-9)
}

func TestRSIAllLosses(t *testing.T) {
	assert.Equal(t, 0.0, RSI(rising(20, 100, -1), 14))
}

func TestRSIAlwaysBounded(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for n := 0; n < 200; n++ {
		closes := make([]float64, 14+r.Intn(60))
		p := 10 + r.Float64()*100
		for i := range closes {
			p += (r.Float64() - 0.5) * 4
			if p < 0.01 {
				p = 0.01
			}
			closes[i] = p
		}
		snap, ok := Snapshot(closes)
		require.True(t, ok)
		assert.GreaterOrEqual(t, snap.RSI14, 0.0)
		assert.LessOrEqual(t, snap.RSI14, 100.0)
	}
}

func TestPctChangeZeroBase(t *testing.T) {
	closes := []float64{0, 1, 2, 3, 4, 5}
	assert.Zero(t, PctChange(closes, 5))
	assert.Zero(t, PctChange(closes, 10))
	assert.InDelta(t, 400.0, PctChange(closes, 4), 1e-9)
}

func TestSMAInsufficientData(t *testing.T) {
	assert.True(t, math.IsNaN(SMA([]float64{1, 2}, 5)))
	assert.True(t, math.IsNaN(SMA([]float64{1, 2}, 0)))
	assert.Equal(t, 1.5, SMA([]float64{1, 2}, 2))
}
