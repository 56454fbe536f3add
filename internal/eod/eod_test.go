package eod

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-equity-trader/internal/tradelog"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seededJournal(t *testing.T, now time.Time) *tradelog.Journal {
	t.Helper()
	j := tradelog.New(t.TempDir(), time.UTC).WithClock(func() time.Time { return now })
	require.NoError(t, j.Append(tradelog.Entry{Account: "gpt", Symbol: "600519", Signal: "buy_to_enter", Qty: 2, Price: dec("1000"), Fee: dec("2")}))
	require.NoError(t, j.Append(tradelog.Entry{Account: "gpt", Symbol: "600519", Signal: "close_position", Qty: 2, Price: dec("1050"), Fee: dec("2.1"), PnL: dec("95.9")}))
	require.NoError(t, j.Append(tradelog.Entry{Account: "claude", Symbol: "000001", Signal: "buy_to_enter", Qty: 100, Price: dec("11.05"), Fee: dec("1.1")}))
	return j
}

func TestSummarizeDayWritesPerSymbolRows(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	j := seededJournal(t, now)
	s := NewSummarizer(j, "15:10:00").WithClock(func() time.Time { return now })

	out, err := s.SummarizeDay(now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(j.Dir(), "eod", "2026-03-02.csv"), out)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"symbol", "trades", "buy_qty", "buy_value", "close_qty", "close_value", "fees", "net_pnl"},
		{"000001", "1", "100", "1105.00", "0", "0.00", "1.10", "0.00"},
		{"600519", "2", "2", "2000.00", "2", "2100.00", "4.10", "95.90"},
		{"TOTAL", "3", "102", "3105.00", "2", "2100.00", "5.20", "95.90"},
	}, records)
}

func TestSummarizeDayWithoutTrades(t *testing.T) {
	j := tradelog.New(t.TempDir(), time.UTC)
	out, err := NewSummarizer(j, "15:10").SummarizeDay(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = os.Stat(filepath.Join(j.Dir(), "eod"))
	assert.True(t, os.IsNotExist(err))
}

func TestShouldRunNow(t *testing.T) {
	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	j := seededJournal(t, now)
	s := NewSummarizer(j, "15:10").WithClock(func() time.Time { return now })

	run, path := s.ShouldRunNow()
	assert.False(t, run, "before the close")
	assert.Equal(t, s.CSVPath(now), path)

	now = now.Add(20 * time.Minute)
	run, _ = s.ShouldRunNow()
	assert.True(t, run)

	_, err := s.SummarizeToday()
	require.NoError(t, err)
	run, _ = s.ShouldRunNow()
	assert.False(t, run, "already written today")
}

func TestNewSummarizerFallsBackOnBadCloseTime(t *testing.T) {
	s := NewSummarizer(tradelog.New(t.TempDir(), time.UTC), "late")
	assert.Equal(t, "15:10:00", s.closeAt.String())
}
