package eod

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"llm-equity-trader/internal/interfaces"
	"llm-equity-trader/internal/market"
	"llm-equity-trader/internal/tradelog"
	"llm-equity-trader/internal/types"
)

// DefaultCloseTime is used when no end-of-day time is configured.
const DefaultCloseTime = "15:10:00"

// Summarizer turns a day of journal entries into <dir>/eod/YYYY-MM-DD.csv.
type Summarizer struct {
	journal *tradelog.Journal
	closeAt market.Clock
	now     func() time.Time
}

var _ interfaces.EodSummarizer = (*Summarizer)(nil)

// NewSummarizer reads trades from journal. closeTime is "HH:MM[:SS]" in
// the journal's location; an unparseable value falls back to DefaultCloseTime.
func NewSummarizer(journal *tradelog.Journal, closeTime string) *Summarizer {
	c := market.ParseClock(closeTime)
	if c == (market.Clock{}) {
		c = market.ParseClock(DefaultCloseTime)
	}
	return &Summarizer{journal: journal, closeAt: c, now: time.Now}
}

func (s *Summarizer) WithClock(now func() time.Time) *Summarizer {
	s.now = now
	return s
}

// CSVPath is where the summary for t's day is written.
func (s *Summarizer) CSVPath(t time.Time) string {
	d := t.In(s.journal.Location()).Format("2006-01-02")
	return filepath.Join(s.journal.Dir(), "eod", d+".csv")
}

// SummarizeDay returns "" without error when the day has no trades.
func (s *Summarizer) SummarizeDay(t time.Time) (string, error) {
	entries, err := s.journal.ReadDay(t)
	if err != nil {
		return "", fmt.Errorf("read trade log: %w", err)
	}
	if len(entries) == 0 {
		return "", nil
	}

	rows := aggregate(entries)
	out := s.CSVPath(t)
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", err
	}
	if err := writeCSV(out, rows); err != nil {
		return "", err
	}
	return out, nil
}

func (s *Summarizer) SummarizeToday() (string, error) {
	return s.SummarizeDay(s.now())
}

// ShouldRunNow is true once the close time has passed and today's
// summary has not been written yet.
func (s *Summarizer) ShouldRunNow() (bool, string) {
	now := s.now().In(s.journal.Location())
	out := s.CSVPath(now)
	if market.ClockOf(now).Before(s.closeAt) {
		return false, out
	}
	_, err := os.Stat(out)
	return errors.Is(err, os.ErrNotExist), out
}

func aggregate(entries []tradelog.Entry) []*aggRow {
	bySymbol := map[string]*aggRow{}
	for _, e := range entries {
		row := bySymbol[e.Symbol]
		if row == nil {
			row = &aggRow{Symbol: e.Symbol}
			bySymbol[e.Symbol] = row
		}
		row.Trades++
		value := e.Price.Mul(decimal.NewFromInt(e.Qty))
		switch types.Signal(e.Signal) {
		case types.SignalBuyToEnter:
			row.BuyQty += e.Qty
			row.BuyValue = row.BuyValue.Add(value)
		case types.SignalClosePosition:
			row.CloseQty += e.Qty
			row.CloseValue = row.CloseValue.Add(value)
		}
		row.Fees = row.Fees.Add(e.Fee)
		row.NetPnL = row.NetPnL.Add(e.PnL)
	}

	rows := make([]*aggRow, 0, len(bySymbol))
	for _, r := range bySymbol {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Symbol < rows[j].Symbol })
	return rows
}

func writeCSV(path string, rows []*aggRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	total := &aggRow{Symbol: "TOTAL"}
	records := [][]string{csvHeader}
	for _, r := range rows {
		records = append(records, r.record())
		total.add(r)
	}
	records = append(records, total.record())
	if err := w.WriteAll(records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
