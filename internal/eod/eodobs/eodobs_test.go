package eodobs

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSummarizer struct {
	path string
	err  error
	run  bool
	days []time.Time
}

func (s *stubSummarizer) SummarizeDay(t time.Time) (string, error) {
	s.days = append(s.days, t)
	return s.path, s.err
}

func (s *stubSummarizer) SummarizeToday() (string, error) { return s.path, s.err }

func (s *stubSummarizer) ShouldRunNow() (bool, string) { return s.run, s.path }

func TestWrapForwardsCalls(t *testing.T) {
	inner := &stubSummarizer{path: "logs/eod/2026-03-02.csv", run: true}
	w := Wrap(inner)

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	out, err := w.SummarizeDay(day)
	require.NoError(t, err)
	assert.Equal(t, inner.path, out)
	assert.Equal(t, []time.Time{day}, inner.days)

	run, path := w.ShouldRunNow()
	assert.True(t, run)
	assert.Equal(t, inner.path, path)
}

func TestWrapReturnsErrors(t *testing.T) {
	boom := errors.New("permission denied")
	out, err := Wrap(&stubSummarizer{path: "ignored", err: boom}).SummarizeToday()
	assert.Empty(t, out)
	assert.ErrorIs(t, err, boom)
}

func TestWrapEmptyDay(t *testing.T) {
	out, err := Wrap(&stubSummarizer{}).SummarizeDay(time.Now())
	require.NoError(t, err)
	assert.Empty(t, out)
}
