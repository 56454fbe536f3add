package interfaces

import "time"

// EodSummarizer writes the end-of-day trade summary. An empty path with a
// nil error means there was nothing to summarize.
type EodSummarizer interface {
	SummarizeDay(day time.Time) (csvPath string, err error)
	SummarizeToday() (csvPath string, err error)
	// ShouldRunNow is true once per day after the configured close.
	ShouldRunNow() (shouldRun bool, csvPath string)
}
