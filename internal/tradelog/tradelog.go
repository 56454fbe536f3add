package tradelog

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const timeLayout = "2006-01-02 15:04:05"

// Entry is one executed trade.
type Entry struct {
	Time     string          `json:"time"`
	Account  string          `json:"account"`
	Symbol   string          `json:"symbol"`
	Signal   string          `json:"signal"`
	Qty      int64           `json:"qty"`
	Price    decimal.Decimal `json:"price"`
	Fee      decimal.Decimal `json:"fee"`
	PnL      decimal.Decimal `json:"pnl"`
	Leverage int             `json:"leverage,omitempty"`
}

// DecisionEntry is one normalized oracle decision, executed or not.
type DecisionEntry struct {
	Time          string  `json:"time"`
	Account       string  `json:"account"`
	Symbol        string  `json:"symbol"`
	Signal        string  `json:"signal"`
	Quantity      int64   `json:"quantity,omitempty"`
	Confidence    float64 `json:"confidence"`
	Justification string  `json:"justification,omitempty"`
	Status        string  `json:"status"`
}

// Journal writes daily JSONL files: <dir>/YYYY-MM-DD.txt for trades and
// <dir>/decisions/YYYY-MM-DD.txt for decisions. Days roll over in loc.
type Journal struct {
	mu  sync.Mutex
	dir string
	loc *time.Location
	now func() time.Time
}

// DirFromEnv returns TRADER_LOG_DIR or "logs".
func DirFromEnv() string {
	if v := os.Getenv("TRADER_LOG_DIR"); v != "" {
		return v
	}
	return "logs"
}

func New(dir string, loc *time.Location) *Journal {
	if dir == "" {
		dir = DirFromEnv()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Journal{dir: dir, loc: loc, now: time.Now}
}

// WithClock overrides the journal's clock.
func (j *Journal) WithClock(now func() time.Time) *Journal {
	j.now = now
	return j
}

func (j *Journal) Dir() string { return j.dir }

func (j *Journal) Location() *time.Location { return j.loc }

func (j *Journal) DayPath(t time.Time) string {
	return filepath.Join(j.dir, t.In(j.loc).Format("2006-01-02")+".txt")
}

func (j *Journal) decisionsPath(t time.Time) string {
	return filepath.Join(j.dir, "decisions", t.In(j.loc).Format("2006-01-02")+".txt")
}

func (j *Journal) Append(e Entry) error {
	if j == nil {
		return nil
	}
	now := j.now().In(j.loc)
	if e.Time == "" {
		e.Time = now.Format(timeLayout)
	}
	return j.appendLine(j.DayPath(now), e)
}

func (j *Journal) AppendDecision(e DecisionEntry) error {
	if j == nil {
		return nil
	}
	now := j.now().In(j.loc)
	if e.Time == "" {
		e.Time = now.Format(timeLayout)
	}
	return j.appendLine(j.decisionsPath(now), e)
}

func (j *Journal) appendLine(p string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// ReadDay returns the trades journaled on t's day. A missing file is an
// empty day. Malformed lines are skipped.
func (j *Journal) ReadDay(t time.Time) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.DayPath(t))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var e Entry
		if json.Unmarshal(sc.Bytes(), &e) != nil {
			continue
		}
		out = append(out, e)
	}
	return out, sc.Err()
}

// CompressOlder gzips journal files last modified more than retentionDays
// ago and removes the originals.
func (j *Journal) CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := j.now().AddDate(0, 0, -retentionDays)

	j.mu.Lock()
	defer j.mu.Unlock()
	return filepath.WalkDir(j.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".txt" {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		if _, err := os.Stat(gz); err == nil {
			// already archived
			_ = os.Remove(p)
			return nil
		}
		if err := gzipFile(p, gz); err == nil {
			_ = os.Remove(p)
		}
		return nil
	})
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		_ = gw.Close()
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := gw.Close(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
