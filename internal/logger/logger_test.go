package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, cfg LogConfig) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	cfg.Output = &buf
	cfg.Format = "json"
	require.NoError(t, InitWithConfig(cfg))
	return &buf
}

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, l := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if l == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(l), &m))
		out = append(out, m)
	}
	return out
}

func TestDomainEventsCarryType(t *testing.T) {
	buf := capture(t, LogConfig{Level: "INFO"})
	ctx := context.Background()

	Trade(ctx, "gpt", "600519", "buy_to_enter", 10, "1500.00", "fee", "15.00")
	Risk(ctx, "000001", "TRADE_BLOCKED_POSITION_CAP", "account", "gpt")
	Decision(ctx, "300750", "hold", 0.4, "wait for pullback")

	got := lines(t, buf)
	require.Len(t, got, 3)
	assert.Equal(t, "TRADE", got[0]["type"])
	assert.EqualValues(t, 10, got[0]["quantity"])
	assert.Equal(t, "15.00", got[0]["fee"])
	assert.Equal(t, "RISK", got[1]["type"])
	assert.Equal(t, "WARN", got[1]["level"])
	assert.Equal(t, "TRADE_BLOCKED_POSITION_CAP", got[1]["event_type"])
	assert.Equal(t, "DECISION", got[2]["type"])
}

func TestDebugNeedsDetailedLogging(t *testing.T) {
	buf := capture(t, LogConfig{Level: "DEBUG"})
	Debug(context.Background(), "hidden")
	assert.Empty(t, buf.String())

	buf = capture(t, LogConfig{Level: "DEBUG", DetailedLogging: true})
	Debug(context.Background(), "shown")
	got := lines(t, buf)
	require.Len(t, got, 1)
	src, ok := got[0]["source"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, src["file"], "logger_test.go")
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t, LogConfig{Level: "ERROR"})
	Info(context.Background(), "dropped")
	ErrorWithErr(context.Background(), "kept", errors.New("boom"))

	got := lines(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "boom", got[0]["error"])
}
