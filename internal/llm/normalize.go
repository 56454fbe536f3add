package llm

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"strconv"
	"strings"

	"llm-equity-trader/internal/types"
)

// Normalized is the decision set recovered from an oracle reply.
type Normalized struct {
	Decisions map[string]types.TradeDecision
	Reasoning string
}

var reasoningKeys = []string{"cot_trace", "reasoning", "trace", "reasoning_trace"}

// Normalize parses an untrusted oracle reply. Malformed input yields an
// empty decision set and no reasoning; it never fails.
func Normalize(raw string) Normalized {
	out := Normalized{Decisions: map[string]types.TradeDecision{}}

	body := extractFenced(strings.TrimSpace(raw))
	if body == "" {
		return out
	}

	var parsed any
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&parsed); err != nil {
		return out
	}
	// the body must hold exactly one JSON value
	var extra any
	if err := dec.Decode(&extra); err != io.EOF {
		return out
	}
	obj, ok := parsed.(map[string]any)
	if !ok {
		return out
	}

	decisionMap := obj
	if d, has := obj["decisions"]; has {
		decisionMap, _ = d.(map[string]any)
		for _, k := range reasoningKeys {
			if v, ok := obj[k]; ok {
				out.Reasoning = stringifyReasoning(v)
				break
			}
		}
	}

	for sym, v := range decisionMap {
		sym = strings.TrimSpace(sym)
		if sym == "" {
			continue
		}
		out.Decisions[sym] = coerceDecision(sym, v)
	}
	return out
}

// extractFenced returns the first ```json block if present, else the first
// generic fenced block, else s unchanged.
func extractFenced(s string) string {
	lower := strings.ToLower(s)
	if i := strings.Index(lower, "```json"); i >= 0 {
		return fenceBody(s[i+len("```json"):])
	}
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 && isInfoString(rest[:nl]) {
			rest = rest[nl+1:]
		}
		return fenceBody(rest)
	}
	return s
}

func fenceBody(rest string) string {
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// isInfoString reports whether the text after an opening fence is a
// language tag rather than content.
func isInfoString(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && !strings.ContainsAny(s, "{}[]\":")
}

func stringifyReasoning(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []any:
		lines := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					lines = append(lines, s)
				}
				continue
			}
			lines = append(lines, compactJSON(item))
		}
		return strings.TrimSpace(strings.Join(lines, "\n"))
	default:
		return compactJSON(t)
	}
}

func compactJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return strings.TrimSpace(buf.String())
}

func coerceDecision(symbol string, v any) types.TradeDecision {
	d := types.TradeDecision{Symbol: symbol, Leverage: 1}
	m, ok := v.(map[string]any)
	if !ok {
		return d
	}

	if s, ok := m["signal"].(string); ok {
		d.Signal = types.Signal(strings.ToLower(strings.TrimSpace(s)))
	}
	if q, ok := toFloat(m["quantity"]); ok && q > 0 {
		d.Quantity = int64(math.Floor(q))
	}
	if c, ok := toFloat(m["confidence"]); ok {
		d.Confidence = c
	}
	if r, ok := toFloat(m["risk_budget_pct"]); ok {
		d.RiskBudgetPct = r
		d.HasRiskBudget = true
	}
	if l, ok := toFloat(m["leverage"]); ok && l >= 1 {
		d.Leverage = int(math.Floor(l))
	}
	if p, ok := toFloat(m["profit_target"]); ok {
		d.ProfitTarget = p
	}
	if p, ok := toFloat(m["stop_loss"]); ok {
		d.StopLoss = p
	}
	if j, ok := m["justification"].(string); ok {
		d.Justification = strings.TrimSpace(j)
	}
	return d
}

// toFloat accepts JSON numbers and numeric strings. NaN and infinities are
// rejected.
func toFloat(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case float64:
		f = t
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(t), "%")), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
