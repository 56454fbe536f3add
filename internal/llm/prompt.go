package llm

import (
	"fmt"
	"sort"
	"strings"

	"llm-equity-trader/internal/types"
)

// PromptRules are the constraints stated to the oracle. Enforcement lives
// in the executor; these only shape the request.
type PromptRules struct {
	MaxPositions int
	MaxRiskPct   float64
}

const replySchema = "```json\n" + `{
  "cot_trace": [
    "step 1: ...",
    "step 2: ..."
  ],
  "decisions": {
    "600519": {
      "signal": "buy_to_enter|close_position|hold",
      "quantity": 100,
      "confidence": 0.75,
      "risk_budget_pct": 3,
      "profit_target": 2100.0,
      "stop_loss": 1950.0,
      "justification": "reason"
    }
  }
}` + "\n```"

// RenderPrompt encodes quotes, indicators, account state and positions
// into the oracle request.
func RenderPrompt(state types.MarketState, account types.AccountInfo, portfolio *types.Portfolio, rules PromptRules) string {
	var b strings.Builder

	b.WriteString("You are a professional equity trader managing a simulated cash account. Build today's trading plan within the rules below.\n\n")
	b.WriteString("Market quotes:\n")

	symbols := make([]string, 0, len(state))
	for sym := range state {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		st := state[sym]
		line := fmt.Sprintf("%s (%s): %s", sym, st.Quote.Name, st.Quote.Price.StringFixed(2))
		if ind := st.Indicators; ind != nil {
			line += fmt.Sprintf(" | 5d change: %+.2f%% | 20d change: %+.2f%%", ind.Change5dPct, ind.Change20dPct)
		}
		b.WriteString(line + "\n")
		if ind := st.Indicators; ind != nil {
			fmt.Fprintf(&b, "  SMA5: %.2f, SMA20: %.2f, RSI14: %.1f\n", ind.SMA5, ind.SMA20, ind.RSI14)
		}
	}

	b.WriteString("\nAccount:\n")
	fmt.Fprintf(&b, "- Initial capital: %s\n", account.InitialCapital.StringFixed(2))
	fmt.Fprintf(&b, "- Total value: %s\n", portfolio.TotalValue.StringFixed(2))
	fmt.Fprintf(&b, "- Available cash: %s\n", portfolio.Cash.StringFixed(2))
	fmt.Fprintf(&b, "- Total return: %.2f%%\n", account.TotalReturnPct)

	b.WriteString("\nOpen positions:\n")
	if len(portfolio.Positions) == 0 {
		b.WriteString("None\n")
	}
	for _, pos := range portfolio.Positions {
		fmt.Fprintf(&b, "- %s %s %d shares @ %s\n", pos.Symbol, pos.Side, pos.Quantity, pos.AvgPrice.StringFixed(2))
	}

	b.WriteString("\nRules:\n")
	b.WriteString("1. Allowed signals are buy_to_enter, close_position and hold. Short selling is not supported.\n")
	fmt.Fprintf(&b, "2. Hold at most %d positions and open a new one only with a clear edge.\n", rules.MaxPositions)
	fmt.Fprintf(&b, "3. Commit at most %.0f%% of available cash to a new position, in whole shares.\n", rules.MaxRiskPct)
	b.WriteString("4. Give a profit target, a stop loss and a justification using momentum (SMA), RSI and trend.\n")
	b.WriteString("5. Prefer liquid names and avoid churning intraday; positions settle T+1.\n")

	b.WriteString("\nReply with this JSON structure only, no extra text:\n")
	b.WriteString(replySchema)
	b.WriteString("\n\n`cot_trace` records 3-5 reasoning steps as an array of strings. List in `decisions` only the symbols that need an action.\n")

	return b.String()
}
