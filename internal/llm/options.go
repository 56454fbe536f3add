package llm

import (
	"strings"
	"time"
)

// DefaultSystemPrompt is sent when llm.system is not configured.
const DefaultSystemPrompt = "You are a disciplined A-share equity trader managing a simulated portfolio. " +
	"Respond only with the JSON object described in the prompt."

// Options are shared by every oracle transport.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	System      string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

func (o Options) SystemPrompt() string {
	if s := strings.TrimSpace(o.System); s != "" {
		return s
	}
	return DefaultSystemPrompt
}

// BaseURLOr returns the configured base URL without a trailing slash, or def.
func (o Options) BaseURLOr(def string) string {
	u := strings.TrimRight(strings.TrimSpace(o.BaseURL), "/")
	if u == "" {
		return def
	}
	return u
}
