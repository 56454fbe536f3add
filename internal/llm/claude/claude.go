package claude

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"llm-equity-trader/internal/api"
	"llm-equity-trader/internal/interfaces"
	"llm-equity-trader/internal/llm"
)

const (
	DefaultBaseURL   = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
)

// Oracle calls the Anthropic Messages API.
type Oracle struct {
	client *api.Client
	opts   llm.Options
}

var _ interfaces.Oracle = (*Oracle)(nil)

func New(opts llm.Options) (*Oracle, error) {
	if opts.APIKey == "" {
		return nil, errors.New("claude api key missing")
	}
	clientOpts := []api.ClientOption{
		api.WithBaseURL(opts.BaseURLOr(DefaultBaseURL)),
		api.WithHeader("x-api-key", opts.APIKey),
		api.WithHeader("anthropic-version", anthropicVersion),
	}
	if opts.Timeout > 0 {
		clientOpts = append(clientOpts, api.WithTimeout(opts.Timeout))
	}
	return &Oracle{client: api.NewClient(clientOpts...), opts: opts}, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float32   `json:"temperature"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (o *Oracle) Complete(ctx context.Context, prompt string) (string, error) {
	maxTokens := o.opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	req := messagesRequest{
		Model:       o.opts.Model,
		System:      o.opts.SystemPrompt(),
		Messages:    []message{{Role: "user", Content: prompt}},
		MaxTokens:   maxTokens,
		Temperature: o.opts.Temperature,
	}

	resp, err := o.client.POST(ctx, "/v1/messages", req)
	if err != nil {
		return "", fmt.Errorf("claude messages: %w", err)
	}

	var out messagesResponse
	if err := resp.ParseJSON(&out); err != nil {
		return "", err
	}
	for _, block := range out.Content {
		if block.Type == "" || block.Type == "text" {
			return strings.TrimSpace(block.Text), nil
		}
	}
	return "", errors.New("claude response has no text content")
}
