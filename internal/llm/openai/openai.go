package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"llm-equity-trader/internal/interfaces"
	"llm-equity-trader/internal/llm"
)

// Oracle talks to OpenAI compatible chat completion endpoints, including
// Azure OpenAI deployments.
type Oracle struct {
	client *goopenai.Client
	opts   llm.Options
}

var _ interfaces.Oracle = (*Oracle)(nil)

// New builds an OpenAI client. The base URL is normalised to end in /v1 so
// both "https://host" and "https://host/v1" work for compatible gateways.
func New(opts llm.Options) (*Oracle, error) {
	if opts.APIKey == "" {
		return nil, errors.New("openai api key missing")
	}
	cfg := goopenai.DefaultConfig(opts.APIKey)
	if u := opts.BaseURLOr(""); u != "" {
		cfg.BaseURL = normaliseBaseURL(u)
	}
	cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}
	return &Oracle{client: goopenai.NewClientWithConfig(cfg), opts: opts}, nil
}

// NewAzure builds a client for an Azure OpenAI resource; Model names the
// deployment.
func NewAzure(opts llm.Options) (*Oracle, error) {
	if opts.APIKey == "" {
		return nil, errors.New("azure openai api key missing")
	}
	if opts.BaseURL == "" {
		return nil, errors.New("azure openai endpoint missing")
	}
	cfg := goopenai.DefaultAzureConfig(opts.APIKey, opts.BaseURLOr(""))
	cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}
	return &Oracle{client: goopenai.NewClientWithConfig(cfg), opts: opts}, nil
}

func normaliseBaseURL(u string) string {
	if strings.HasSuffix(u, "/v1") {
		return u
	}
	return u + "/v1"
}

func (o *Oracle) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: o.opts.Model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: o.opts.SystemPrompt()},
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: o.opts.Temperature,
		MaxTokens:   o.opts.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
