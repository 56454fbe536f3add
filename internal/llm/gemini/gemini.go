package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"llm-equity-trader/internal/api"
	"llm-equity-trader/internal/interfaces"
	"llm-equity-trader/internal/llm"
)

const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// Oracle calls the Gemini generateContent endpoint.
type Oracle struct {
	client  *api.Client
	baseURL string
	opts    llm.Options
}

var _ interfaces.Oracle = (*Oracle)(nil)

func New(opts llm.Options) (*Oracle, error) {
	if opts.APIKey == "" {
		return nil, errors.New("gemini api key missing")
	}
	if opts.Model == "" {
		return nil, errors.New("gemini model missing")
	}
	var clientOpts []api.ClientOption
	if opts.Timeout > 0 {
		clientOpts = append(clientOpts, api.WithTimeout(opts.Timeout))
	}
	return &Oracle{
		client:  api.NewClient(clientOpts...),
		baseURL: opts.BaseURLOr(DefaultBaseURL),
		opts:    opts,
	}, nil
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float32 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type generateRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (o *Oracle) Complete(ctx context.Context, prompt string) (string, error) {
	body := generateRequest{
		SystemInstruction: &content{Parts: []part{{Text: o.opts.SystemPrompt()}}},
		Contents:          []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     o.opts.Temperature,
			MaxOutputTokens: o.opts.MaxTokens,
		},
	}

	req := api.NewRequest(http.MethodPost, fmt.Sprintf("%s/%s:generateContent", o.baseURL, o.opts.Model)).
		WithContext(ctx).
		WithQuery("key", o.opts.APIKey).
		WithBody(body)
	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini generateContent: %w", err)
	}

	var out generateResponse
	if err := resp.ParseJSON(&out); err != nil {
		return "", err
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("gemini response has no candidates")
	}
	return strings.TrimSpace(out.Candidates[0].Content.Parts[0].Text), nil
}
