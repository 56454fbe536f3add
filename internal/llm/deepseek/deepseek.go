package deepseek

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"llm-equity-trader/internal/interfaces"
	"llm-equity-trader/internal/llm"
)

const DefaultModel = "deepseek-chat"

// Oracle wraps an eino DeepSeek chat model.
type Oracle struct {
	chat   model.BaseChatModel
	system string
}

var _ interfaces.Oracle = (*Oracle)(nil)

func New(ctx context.Context, opts llm.Options) (*Oracle, error) {
	if opts.APIKey == "" {
		return nil, errors.New("deepseek api key missing")
	}
	name := opts.Model
	if name == "" {
		name = DefaultModel
	}
	cm, err := deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
		APIKey:      opts.APIKey,
		BaseURL:     opts.BaseURLOr(""),
		Model:       name,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		Timeout:     opts.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create deepseek model: %w", err)
	}
	return newOracle(cm, opts), nil
}

func newOracle(chat model.BaseChatModel, opts llm.Options) *Oracle {
	return &Oracle{chat: chat, system: opts.SystemPrompt()}
}

func (o *Oracle) Complete(ctx context.Context, prompt string) (string, error) {
	msg, err := o.chat.Generate(ctx, []*schema.Message{
		schema.SystemMessage(o.system),
		schema.UserMessage(prompt),
	})
	if err != nil {
		return "", fmt.Errorf("deepseek generate: %w", err)
	}
	if msg == nil {
		return "", errors.New("deepseek returned no message")
	}
	return msg.Content, nil
}
