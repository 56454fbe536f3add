package deepseek

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-equity-trader/internal/llm"
)

type fakeChat struct {
	got   []*schema.Message
	reply *schema.Message
	err   error
}

func (f *fakeChat) Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.got = in
	return f.reply, f.err
}

func (f *fakeChat) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not used")
}

func TestCompleteSendsSystemAndUser(t *testing.T) {
	chat := &fakeChat{reply: schema.AssistantMessage(`{"decisions":{}}`, nil)}
	o := newOracle(chat, llm.Options{System: "be careful"})

	out, err := o.Complete(context.Background(), "the prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"decisions":{}}`, out)

	require.Len(t, chat.got, 2)
	assert.Equal(t, schema.System, chat.got[0].Role)
	assert.Equal(t, "be careful", chat.got[0].Content)
	assert.Equal(t, schema.User, chat.got[1].Role)
	assert.Equal(t, "the prompt", chat.got[1].Content)
}

func TestCompleteError(t *testing.T) {
	o := newOracle(&fakeChat{err: errors.New("401 unauthorized")}, llm.Options{})
	_, err := o.Complete(context.Background(), "p")
	assert.ErrorContains(t, err, "401 unauthorized")
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(context.Background(), llm.Options{})
	assert.Error(t, err)
}
