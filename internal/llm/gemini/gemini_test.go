package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-equity-trader/internal/llm"
)

func TestCompleteCallsGenerateContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Equal(t, "g-key", r.URL.Query().Get("key"))

		var body generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 800, body.GenerationConfig.MaxOutputTokens)
		assert.InDelta(t, 0.2, body.GenerationConfig.Temperature, 1e-6)
		require.Len(t, body.Contents, 1)
		assert.Equal(t, "snapshot", body.Contents[0].Parts[0].Text)

		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"600519\":{\"signal\":\"hold\"}}"}]}}]}`))
	}))
	defer srv.Close()

	o, err := New(llm.Options{APIKey: "g-key", BaseURL: srv.URL + "/models", Model: "gemini-2.0-flash", MaxTokens: 800, Temperature: 0.2})
	require.NoError(t, err)

	out, err := o.Complete(context.Background(), "snapshot")
	require.NoError(t, err)
	assert.Equal(t, `{"600519":{"signal":"hold"}}`, out)
}

func TestCompleteEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	o, err := New(llm.Options{APIKey: "k", BaseURL: srv.URL, Model: "m"})
	require.NoError(t, err)
	_, err = o.Complete(context.Background(), "p")
	assert.ErrorContains(t, err, "no candidates")
}

func TestNewValidates(t *testing.T) {
	_, err := New(llm.Options{Model: "m"})
	assert.Error(t, err)
	_, err = New(llm.Options{APIKey: "k"})
	assert.Error(t, err)
}
