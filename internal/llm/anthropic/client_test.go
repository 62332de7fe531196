package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablemorph/tablemorph/internal/llm"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "test-model",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGetTextResponse(t *testing.T) {
	var gotBody map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, apiVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{
			"content": [{"type": "text", "text": "hello "}, {"type": "text", "text": "world"}],
			"stop_reason": "end_turn"
		}`))
	})

	text, err := c.GetTextResponse(context.Background(), llm.Request{
		System: "be brief",
		Prompt: "say hello",
	})
	require.NoError(t, err)
	// Multiple text blocks are concatenated.
	assert.Equal(t, "hello world", text)

	assert.Equal(t, "test-model", gotBody["model"])
	assert.Equal(t, "be brief", gotBody["system"])
	assert.Equal(t, 4096.0, gotBody["max_tokens"])
}

func TestGetTextResponseRequestTokenCap(t *testing.T) {
	var gotBody map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"content": [{"type": "text", "text": "ok"}]}`))
	})

	_, err := c.GetTextResponse(context.Background(), llm.Request{Prompt: "x", MaxTokens: 128})
	require.NoError(t, err)
	assert.Equal(t, 128.0, gotBody["max_tokens"])
}

func TestGetTextResponseHTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.GetTextResponse(context.Background(), llm.Request{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-2xx status")
}

func TestGetTextResponseEmptyContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content": [{"type": "tool_use"}]}`))
	})

	_, err := c.GetTextResponse(context.Background(), llm.Request{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no text content")
}

func TestGetJSONResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content": [{"type": "text", "text": "` + "```json\\n{\\\"answer\\\": 42}\\n```" + `"}]}`))
	})

	var out struct {
		Answer int `json:"answer"`
	}
	require.NoError(t, c.GetJSONResponse(context.Background(), llm.Request{Prompt: "x"}, &out))
	assert.Equal(t, 42, out.Answer)
}

func TestNewClientDefaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-key")
	c := NewClient(Config{}, nil)
	assert.Equal(t, "env-key", c.cfg.APIKey)
	assert.Equal(t, "https://api.anthropic.com", c.cfg.BaseURL)
	assert.Equal(t, 4096, c.cfg.MaxTokens)
}
