package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"no fence", `{"a":1}`, `{"a":1}`},
		{"whitespace", "  {\"a\":1}  ", `{"a":1}`},
		{"unterminated fence", "```json\n{\"a\":1}", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCodeFences(tt.in))
		})
	}
}

func TestDecodeJSONResponse(t *testing.T) {
	var out map[string]int
	require.NoError(t, DecodeJSONResponse("```json\n{\"a\": 1}\n```", &out))
	assert.Equal(t, 1, out["a"])

	err := DecodeJSONResponse("not json at all", &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestValidateJSONAgainstSchema(t *testing.T) {
	schemaMap := map[string]any{
		"type":     "object",
		"required": []any{"name"},
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
			"age":  map[string]any{"type": "integer", "minimum": 0},
		},
	}

	require.NoError(t, ValidateJSONAgainstSchema(schemaMap, []byte(`{"name":"x","age":3}`)))

	err := ValidateJSONAgainstSchema(schemaMap, []byte(`{"age":3}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match schema")

	err = ValidateJSONAgainstSchema(schemaMap, []byte(`{"name":"x","age":-1}`))
	require.Error(t, err)
}

func TestValidateAndDecode(t *testing.T) {
	schemaMap := map[string]any{
		"type":     "object",
		"required": []any{"name"},
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
		},
	}
	var out struct {
		Name string `json:"name"`
	}

	require.NoError(t, ValidateAndDecode(schemaMap, []byte(`{"name":"x"}`), &out))
	assert.Equal(t, "x", out.Name)

	// Schema failures never touch the destination.
	out.Name = ""
	require.Error(t, ValidateAndDecode(schemaMap, []byte(`{}`), &out))
	assert.Empty(t, out.Name)
}

func TestSendJSON(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var gotAuth, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("X-Api-Key")
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	raw, status, err := SendJSON(context.Background(), srv.Client(), srv.URL,
		map[string]string{"prompt": "hi"}, map[string]string{"X-Api-Key": "secret"}, logger)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"ok":true}`, string(raw))
	assert.Equal(t, "secret", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
}

func TestSendJSONNon2xx(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	raw, status, err := SendJSON(context.Background(), srv.Client(), srv.URL, map[string]string{}, nil, logger)
	require.Error(t, err)
	assert.Equal(t, http.StatusTooManyRequests, status)
	// The body is still returned so callers can surface provider errors.
	assert.Contains(t, string(raw), "rate limited")
}
