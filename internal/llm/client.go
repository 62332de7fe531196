package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedResponse marks LLM output that could not be decoded as JSON.
// Callers use errors.Is to tell decode failures apart from transport errors.
var ErrMalformedResponse = errors.New("malformed llm response")

// Request is a single prompt exchange.
type Request struct {
	System    string
	Prompt    string
	MaxTokens int
}

// Client is the provider-agnostic LLM surface used by the agents.
type Client interface {
	// GetTextResponse returns the raw text completion.
	GetTextResponse(ctx context.Context, req Request) (string, error)
	// GetJSONResponse returns the completion decoded into v after stripping
	// markdown fencing. A decode failure wraps ErrMalformedResponse.
	GetJSONResponse(ctx context.Context, req Request, v any) error
}

// DecodeJSONResponse strips markdown code fencing from text and unmarshals the
// remainder into v.
func DecodeJSONResponse(text string, v any) error {
	cleaned := StripCodeFences(text)
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// StripCodeFences removes a leading ```json / ``` fence and a trailing ```
// from text, returning the trimmed payload.
func StripCodeFences(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}
