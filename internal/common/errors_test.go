package common

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError(t *testing.T) {
	cause := errors.New("boom")
	err := NewAppError("UNSUPPORTED_FORMAT", "bad extension", cause)
	assert.Equal(t, "UNSUPPORTED_FORMAT: bad extension: boom", err.Error())
	assert.True(t, errors.Is(err, cause))

	bare := NewAppError("EMPTY_FILE", "no rows", nil)
	assert.Equal(t, "EMPTY_FILE: no rows", bare.Error())
}

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError(nil, "ignored"))

	cause := errors.New("boom")
	err := WrapError(cause, "load config")
	assert.Equal(t, "load config: boom", err.Error())
	assert.True(t, errors.Is(err, cause))
}

func TestWrapErrorAs(t *testing.T) {
	cause := errors.New("sql: no rows")
	err := WrapErrorAs(ErrNotFound, "job abc not found", cause)
	require.Error(t, err)
	// Both the sentinel and the cause stay matchable.
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "job abc not found")

	err = WrapErrorAs(ErrNotFound, "job abc not found", nil)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))

	ctx = WithRequestID(ctx, "req-123")
	assert.Equal(t, "req-123", RequestIDFromContext(ctx))
}
