package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormat(t *testing.T) {
	err := NewAuthenticationError("openai.Complete", errors.New("invalid key"))
	assert.Equal(t, "llm: openai.Complete (authentication): invalid key", err.Error())

	bare := &Error{Op: "x", Kind: KindInternal}
	assert.Equal(t, "llm: x: internal", bare.Error())
}

func TestErrorUnwrap(t *testing.T) {
	underlying := errors.New("boom")
	err := NewTransientError("ollama.Complete", underlying)
	assert.ErrorIs(t, err, underlying)

	wrapped := fmt.Errorf("send failed: %w", err)
	var e *Error
	require.ErrorAs(t, wrapped, &e)
	assert.Equal(t, KindTransient, e.Kind)
}

func TestErrorIsMatchesKind(t *testing.T) {
	err := NewRateLimitError("grok.Complete", errors.New("throttled"))

	assert.ErrorIs(t, err, &Error{Kind: KindRateLimit})
	assert.ErrorIs(t, err, &Error{Kind: KindRateLimit, Op: "grok.Complete"})
	assert.NotErrorIs(t, err, &Error{Kind: KindRateLimit, Op: "openai.Complete"})
	assert.NotErrorIs(t, err, &Error{Kind: KindAuthentication})
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindConfiguration, KindOf(NewConfigurationError("x", ErrMissingAPIKey)))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, KindRateLimit, KindOf(fmt.Errorf("outer: %w", NewRateLimitError("x", nil))))
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsConfiguration(NewConfigurationError("x", nil)))
	assert.True(t, IsAuthentication(NewAuthenticationError("x", nil)))
	assert.True(t, IsRateLimit(NewRateLimitError("x", nil)))
	assert.True(t, IsTransient(NewTransientError("x", nil)))
	assert.True(t, IsInvalidRequest(NewInvalidRequestError("x", nil)))
	assert.False(t, IsAuthentication(NewRateLimitError("x", nil)))
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		kind   string
	}{
		{401, KindAuthentication},
		{403, KindAuthentication},
		{429, KindRateLimit},
		{400, KindInvalidRequest},
		{404, KindInvalidRequest},
		{422, KindInvalidRequest},
		{500, KindTransient},
		{502, KindTransient},
		{503, KindTransient},
		{418, KindInternal},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.status), func(t *testing.T) {
			err := ClassifyStatus("test.Complete", tt.status, `{"error":"nope"}`)
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

type fakeNetError struct{}

func (fakeNetError) Error() string   { return "connection refused" }
func (fakeNetError) Timeout() bool   { return false }
func (fakeNetError) Temporary() bool { return true }

var _ net.Error = fakeNetError{}

func TestClassifyTransport(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, ClassifyTransport("x", nil))
	})

	t.Run("deadline", func(t *testing.T) {
		assert.True(t, IsTransient(ClassifyTransport("x", context.DeadlineExceeded)))
	})

	t.Run("cancel", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
		defer cancel()
		<-ctx.Done()
		assert.True(t, IsTransient(ClassifyTransport("x", ctx.Err())))
	})

	t.Run("net error", func(t *testing.T) {
		assert.True(t, IsTransient(ClassifyTransport("x", fakeNetError{})))
	})

	t.Run("other", func(t *testing.T) {
		err := ClassifyTransport("x", errors.New("marshal exploded"))
		assert.Equal(t, KindInternal, KindOf(err))
	})
}
