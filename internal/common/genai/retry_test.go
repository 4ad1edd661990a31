package genai

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

func TestIsRetryable_APIStatusCodes(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{429, true},
		{500, true},
		{502, true},
		{503, true},
		{400, false},
		{401, false},
		{403, false},
		{404, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.status), func(t *testing.T) {
			err := &openai.APIError{HTTPStatusCode: tt.status, Message: "x"}
			assert.Equal(t, tt.want, IsRetryable(err))
		})
	}
}

func TestIsRetryable_WrappedAPIError(t *testing.T) {
	err := fmt.Errorf("chat completion: %w", &openai.APIError{HTTPStatusCode: 429})
	assert.True(t, IsRetryable(err))
}

func TestIsRetryable_TransportSignals(t *testing.T) {
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.True(t, IsRetryable(errors.New("read tcp 10.0.0.1:443: connection reset by peer")))
	assert.True(t, IsRetryable(errors.New("request aborted")))
	assert.True(t, IsRetryable(errors.New("net/http: request canceled (Client.Timeout exceeded)")))
}

func TestIsRetryable_PermanentErrors(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(errors.New("invalid request payload")))
	assert.False(t, IsRetryable(context.Canceled))
}

func TestBackoffDelay_Progression(t *testing.T) {
	base := 500 * time.Millisecond
	max := 8 * time.Second

	assert.Equal(t, 500*time.Millisecond, BackoffDelay(0, base, max))
	assert.Equal(t, 1*time.Second, BackoffDelay(1, base, max))
	assert.Equal(t, 2*time.Second, BackoffDelay(2, base, max))
	assert.Equal(t, 4*time.Second, BackoffDelay(3, base, max))
	assert.Equal(t, 8*time.Second, BackoffDelay(4, base, max))
	assert.Equal(t, 8*time.Second, BackoffDelay(20, base, max), "capped at max")
}

func TestSleepContext_CancelledEarly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := SleepContext(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSleepContext_Elapses(t *testing.T) {
	err := SleepContext(context.Background(), time.Millisecond)
	assert.NoError(t, err)
}
