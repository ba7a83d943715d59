package inventory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

func throttleErr() error {
	return &azcore.ResponseError{StatusCode: http.StatusTooManyRequests, ErrorCode: "RateLimiting"}
}

func forbiddenErr() error {
	return &azcore.ResponseError{StatusCode: http.StatusForbidden, ErrorCode: "AuthorizationFailed"}
}

func TestRetryPolicy_Do_SucceedsAfterThrottle(t *testing.T) {
	calls := 0
	err := testPolicy().Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return throttleErr()
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicy_Do_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := testPolicy().Do(context.Background(), func(ctx context.Context) error {
		calls++
		return throttleErr()
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicy_Do_AuthFailureNotRetried(t *testing.T) {
	calls := 0
	err := testPolicy().Do(context.Background(), func(ctx context.Context) error {
		calls++
		return forbiddenErr()
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls, "authorization failures must not be retried")
}

func TestRetryPolicy_Do_NonRetryableStops(t *testing.T) {
	calls := 0
	err := testPolicy().Do(context.Background(), func(ctx context.Context) error {
		calls++
		return fmt.Errorf("bad query")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_Do_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := testPolicy().Do(ctx, func(ctx context.Context) error {
		return throttleErr()
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"throttled", throttleErr(), true},
		{"server error", &azcore.ResponseError{StatusCode: http.StatusBadGateway}, true},
		{"timeout", context.DeadlineExceeded, true},
		{"forbidden", forbiddenErr(), false},
		{"unauthorized", &azcore.ResponseError{StatusCode: http.StatusUnauthorized}, false},
		{"bad request", &azcore.ResponseError{StatusCode: http.StatusBadRequest}, false},
		{"cancelled", context.Canceled, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestRetryPolicy_DelayIsBoundedAndGrows(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Jitter: 0.2}

	first := p.Delay(1)
	assert.GreaterOrEqual(t, first, 80*time.Millisecond)
	assert.LessOrEqual(t, first, 120*time.Millisecond)

	// Attempt 10 would be 51.2s without the cap.
	capped := p.Delay(10)
	assert.LessOrEqual(t, capped, 1200*time.Millisecond)
}
