package ai

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/anything-ai/anything-ai/internal/apperrors"
	"github.com/anything-ai/anything-ai/internal/i18n"
)

// retryPolicy controls retries of rate-limited upstream calls
type retryPolicy struct {
	maxRetries int
	initial    time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsRateLimited reports whether err is an upstream 429 / RESOURCE_EXHAUSTED
func IsRateLimited(err error) bool {
	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		return false
	}
	return upErr.StatusCode == http.StatusTooManyRequests || upErr.Status == "RESOURCE_EXHAUSTED"
}

// withBackoff runs op, retrying rate-limited failures with a doubling delay.
// Other errors are returned immediately. When retries run out the last error
// is wrapped as QUOTA_EXCEEDED.
func withBackoff[T any](ctx context.Context, policy retryPolicy, onRetry func(attempt int, delay time.Duration, err error), op func() (T, error)) (T, error) {
	var zero T
	delay := policy.initial

	for attempt := 0; ; attempt++ {
		result, err := op()
		if err == nil {
			return result, nil
		}
		if !IsRateLimited(err) {
			return zero, err
		}
		if attempt >= policy.maxRetries {
			return zero, apperrors.Wrap(apperrors.QuotaExceeded, "upstream rate limit exceeded", err).
				WithMessageID(i18n.MsgQuotaExceeded)
		}

		if onRetry != nil {
			onRetry(attempt+1, delay, err)
		}
		if err := policy.sleep(ctx, delay); err != nil {
			return zero, err
		}
		delay *= 2
	}
}
