package embedder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
)

// RetryConfig configures exponential backoff retry behavior
type RetryConfig struct {
	MaxRetries int           // Maximum number of attempts
	BaseDelay  time.Duration // Initial delay between attempts
	MaxDelay   time.Duration // Upper bound for a single delay
}

// DefaultRetryConfig returns the defaults used for provider calls
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: MaxRetries,
		BaseDelay:  time.Duration(InitialBackoffMs) * time.Millisecond,
		MaxDelay:   time.Duration(MaxBackoffMs) * time.Millisecond,
	}
}

// retryWithBackoff runs fn until it succeeds, attempts run out, or ctx is done.
// Context errors are returned as-is and never retried.
func retryWithBackoff[T any](ctx context.Context, config RetryConfig, fn func() (T, error)) (T, error) {
	var result T

	attempts := config.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}

	err := retry.Do(
		func() error {
			r, err := fn()
			if err != nil {
				return err
			}
			result = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.Delay(config.BaseDelay),
		retry.MaxDelay(config.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return retry.IsRecoverable(err) &&
				!errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			var zero T
			return zero, ctxErr
		}
		var zero T
		return zero, err
	}

	return result, nil
}

// statusError reports a non-200 reply. Client errors other than 429 will not
// succeed on retry and are marked unrecoverable.
func statusError(code int, detail string) error {
	err := fmt.Errorf("api error %d: %s", code, detail)
	if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
		return retry.Unrecoverable(err)
	}
	return err
}
