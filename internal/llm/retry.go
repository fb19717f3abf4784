package llm

import (
	"context"
	"math/rand/v2"
	"time"
)

// MaxRetries bounds retries of transient backend failures.
const MaxRetries = 2

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

// withRetry retries fn on RetryableError until MaxRetries or ctx is done.
// sleep is injectable for tests.
func withRetry(ctx context.Context, sleep func(context.Context, time.Duration) error, fn func() (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		out, err := fn()
		if err == nil || !IsRetryable(err) {
			return out, err
		}
		lastErr = err
		if attempt == MaxRetries {
			break
		}
		if err := sleep(ctx, Backoff(attempt)); err != nil {
			return "", lastErr
		}
	}
	return "", lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
