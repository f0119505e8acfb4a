package vision

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
)

const defaultRetryMaxElapsed = 2 * time.Minute

func newRetryBackoff(maxElapsed time.Duration) backoff.BackOff {
	if maxElapsed <= 0 {
		maxElapsed = defaultRetryMaxElapsed
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxElapsedTime = maxElapsed
	return bo
}

// withRetry retries op on rate limits, server errors and network timeouts.
func withRetry(ctx context.Context, maxElapsed time.Duration, op func() (string, error)) (string, error) {
	var out string
	err := backoff.Retry(func() error {
		res, err := op()
		if err == nil {
			out = res
			return nil
		}
		if isRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(newRetryBackoff(maxElapsed), ctx))
	return out, err
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var oaErr *openai.Error
	if errors.As(err, &oaErr) {
		return retryableStatus(oaErr.StatusCode)
	}
	var anErr *anthropic.Error
	if errors.As(err, &anErr) {
		return retryableStatus(anErr.StatusCode)
	}
	return false
}

func retryableStatus(code int) bool {
	return code == 429 || code >= 500
}
