package httpx

import (
	"context"
	"math/rand"
	nethttp "net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/nimbusdrive/nimbus-cli/internal/constants"
)

// NewRetryClient wraps an HTTP client with retry behavior for gateway
// calls. Transport failures and 5xx/429 responses are retried with
// backoff; every other status is returned to the caller for typed error
// translation. 401 in particular must reach the session layer untouched
// so the refresh-and-replay logic can run.
func NewRetryClient(base *nethttp.Client) *nethttp.Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = base
	rc.RetryMax = constants.HTTPRetryMax
	rc.RetryWaitMin = constants.HTTPRetryWaitMin
	rc.RetryWaitMax = constants.HTTPRetryWaitMax
	rc.CheckRetry = checkRetry
	rc.Logger = nil
	return rc.StandardClient()
}

// checkRetry retries on transport errors, 429 and 5xx. All 4xx including
// 401 pass through.
func checkRetry(ctx context.Context, resp *nethttp.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if resp == nil {
		return true, nil
	}
	if resp.StatusCode == nethttp.StatusTooManyRequests || resp.StatusCode >= 500 {
		return true, nil
	}
	return false, nil
}

// Backoff returns an exponential backoff duration with full jitter.
// Full jitter spreads simultaneous retries apart.
func Backoff(attempt int, initialDelay, maxDelay time.Duration) time.Duration {
	if attempt <= 0 {
		return 0
	}

	base := time.Duration(1<<uint(attempt)) * initialDelay
	if base > maxDelay {
		base = maxDelay
	}

	return time.Duration(rand.Int63n(int64(base)))
}
