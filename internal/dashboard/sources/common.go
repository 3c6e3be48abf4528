package sources

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// retryPolicy controls retry attempts and exponential backoff. A single
// policy is shared by all upstream calls instead of per-call ad hoc
// backoff loops.
type retryPolicy struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
}

var defaultRetryPolicy = retryPolicy{
	maxAttempts:  3,
	initialDelay: 500 * time.Millisecond,
	maxDelay:     5 * time.Second,
}

// delay returns the backoff before the given retry attempt (0-based),
// with up to 25% random jitter added.
func (p retryPolicy) delay(attempt int) time.Duration {
	d := p.initialDelay * time.Duration(math.Pow(2, float64(attempt)))
	if p.maxDelay > 0 && d > p.maxDelay {
		d = p.maxDelay
	}
	return d + time.Duration(rand.Int63n(int64(d/4)+1))
}

var (
	errRateLimited = errors.New("rate limited")
	errCircuitOpen = errors.New("circuit breaker open")
)

// statusError is returned for non-2xx responses outside the retryable
// classes, so callers can react to specific codes (e.g. 401).
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status code %d", e.code)
}

// upstreamClient wraps an HTTP client with retries, exponential backoff,
// and a per-upstream circuit breaker. Transport errors, 429 and 5xx are
// retried; other non-2xx responses fail immediately.
type upstreamClient struct {
	http    *http.Client
	retry   retryPolicy
	breaker *gobreaker.CircuitBreaker
}

func newUpstreamClient(client *http.Client, name string) *upstreamClient {
	return &upstreamClient{
		http:  client,
		retry: defaultRetryPolicy,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 5,
			Interval:    1 * time.Minute,
			Timeout:     2 * time.Minute,
		}),
	}
}

// do executes one upstream call. buildRequest is invoked per attempt so
// request bodies and headers are fresh on every retry.
func (c *upstreamClient) do(ctx context.Context, buildRequest func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt < c.retry.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := buildRequest()
		if err != nil {
			return nil, err
		}
		req = req.WithContext(ctx)

		result, err := c.breaker.Execute(func() (interface{}, error) {
			resp, execErr := c.http.Do(req)
			if execErr != nil {
				return nil, execErr
			}
			switch {
			case resp.StatusCode == http.StatusTooManyRequests:
				resp.Body.Close()
				return nil, errRateLimited
			case resp.StatusCode >= 500:
				resp.Body.Close()
				return nil, fmt.Errorf("server error: %d", resp.StatusCode)
			case resp.StatusCode < 200 || resp.StatusCode >= 300:
				resp.Body.Close()
				return nil, &statusError{code: resp.StatusCode}
			}
			return resp, nil
		})
		if err == nil {
			return result.(*http.Response), nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}

		var se *statusError
		if errors.As(err, &se) {
			// Client errors are not transient; retrying cannot help.
			return nil, err
		}

		lastErr = err
		if attempt == c.retry.maxAttempts-1 {
			break
		}

		timer := time.NewTimer(c.retry.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, lastErr
}
