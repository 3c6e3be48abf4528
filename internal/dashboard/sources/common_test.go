package sources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(name string) *upstreamClient {
	c := newUpstreamClient(http.DefaultClient, name)
	c.retry = retryPolicy{
		maxAttempts:  3,
		initialDelay: time.Millisecond,
		maxDelay:     5 * time.Millisecond,
	}
	return c
}

func getRequest(t *testing.T, url string) func() (*http.Request, error) {
	t.Helper()
	return func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, url, nil)
	}
}

func TestUpstreamClientRetriesServerErrors(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := testClient("retry-5xx")
	resp, err := c.do(context.Background(), getRequest(t, srv.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if got := atomic.LoadInt64(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestUpstreamClientGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient("retry-exhausted")
	_, err := c.do(context.Background(), getRequest(t, srv.URL))
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if got := atomic.LoadInt64(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestUpstreamClientDoesNotRetryClientErrors(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := testClient("no-retry-4xx")
	_, err := c.do(context.Background(), getRequest(t, srv.URL))

	var se *statusError
	if !errors.As(err, &se) || se.code != http.StatusNotFound {
		t.Fatalf("expected statusError 404, got %v", err)
	}
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}

func TestUpstreamClientHonorsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient("ctx-cancel")
	c.retry.initialDelay = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.do(ctx, getRequest(t, srv.URL))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestRetryPolicyDelayCapped(t *testing.T) {
	p := retryPolicy{
		maxAttempts:  5,
		initialDelay: 100 * time.Millisecond,
		maxDelay:     time.Second,
	}
	for attempt := 0; attempt < 10; attempt++ {
		d := p.delay(attempt)
		if d < 0 || d > p.maxDelay+p.maxDelay/4 {
			t.Fatalf("attempt %d: delay %v outside expected bounds", attempt, d)
		}
	}
}
