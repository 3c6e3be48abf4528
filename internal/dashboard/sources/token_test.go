package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newTokenServer(t *testing.T, calls *int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("bad form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "client_credentials" {
			t.Errorf("unexpected grant_type %q", got)
		}
		n := atomic.AddInt64(calls, 1)
		fmt.Fprintf(w, `{"access_token":"token-%d","expires_in":3600}`, n)
	}))
}

func TestCredentialProviderCachesToken(t *testing.T) {
	var calls int64
	srv := newTokenServer(t, &calls)
	defer srv.Close()

	p := NewCredentialProvider(http.DefaultClient, srv.URL, "id", "secret")
	ctx := context.Background()

	first, err := p.Token(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := p.Token(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first != "token-1" || second != "token-1" {
		t.Fatalf("expected the cached token on both calls, got %q and %q", first, second)
	}
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("expected a single token exchange, got %d", got)
	}
}

func TestCredentialProviderInvalidateForcesExchange(t *testing.T) {
	var calls int64
	srv := newTokenServer(t, &calls)
	defer srv.Close()

	p := NewCredentialProvider(http.DefaultClient, srv.URL, "id", "secret")
	ctx := context.Background()

	if _, err := p.Token(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.Invalidate()

	tok, err := p.Token(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok != "token-2" {
		t.Fatalf("expected a fresh token after invalidation, got %q", tok)
	}
	if got := atomic.LoadInt64(&calls); got != 2 {
		t.Fatalf("expected 2 token exchanges, got %d", got)
	}
}

func TestCredentialProviderRequiresURL(t *testing.T) {
	p := NewCredentialProvider(http.DefaultClient, "", "id", "secret")
	if _, err := p.Token(context.Background()); err == nil {
		t.Fatal("expected an error when the token url is not configured")
	}
}

func TestCredentialProviderRejectsEmptyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"expires_in":3600}`))
	}))
	defer srv.Close()

	p := NewCredentialProvider(http.DefaultClient, srv.URL, "id", "secret")
	if _, err := p.Token(context.Background()); err == nil {
		t.Fatal("expected an error for a response without access_token")
	}
}
