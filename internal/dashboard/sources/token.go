package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// tokenExpirySlack is subtracted from the reported lifetime so a token is
// never presented right at its expiry edge.
const tokenExpirySlack = 30 * time.Second

// CredentialProvider exchanges client credentials for a bearer token and
// caches it until shortly before expiry. It is safe to call before every
// upstream request; only the first call within a validity window performs
// the exchange.
type CredentialProvider struct {
	client       *upstreamClient
	tokenURL     string
	clientID     string
	clientSecret string

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewCredentialProvider creates a provider for the given token endpoint.
func NewCredentialProvider(client *http.Client, tokenURL, clientID, clientSecret string) *CredentialProvider {
	return &CredentialProvider{
		client:       newUpstreamClient(client, "sensor-token"),
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// Token returns a valid bearer token, refreshing it if needed.
func (p *CredentialProvider) Token(ctx context.Context) (string, error) {
	if p.tokenURL == "" {
		return "", fmt.Errorf("sensor hub token url is not configured")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && time.Now().Before(p.expiresAt) {
		return p.token, nil
	}

	buildRequest := func() (*http.Request, error) {
		form := url.Values{}
		form.Set("grant_type", "client_credentials")
		form.Set("client_id", p.clientID)
		form.Set("client_secret", p.clientSecret)

		req, err := http.NewRequest(http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}

	resp, err := p.client.do(ctx, buildRequest)
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token response contained no access_token")
	}

	lifetime := time.Duration(payload.ExpiresIn) * time.Second
	if lifetime <= tokenExpirySlack {
		lifetime = time.Minute
	}

	p.token = payload.AccessToken
	p.expiresAt = time.Now().Add(lifetime - tokenExpirySlack)
	return p.token, nil
}

// Invalidate discards the cached token so the next Token call performs a
// fresh exchange. Called after an upstream rejects the credential.
func (p *CredentialProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = ""
	p.expiresAt = time.Time{}
}
