package botframework

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/phongdao-saigontechnology/miku-bot-gateway/internal/observability/metrics"
	"github.com/phongdao-saigontechnology/miku-bot-gateway/pkg/logging"
)

const (
	defaultTokenURL = "https://login.microsoftonline.com/botframework.com/oauth2/v2.0/token"
	oauthScope      = "https://api.botframework.com/.default"
)

// TokenProvider caches the OAuth2 client-credentials token shared by
// every outbound channel built from the same app credentials. The token
// is refreshed lazily on first use after expiry, never eagerly.
type TokenProvider struct {
	appID       string
	appPassword string
	tokenURL    string
	httpClient  *http.Client
	logger      *logging.Logger
	metrics     *metrics.ChannelMetrics

	mu        sync.Mutex
	headers   map[string]string
	expiresAt time.Time
}

// TokenProviderConfig configures the shared token cache.
type TokenProviderConfig struct {
	AppID       string
	AppPassword string
	// TokenURL overrides the Microsoft OAuth2 token endpoint. Tests
	// point this at a local server.
	TokenURL   string
	HTTPClient *http.Client
	Logger     *logging.Logger
	Metrics    *metrics.ChannelMetrics
}

// NewTokenProvider creates a token cache. The zero state is expired, so
// the first send triggers an exchange.
func NewTokenProvider(cfg TokenProviderConfig) *TokenProvider {
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &TokenProvider{
		appID:       cfg.AppID,
		appPassword: cfg.AppPassword,
		tokenURL:    tokenURL,
		httpClient:  httpClient,
		logger:      logger,
		metrics:     cfg.Metrics,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// AuthHeaders returns the headers for an authenticated outbound call,
// exchanging credentials for a fresh token when the cached one has
// expired. A nil result means the exchange failed; callers send
// best-effort without auth and the failure is logged here.
func (p *TokenProvider) AuthHeaders(ctx context.Context) map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.headers != nil && time.Now().Before(p.expiresAt) {
		return copyHeaders(p.headers)
	}

	headers, expiresAt, err := p.exchange(ctx)
	if err != nil {
		p.logger.Error("botframework: could not get access token", "error", err)
		p.metrics.ObserveTokenRefresh("error")
		return nil
	}

	p.headers = headers
	p.expiresAt = expiresAt
	p.metrics.ObserveTokenRefresh("ok")
	return copyHeaders(p.headers)
}

// exchange performs the OAuth2 client-credentials flow. Called with the
// mutex held, so concurrent expired callers serialize on one fetch.
func (p *TokenProvider) exchange(ctx context.Context) (map[string]string, time.Time, error) {
	form := url.Values{
		"client_id":     {p.appID},
		"client_secret": {p.appPassword},
		"grant_type":    {"client_credentials"},
		"scope":         {oauthScope},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, time.Time{}, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, time.Time{}, fmt.Errorf("decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, time.Time{}, fmt.Errorf("token endpoint returned empty access_token")
	}

	headers := map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + token.AccessToken,
	}
	return headers, time.Now().Add(time.Duration(token.ExpiresIn) * time.Second), nil
}

func copyHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
