package botframework

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/phongdao-saigontechnology/miku-bot-gateway/internal/observability/metrics"
	"github.com/phongdao-saigontechnology/miku-bot-gateway/pkg/logging"
)

const (
	defaultOpenIDConfigURL = "https://login.botframework.com/v1/.well-known/openidconfiguration"
	jwkRefreshInterval     = 24 * time.Hour
)

// jwkEntry is one usable verification key from the platform's JWK set.
type jwkEntry struct {
	publicKey *rsa.PublicKey
	alg       string
}

// keyCache holds the platform's JWK set. Refreshes happen at most once
// per interval; a failed refresh keeps the previous keys (stale but
// available) so authentication never blocks on the discovery endpoints.
type keyCache struct {
	configURL  string
	httpClient *http.Client
	logger     *logging.Logger
	metrics    *metrics.ChannelMetrics

	mu            sync.RWMutex
	keys          map[string]jwkEntry
	lastRefreshed time.Time
}

func newKeyCache(configURL string, httpClient *http.Client, logger *logging.Logger, m *metrics.ChannelMetrics) *keyCache {
	if configURL == "" {
		configURL = defaultOpenIDConfigURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &keyCache{
		configURL:  configURL,
		httpClient: httpClient,
		logger:     logger,
		metrics:    m,
		keys:       map[string]jwkEntry{},
	}
}

type openIDConfiguration struct {
	JWKSURI string `json:"jwks_uri"`
}

type jwksResponse struct {
	Keys []jwkKey `json:"keys"`
}

type jwkKey struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// refresh fetches the OpenID configuration, follows jwks_uri, and
// replaces the cached key set. On any failure the previous cache,
// including its refresh timestamp, is left untouched.
func (c *keyCache) refresh(ctx context.Context) error {
	conf, err := c.fetchConfiguration(ctx)
	if err != nil {
		c.metrics.ObserveJWKRefresh("error")
		return err
	}

	keys, err := c.fetchKeys(ctx, conf.JWKSURI)
	if err != nil {
		c.metrics.ObserveJWKRefresh("error")
		return err
	}

	c.mu.Lock()
	c.keys = keys
	c.lastRefreshed = time.Now()
	c.mu.Unlock()

	c.metrics.ObserveJWKRefresh("ok")
	return nil
}

// refreshIfStale refreshes when the cache is older than the interval.
// Failures are logged and the request proceeds on the stale cache.
func (c *keyCache) refreshIfStale(ctx context.Context) {
	c.mu.RLock()
	stale := time.Since(c.lastRefreshed) > jwkRefreshInterval
	c.mu.RUnlock()
	if !stale {
		return
	}
	if err := c.refresh(ctx); err != nil {
		c.logger.Warn("botframework: could not refresh JWK set, continuing with stale cache",
			"config_url", c.configURL,
			"error", err,
		)
	}
}

// lookup returns the key for a token's key id.
func (c *keyCache) lookup(kid string) (jwkEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.keys[kid]
	return entry, ok
}

func (c *keyCache) fetchConfiguration(ctx context.Context) (*openIDConfiguration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.configURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create openid config request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch openid configuration: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openid configuration request failed with status %d", resp.StatusCode)
	}

	var conf openIDConfiguration
	if err := json.NewDecoder(resp.Body).Decode(&conf); err != nil {
		return nil, fmt.Errorf("decode openid configuration: %w", err)
	}
	if conf.JWKSURI == "" {
		return nil, fmt.Errorf("openid configuration has no jwks_uri")
	}
	return &conf, nil
}

func (c *keyCache) fetchKeys(ctx context.Context, jwksURL string) (map[string]jwkEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create JWKS request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS request failed with status %d", resp.StatusCode)
	}

	var jwks jwksResponse
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, fmt.Errorf("decode JWKS: %w", err)
	}

	keys := make(map[string]jwkEntry)
	for _, key := range jwks.Keys {
		if key.Kty != "RSA" {
			continue
		}
		pubKey, err := parseRSAPublicKey(key.N, key.E)
		if err != nil {
			c.logger.Warn("botframework: skipping unparseable JWK", "kid", key.Kid, "error", err)
			continue
		}
		keys[key.Kid] = jwkEntry{publicKey: pubKey, alg: key.Alg}
	}

	if len(keys) == 0 {
		return nil, fmt.Errorf("no valid RSA keys found in JWKS")
	}
	return keys, nil
}

// parseRSAPublicKey parses RSA public key components from base64url-encoded strings.
func parseRSAPublicKey(nStr, eStr string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}

	eBytes, err := base64.RawURLEncoding.DecodeString(eStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}

	n := new(big.Int).SetBytes(nBytes)
	e := 0
	for _, b := range eBytes {
		e = e<<8 + int(b)
	}

	return &rsa.PublicKey{N: n, E: e}, nil
}
