package google

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultJWKSURL publishes the keys Google signs ID tokens with.
const DefaultJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

const defaultKeyTTL = time.Hour

var (
	ErrKeyNotFound     = errors.New("signing key not found")
	ErrKeysUnavailable = errors.New("signing keys unavailable")
)

// KeyCache fetches RSA signing keys from a JWKS endpoint and caches them by
// kid. An unknown kid triggers a refetch so key rotation is picked up early.
type KeyCache struct {
	jwksURL    string
	httpClient *http.Client
	ttl        time.Duration
	now        func() time.Time

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	expiresAt time.Time
}

// NewKeyCache creates a key cache for jwksURL. A nil httpClient uses a plain
// client with a 10 second timeout.
func NewKeyCache(jwksURL string, httpClient *http.Client) *KeyCache {
	if jwksURL == "" {
		jwksURL = DefaultJWKSURL
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 10 * time.Second,
		}
	}

	return &KeyCache{
		jwksURL:    jwksURL,
		httpClient: httpClient,
		ttl:        defaultKeyTTL,
		now:        time.Now,
		keys:       make(map[string]*rsa.PublicKey),
	}
}

// Key returns the public key for kid.
func (c *KeyCache) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	key, ok := c.keys[kid]
	fresh := c.now().Before(c.expiresAt)
	c.mu.RUnlock()

	if ok && fresh {
		return key, nil
	}

	keys, err := c.fetch(ctx)
	if err != nil {
		// serve a stale key rather than failing every sign in while the
		// endpoint is unreachable
		if ok {
			log.Warn().Err(err).Str("kid", kid).Msg("Using stale signing key")
			return key, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrKeysUnavailable, err)
	}

	c.mu.Lock()
	c.keys = keys
	c.expiresAt = c.now().Add(c.ttl)
	c.mu.Unlock()

	key, ok = keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}

	log.Info().Str("kid", kid).Int("total_keys", len(keys)).Msg("Cached JWKS")
	return key, nil
}

func (c *KeyCache) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	log.Debug().Str("jwks_url", c.jwksURL).Msg("Fetching JWKS")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS request failed: %s", resp.Status)
	}

	var jwks struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, fmt.Errorf("failed to decode JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for _, k := range jwks.Keys {
		if k.Kid == "" {
			log.Warn().Msg("JWK missing kid")
			continue
		}
		key, err := k.rsaPublicKey()
		if err != nil {
			log.Warn().Err(err).Str("kid", k.Kid).Msg("Failed to parse JWK")
			continue
		}
		keys[k.Kid] = key
	}

	return keys, nil
}

type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (k jwk) rsaPublicKey() (*rsa.PublicKey, error) {
	if k.Kty != "RSA" {
		return nil, fmt.Errorf("unsupported key type: %s", k.Kty)
	}

	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}

	e := new(big.Int).SetBytes(eBytes)
	if !e.IsInt64() || e.Int64() < 3 || e.Int64() > 1<<31-1 {
		return nil, fmt.Errorf("invalid exponent")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(e.Int64()),
	}, nil
}
