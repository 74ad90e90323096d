// Package auth validates client API keys against Argon2id hashes from config.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/tjfontaine/headline-restyler/internal/config"
)

// ErrInvalidAPIKey is returned for keys that match no configured hash.
var ErrInvalidAPIKey = errors.New("invalid API key")

// DefaultCacheTTL is how long a verified key skips Argon2 verification.
const DefaultCacheTTL = 5 * time.Minute

// Key is a configured client key.
type Key struct {
	Hash        string
	Description string
}

// Authenticator validates API keys. Argon2id is slow on purpose, so keys
// that verified recently are remembered by their SHA-256 digest.
type Authenticator struct {
	keys  []Key
	cache *ristretto.Cache[string, *Key]
	ttl   time.Duration
}

// NewAuthenticator creates an authenticator for the configured keys.
// A ttl of zero uses DefaultCacheTTL.
func NewAuthenticator(keys []config.APIKeyConfig, ttl time.Duration) (*Authenticator, error) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	a := &Authenticator{ttl: ttl}
	for i, k := range keys {
		if _, _, _, err := decodeHash(k.KeyHash); err != nil {
			return nil, fmt.Errorf("auth.api_keys[%d]: %w", i, err)
		}
		a.keys = append(a.keys, Key{Hash: k.KeyHash, Description: k.Description})
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, *Key]{
		NumCounters: 10000,
		MaxCost:     1000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	a.cache = cache
	return a, nil
}

// ValidateAPIKey returns the configured key matching apiKey.
func (a *Authenticator) ValidateAPIKey(apiKey string) (*Key, error) {
	if apiKey == "" {
		return nil, ErrInvalidAPIKey
	}

	digest := sha256.Sum256([]byte(apiKey))
	cacheKey := hex.EncodeToString(digest[:])

	if k, ok := a.cache.Get(cacheKey); ok {
		return k, nil
	}

	for i := range a.keys {
		ok, err := VerifyAPIKey(apiKey, a.keys[i].Hash)
		if err != nil || !ok {
			continue
		}
		k := &a.keys[i]
		a.cache.SetWithTTL(cacheKey, k, 1, a.ttl)
		return k, nil
	}
	return nil, ErrInvalidAPIKey
}

// Close releases the verification cache.
func (a *Authenticator) Close() {
	a.cache.Close()
}

// ExtractAPIKey extracts the API key from the Authorization header.
func ExtractAPIKey(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", fmt.Errorf("missing Authorization header")
	}

	// Support "Bearer <key>" format
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid Authorization header format")
	}

	if strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("unsupported authorization scheme")
	}

	return strings.TrimSpace(parts[1]), nil
}
