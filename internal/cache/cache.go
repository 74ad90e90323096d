// Package cache keeps recent transform results so repeated requests for the
// same article and author skip the upstream call.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/tjfontaine/headline-restyler/internal/domain"
)

// Cache is a bounded TTL cache of successful transforms.
type Cache struct {
	store *ristretto.Cache[string, domain.TransformResult]
	ttl   time.Duration
}

// New creates a cache holding up to maxEntries results for ttl each.
func New(maxEntries int64, ttl time.Duration) (*Cache, error) {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	store, err := ristretto.NewCache(&ristretto.Config[string, domain.TransformResult]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{store: store, ttl: ttl}, nil
}

// Key derives the cache key for a request. Provider and fallback are part of
// the key so a request for the test backend never serves a live result.
func Key(req domain.TransformRequest) string {
	fallback, _ := req.Fallback()

	h := sha256.New()
	for _, part := range []string{
		string(req.Provider()),
		string(fallback),
		req.Headline(),
		req.Author(),
		req.Body(),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached result for req.
func (c *Cache) Get(req domain.TransformRequest) (domain.TransformResult, bool) {
	return c.store.Get(Key(req))
}

// Set stores res for req. Ristretto applies sets asynchronously and may drop
// them under contention.
func (c *Cache) Set(req domain.TransformRequest, res domain.TransformResult) bool {
	return c.store.SetWithTTL(Key(req), res, 1, c.ttl)
}

// Wait blocks until pending sets are applied.
func (c *Cache) Wait() {
	c.store.Wait()
}

// Close stops the cache's background goroutines.
func (c *Cache) Close() {
	c.store.Close()
}
