package decrypt

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/hkdf"
)

// KeyFetcher retrieves the raw bytes of an #EXT-X-KEY's URI.
type KeyFetcher interface {
	FetchKey(ctx context.Context, keyURI string) ([]byte, error)
}

type cacheEntry struct {
	key       []byte
	expiresAt time.Time
}

// KeyCache caches decryption keys in memory keyed by an HKDF fingerprint of
// the key URI rather than the URI itself. HLS key URIs are frequently
// signed (carrying auth tokens in the query string); indexing the cache by
// a derived fingerprint means a heap dump or accidental log of the cache's
// keys never reveals the signed URI verbatim.
type KeyCache struct {
	mu      sync.Mutex
	fetcher KeyFetcher
	ttl     time.Duration
	entries map[string]cacheEntry
}

// NewKeyCache constructs a key cache backed by fetcher, with entries
// expiring after ttl.
func NewKeyCache(fetcher KeyFetcher, ttl time.Duration) *KeyCache {
	return &KeyCache{
		fetcher: fetcher,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the raw key bytes for keyURI, fetching and caching them on a
// miss or on TTL expiry.
func (c *KeyCache) Get(ctx context.Context, keyURI string) ([]byte, error) {
	fp := fingerprint(keyURI)

	c.mu.Lock()
	entry, ok := c.entries[fp]
	c.mu.Unlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.key, nil
	}

	key, err := c.fetcher.FetchKey(ctx, keyURI)
	if err != nil {
		return nil, fmt.Errorf("fetching decryption key: %w", err)
	}

	c.mu.Lock()
	c.entries[fp] = cacheEntry{key: key, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	return key, nil
}

func fingerprint(keyURI string) string {
	r := hkdf.New(sha256.New, []byte(keyURI), nil, []byte("streamvault-hls-key-cache"))
	out := make([]byte, 16)
	_, _ = r.Read(out)
	return hex.EncodeToString(out)
}
