package authclient

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// tokenCache remembers successful validations for a bounded time so hot
// tokens do not hammer the identity service. Keys are sha256 digests of the
// token, never the token itself, so a memory dump exposes no credentials.
//
// Expired entries are swept on every insert; the map cannot grow past the
// number of distinct tokens seen within one cache window.
type tokenCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry

	now func() time.Time // swapped out in tests
}

type cacheEntry struct {
	claims   Claims
	cachedAt time.Time
}

func newTokenCache(ttl time.Duration) *tokenCache {
	return &tokenCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// get returns cached claims if an entry exists and is younger than the TTL.
// A stale entry found on lookup is removed on the spot.
func (c *tokenCache) get(token string) (Claims, bool) {
	if c.ttl <= 0 {
		return Claims{}, false
	}

	key := hashToken(token)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return Claims{}, false
	}
	if c.now().Sub(entry.cachedAt) >= c.ttl {
		delete(c.entries, key)
		return Claims{}, false
	}
	return entry.claims, true
}

// put stores a validation result and sweeps everything that has expired.
func (c *tokenCache) put(token string, claims Claims) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[hashToken(token)] = cacheEntry{claims: claims, cachedAt: now}

	for key, entry := range c.entries {
		if now.Sub(entry.cachedAt) >= c.ttl {
			delete(c.entries, key)
		}
	}
}

func (c *tokenCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

func (c *tokenCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
