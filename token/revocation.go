package token

import (
	"sync"
	"time"
)

// RevokedTokenCache remembers revoked token and session ids until the
// access tokens they could cover have expired.
type RevokedTokenCache interface {
	Add(key string, exp time.Time) error
	IsRevoked(key string) bool
	Cleanup() // Remove expired entries
}

// InMemoryRevokedTokenCache is a simple in-memory implementation
type InMemoryRevokedTokenCache struct {
	revoked map[string]time.Time
	nowFunc func() time.Time
	mu      sync.RWMutex
}

func NewInMemoryRevokedTokenCache(nowFunc func() time.Time) *InMemoryRevokedTokenCache {
	if nowFunc == nil {
		nowFunc = time.Now
	}
	return &InMemoryRevokedTokenCache{
		revoked: make(map[string]time.Time),
		nowFunc: nowFunc,
	}
}

func (c *InMemoryRevokedTokenCache) Add(key string, exp time.Time) error {
	if key == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[key] = exp
	return nil
}

func (c *InMemoryRevokedTokenCache) IsRevoked(key string) bool {
	if key == "" {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.revoked[key]
	return exists
}

func (c *InMemoryRevokedTokenCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.nowFunc()
	for key, exp := range c.revoked {
		if now.After(exp) {
			delete(c.revoked, key)
		}
	}
}
