// File: tlsadapter/sessioncache.go
// Author: momentics <momentics@gmail.com>
//
// lruSessionCache adapts github.com/hashicorp/golang-lru/v2 to
// crypto/tls.ClientSessionCache, giving TLS session resumption a bounded
// footprint instead of tls.Config's default unbounded map-backed cache.

package tlsadapter

import (
	"crypto/tls"

	lru "github.com/hashicorp/golang-lru/v2"
)

type lruSessionCache struct {
	cache *lru.Cache[string, *tls.ClientSessionState]
}

// NewSessionCache returns a tls.ClientSessionCache bounded to size
// entries, evicting least-recently-used sessions once full.
func NewSessionCache(size int) tls.ClientSessionCache {
	c, err := lru.New[string, *tls.ClientSessionState](size)
	if err != nil {
		// Only returns an error for a non-positive size; callers pass a
		// constant, so fall back to a minimal cache rather than panic.
		c, _ = lru.New[string, *tls.ClientSessionState](1)
	}
	return &lruSessionCache{cache: c}
}

func (l *lruSessionCache) Get(sessionKey string) (*tls.ClientSessionState, bool) {
	return l.cache.Get(sessionKey)
}

func (l *lruSessionCache) Put(sessionKey string, cs *tls.ClientSessionState) {
	l.cache.Add(sessionKey, cs)
}
