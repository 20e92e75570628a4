// Package cache stores encoded search result pages between identical
// queries.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// keyPrefix versions the key space; bump it when the cached page
// encoding changes
const keyPrefix = "crowdframe:v1:"

// Cache is a byte-valued store with per-entry TTL. A zero TTL means the
// store's default.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// CacheKey hashes a search request key into the versioned key space
func CacheKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return keyPrefix + hex.EncodeToString(hash[:])
}

// fileName maps a key to a name safe on every filesystem
func fileName(key string) string {
	if h := strings.TrimPrefix(key, keyPrefix); h != key && len(h) == sha256.Size*2 {
		return h
	}
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}
