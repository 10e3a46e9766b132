package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Cache is a TTL-bounded in-memory cache shared by components that memoize
// expensive lookups: query-text embeddings and inheritance resolutions.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	Delete(key string)
	Clear()
}

// Key builds a cache key from its parts.
func Key(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return "attestor:v1:" + hex.EncodeToString(hash[:])
}
