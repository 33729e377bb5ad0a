package ratelimit

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemoryStoreSize bounds distinct keys tracked at once. Beyond this
// the least recently used key is evicted, which only loosens the limit for
// the evicted key.
const DefaultMemoryStoreSize = 16384

// MemoryStore is an LRU-bounded in-memory entry store
type MemoryStore struct {
	cache *lru.Cache[string, Entry]
}

// NewMemoryStore creates a store capped at size keys
func NewMemoryStore(size int) *MemoryStore {
	if size <= 0 {
		size = DefaultMemoryStoreSize
	}
	// lru.New only errors on a non-positive size
	cache, _ := lru.New[string, Entry](size)
	return &MemoryStore{cache: cache}
}

// Get returns the entry for key if present
func (s *MemoryStore) Get(key string) (Entry, bool) {
	return s.cache.Get(key)
}

// Set stores the entry for key
func (s *MemoryStore) Set(key string, e Entry) {
	s.cache.Add(key, e)
}

// Sweep removes entries whose window has passed
func (s *MemoryStore) Sweep(now time.Time) {
	for _, key := range s.cache.Keys() {
		if e, ok := s.cache.Peek(key); ok && !now.Before(e.ResetTime) {
			s.cache.Remove(key)
		}
	}
}

// Len returns the number of tracked keys
func (s *MemoryStore) Len() int {
	return s.cache.Len()
}
