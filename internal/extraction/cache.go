package extraction

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"visareview/internal"
)

// memoryCache is the in-process tier in front of the sqlite cache.
type memoryCache struct {
	c *gocache.Cache
}

func newMemoryCache(ttl time.Duration) *memoryCache {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &memoryCache{c: gocache.New(ttl, 2*ttl)}
}

func (m *memoryCache) get(hash string) (internal.ExtractionResult, bool) {
	v, ok := m.c.Get("extraction:" + hash)
	if !ok {
		return internal.ExtractionResult{}, false
	}
	res, ok := v.(internal.ExtractionResult)
	return res, ok
}

func (m *memoryCache) set(hash string, res internal.ExtractionResult) {
	m.c.SetDefault("extraction:"+hash, res)
}

func (m *memoryCache) delete(hash string) {
	m.c.Delete("extraction:" + hash)
}

func (m *memoryCache) flush() {
	m.c.Flush()
}
