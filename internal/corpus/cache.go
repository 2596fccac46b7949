package corpus

import (
	"sync"

	"github.com/hyperjump/shikiri/internal/models"
)

// cache holds loaded partitions keyed strictly by tenant id. Entries are
// whole-partition snapshots; the watcher invalidates a tenant's entry when
// anything under its directory changes.
type cache struct {
	mu   sync.RWMutex
	docs map[models.TenantID][]models.Document
}

func newCache() *cache {
	return &cache{docs: make(map[models.TenantID][]models.Document)}
}

// get returns a copy of the slice header so a caller can never mutate the
// cached ordering out from under another request.
func (c *cache) get(id models.TenantID) ([]models.Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	docs, ok := c.docs[id]
	if !ok {
		return nil, false
	}
	out := make([]models.Document, len(docs))
	copy(out, docs)
	return out, true
}

func (c *cache) set(id models.TenantID, docs []models.Document) {
	stored := make([]models.Document, len(docs))
	copy(stored, docs)
	c.mu.Lock()
	c.docs[id] = stored
	c.mu.Unlock()
}

func (c *cache) invalidate(id models.TenantID) {
	c.mu.Lock()
	delete(c.docs, id)
	c.mu.Unlock()
}

func (c *cache) invalidateAll() {
	c.mu.Lock()
	c.docs = make(map[models.TenantID][]models.Document)
	c.mu.Unlock()
}
