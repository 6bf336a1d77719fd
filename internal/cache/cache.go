package cache

import (
	"context"
	"sync"
	"time"

	"boutique/backoffice/internal/domain"
)

// Snapshot is the canonical product and customer lists as last fetched.
type Snapshot struct {
	Products  []domain.Product  `json:"products"`
	Customers []domain.Customer `json:"customers"`
	FetchedAt time.Time         `json:"fetched_at"`
}

type CatalogCache interface {
	Get(ctx context.Context, key string) (*Snapshot, bool, error)
	Set(ctx context.Context, key string, value *Snapshot, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type NoopCatalogCache struct{}

func (NoopCatalogCache) Get(_ context.Context, _ string) (*Snapshot, bool, error) {
	return nil, false, nil
}

func (NoopCatalogCache) Set(_ context.Context, _ string, _ *Snapshot, _ time.Duration) error {
	return nil
}

func (NoopCatalogCache) Delete(_ context.Context, _ string) error {
	return nil
}

// MemoryCatalogCache keeps snapshots in process, honouring the TTL.
type MemoryCatalogCache struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     Snapshot
	expiresAt time.Time
}

func NewMemoryCatalogCache(now func() time.Time) *MemoryCatalogCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryCatalogCache{now: now, entries: make(map[string]memoryEntry)}
}

func (c *MemoryCatalogCache) Get(_ context.Context, key string) (*Snapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	snapshot := entry.value
	return &snapshot, true, nil
}

func (c *MemoryCatalogCache) Set(_ context.Context, key string, value *Snapshot, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	entry := memoryEntry{value: *value}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}

func (c *MemoryCatalogCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}
