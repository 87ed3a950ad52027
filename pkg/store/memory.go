// Package store holds the per-session summary slot.
package store

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/xhad/soilreport/internal/models"
	"github.com/xhad/soilreport/internal/types"
)

// MemoryStore keeps sessions in process. Entries expire after the TTL.
type MemoryStore struct {
	cache *cache.Cache
}

var _ types.SessionStore = (*MemoryStore)(nil)

// NewMemoryStore creates a store whose entries live for ttl after their last
// write. A zero ttl keeps them until the process exits.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	expiration, cleanup := ttl, ttl
	if ttl <= 0 {
		expiration, cleanup = cache.NoExpiration, 0
	}
	return &MemoryStore{cache: cache.New(expiration, cleanup)}
}

func (ms *MemoryStore) Get(_ context.Context, id string) (models.Session, bool, error) {
	v, ok := ms.cache.Get(id)
	if !ok {
		return models.Session{ID: id}, false, nil
	}
	return v.(models.Session), true, nil
}

func (ms *MemoryStore) Set(_ context.Context, id, summary, source string) error {
	ms.cache.Set(id, models.Session{
		ID:         id,
		Summary:    summary,
		HasSummary: true,
		SourceName: source,
		UpdatedAt:  time.Now(),
	}, cache.DefaultExpiration)
	return nil
}

func (ms *MemoryStore) Delete(_ context.Context, id string) error {
	ms.cache.Delete(id)
	return nil
}

// Close is a no-op; it exists so MemoryStore satisfies types.SessionStore.
func (ms *MemoryStore) Close() {}
