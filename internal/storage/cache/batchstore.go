// --- File: internal/storage/cache/batchstore.go ---
package cache

import (
	"context"
	"time"

	"github.com/tinywideclouds/go-indexing-service/pkg/dispatch"
	"github.com/tinywideclouds/go-indexing-service/pkg/notify"
)

const latestKey = "notify:batches:latest"

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// Get decodes the value into dest, or returns an error (ErrMiss when absent).
	Get(ctx context.Context, key string, dest interface{}) error
	// Set stores the value with a TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Del removes the key.
	Del(ctx context.Context, key string) error
}

// CachedBatchStore is a Decorator that adds write-through caching to any
// BatchStore. Every replica reading GET /api/v1/batches/latest is served from
// Redis; the real store is only read on a miss.
type CachedBatchStore struct {
	realStore dispatch.BatchStore
	cache     CacheClient
	ttl       time.Duration
}

func NewCachedBatchStore(realStore dispatch.BatchStore, cache CacheClient, ttl time.Duration) *CachedBatchStore {
	return &CachedBatchStore{
		realStore: realStore,
		cache:     cache,
		ttl:       ttl,
	}
}

// Latest serves from the cache and falls back to the real store on a miss.
func (s *CachedBatchStore) Latest(ctx context.Context) (*notify.Batch, error) {
	var cached notify.Batch
	if err := s.cache.Get(ctx, latestKey, &cached); err == nil {
		return &cached, nil
	}

	fresh, err := s.realStore.Latest(ctx)
	if err != nil {
		return nil, err
	}

	// Caching is an optimization; a Redis outage just means reads go to the store.
	_ = s.cache.Set(ctx, latestKey, fresh, s.ttl)
	return fresh, nil
}

// SaveLatest writes to the source of truth, then refreshes the cached copy.
// If the refresh fails the key is dropped so no replica serves the previous batch.
func (s *CachedBatchStore) SaveLatest(ctx context.Context, batch *notify.Batch) error {
	if err := s.realStore.SaveLatest(ctx, batch); err != nil {
		return err
	}
	if err := s.cache.Set(ctx, latestKey, batch, s.ttl); err != nil {
		return s.cache.Del(ctx, latestKey)
	}
	return nil
}
