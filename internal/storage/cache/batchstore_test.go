// --- File: internal/storage/cache/batchstore_test.go ---
package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-indexing-service/internal/storage/cache"
	"github.com/tinywideclouds/go-indexing-service/pkg/dispatch"
	"github.com/tinywideclouds/go-indexing-service/pkg/notify"
)

// --- Mocks ---
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string, dest interface{}) error {
	args := m.Called(ctx, key, dest)
	return args.Error(0)
}
func (m *MockCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}
func (m *MockCache) Del(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type MockRealStore struct {
	mock.Mock
}

func (m *MockRealStore) SaveLatest(ctx context.Context, batch *notify.Batch) error {
	return m.Called(ctx, batch).Error(0)
}
func (m *MockRealStore) Latest(ctx context.Context) (*notify.Batch, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notify.Batch), args.Error(1)
}

const cacheKey = "notify:batches:latest"

func TestCachedBatchStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Save refreshes cache", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedBatchStore(mockDB, mockCache, time.Hour)
		batch := &notify.Batch{ID: "job-1"}

		mockDB.On("SaveLatest", ctx, batch).Return(nil)
		mockCache.On("Set", ctx, cacheKey, batch, time.Hour).Return(nil)

		require.NoError(t, store.SaveLatest(ctx, batch))
		mockDB.AssertExpectations(t)
		mockCache.AssertExpectations(t)
		mockCache.AssertNotCalled(t, "Del", mock.Anything, mock.Anything)
	})

	t.Run("Failed refresh drops the stale copy", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedBatchStore(mockDB, mockCache, time.Hour)
		batch := &notify.Batch{ID: "job-1"}

		mockDB.On("SaveLatest", ctx, batch).Return(nil)
		mockCache.On("Set", ctx, cacheKey, batch, time.Hour).Return(errors.New("timeout"))
		mockCache.On("Del", ctx, cacheKey).Return(nil)

		require.NoError(t, store.SaveLatest(ctx, batch))
		mockCache.AssertExpectations(t)
	})

	t.Run("Failed save leaves cache alone", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedBatchStore(mockDB, mockCache, time.Hour)
		batch := &notify.Batch{ID: "job-1"}

		mockDB.On("SaveLatest", ctx, batch).Return(errors.New("unavailable"))

		assert.Error(t, store.SaveLatest(ctx, batch))
		mockCache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		mockCache.AssertNotCalled(t, "Del", mock.Anything, mock.Anything)
	})

	t.Run("Miss reads through and refills", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedBatchStore(mockDB, mockCache, time.Hour)
		fresh := &notify.Batch{ID: "job-2"}

		mockCache.On("Get", ctx, cacheKey, mock.Anything).Return(cache.ErrMiss)
		mockDB.On("Latest", ctx).Return(fresh, nil)
		mockCache.On("Set", ctx, cacheKey, fresh, time.Hour).Return(nil)

		got, err := store.Latest(ctx)

		require.NoError(t, err)
		assert.Equal(t, "job-2", got.ID)
		mockCache.AssertExpectations(t)
	})

	t.Run("Hit skips the store", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedBatchStore(mockDB, mockCache, time.Hour)

		mockCache.On("Get", ctx, cacheKey, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
			args.Get(2).(*notify.Batch).ID = "cached-job"
		})

		got, err := store.Latest(ctx)

		require.NoError(t, err)
		assert.Equal(t, "cached-job", got.ID)
		mockDB.AssertNotCalled(t, "Latest", mock.Anything)
	})

	t.Run("Empty store is not cached", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedBatchStore(mockDB, mockCache, time.Hour)

		mockCache.On("Get", ctx, cacheKey, mock.Anything).Return(cache.ErrMiss)
		mockDB.On("Latest", ctx).Return(nil, dispatch.ErrNoBatch)

		_, err := store.Latest(ctx)

		assert.ErrorIs(t, err, dispatch.ErrNoBatch)
		mockCache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
