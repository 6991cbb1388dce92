package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chemdist/backend/internal/domain"
	"chemdist/backend/internal/store"
	"chemdist/backend/internal/store/memory"
)

type mapCache struct {
	mu      sync.Mutex
	entries map[string][]domain.BOMEntry
	getErr  error
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string][]domain.BOMEntry)}
}

func (c *mapCache) Get(_ context.Context, productID string) ([]domain.BOMEntry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	entries, ok := c.entries[productID]
	return entries, ok, nil
}

func (c *mapCache) Set(_ context.Context, productID string, entries []domain.BOMEntry, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[productID] = entries
	return nil
}

type countingStore struct {
	store.StockStore
	bomCalls int
}

func (s *countingStore) ListBOMEntries(ctx context.Context, productIDs []string) ([]domain.BOMEntry, error) {
	s.bomCalls++
	return s.StockStore.ListBOMEntries(ctx, productIDs)
}

func seededStore() *memory.Store {
	mem := memory.New()
	mem.PutBOMEntry(domain.BOMEntry{ID: "b1", ProductID: "P1", RawMaterialID: "rawA", QuantityPerUnit: decimal.NewFromInt(2)})
	mem.PutBOMEntry(domain.BOMEntry{ID: "b2", ProductID: "P2", RawMaterialID: "rawB", QuantityPerUnit: decimal.NewFromInt(1)})
	return mem
}

func TestCachedStockStoreServesRepeatLookupsFromCache(t *testing.T) {
	backing := &countingStore{StockStore: seededStore()}
	bomCache := newMapCache()
	cached := NewCachedStockStore(backing, bomCache, time.Minute)
	ctx := context.Background()

	first, err := cached.ListBOMEntries(ctx, []string{"P1", "P3"})
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := cached.ListBOMEntries(ctx, []string{"P1", " P3 "})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, backing.bomCalls)

	entries, ok, _ := bomCache.Get(ctx, "P3")
	assert.True(t, ok, "products without a bill of materials are cached as empty")
	assert.Empty(t, entries)
}

func TestCachedStockStoreFallsThroughOnCacheError(t *testing.T) {
	backing := &countingStore{StockStore: seededStore()}
	bomCache := newMapCache()
	bomCache.getErr = errors.New("redis down")
	cached := NewCachedStockStore(backing, bomCache, 0)

	entries, err := cached.ListBOMEntries(context.Background(), []string{"P1", "P2"})

	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, 1, backing.bomCalls)
}

func TestNoopBOMCacheAlwaysMisses(t *testing.T) {
	backing := &countingStore{StockStore: seededStore()}
	cached := NewCachedStockStore(backing, nil, 0)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := cached.ListBOMEntries(ctx, []string{"P2"})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, backing.bomCalls)
}
