package cache

import (
	"context"
	"log"
	"time"

	"chemdist/backend/internal/domain"
	"chemdist/backend/internal/store"
)

// CachedStockStore serves bill-of-materials lookups from a BOMCache and
// passes every other call to the wrapped store. Stock values are never cached.
type CachedStockStore struct {
	store.StockStore
	cache BOMCache
	ttl   time.Duration
}

func NewCachedStockStore(next store.StockStore, bomCache BOMCache, ttl time.Duration) *CachedStockStore {
	if bomCache == nil {
		bomCache = NoopBOMCache{}
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedStockStore{StockStore: next, cache: bomCache, ttl: ttl}
}

func (s *CachedStockStore) ListBOMEntries(ctx context.Context, productIDs []string) ([]domain.BOMEntry, error) {
	entries := make([]domain.BOMEntry, 0, len(productIDs))
	missing := make([]string, 0, len(productIDs))

	for _, id := range productIDs {
		id = domain.NormalizeID(id)
		cached, ok, err := s.cache.Get(ctx, id)
		if err != nil {
			log.Printf("[cache] WARN: bom lookup for product %s: %v", id, err)
		}
		if err != nil || !ok {
			missing = append(missing, id)
			continue
		}
		entries = append(entries, cached...)
	}
	if len(missing) == 0 {
		return entries, nil
	}

	fetched, err := s.StockStore.ListBOMEntries(ctx, missing)
	if err != nil {
		return nil, err
	}

	byProduct := make(map[string][]domain.BOMEntry, len(missing))
	for _, e := range fetched {
		key := domain.NormalizeID(e.ProductID)
		byProduct[key] = append(byProduct[key], e)
	}
	for _, id := range missing {
		if err := s.cache.Set(ctx, id, byProduct[id], s.ttl); err != nil {
			log.Printf("[cache] WARN: bom store for product %s: %v", id, err)
		}
	}

	return append(entries, fetched...), nil
}
