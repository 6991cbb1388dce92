package cache

import (
	"context"
	"time"

	"chemdist/backend/internal/domain"
)

// BOMCache stores the bill-of-materials entries of one product.
type BOMCache interface {
	Get(ctx context.Context, productID string) ([]domain.BOMEntry, bool, error)
	Set(ctx context.Context, productID string, entries []domain.BOMEntry, ttl time.Duration) error
}

type NoopBOMCache struct{}

func (NoopBOMCache) Get(_ context.Context, _ string) ([]domain.BOMEntry, bool, error) {
	return nil, false, nil
}

func (NoopBOMCache) Set(_ context.Context, _ string, _ []domain.BOMEntry, _ time.Duration) error {
	return nil
}
