package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"chemdist/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// StockStore is everything the stock decrement engine reads and writes.
type StockStore interface {
	ListOrderLineItems(ctx context.Context, orderID string) ([]domain.OrderLineItemRow, error)
	SetProductStock(ctx context.Context, productID string, stock int) error
	// DecrementProductStock subtracts qty clamped at zero in one step and returns the new stock.
	DecrementProductStock(ctx context.Context, productID string, qty int) (int, error)
	ListBOMEntries(ctx context.Context, productIDs []string) ([]domain.BOMEntry, error)
	GetRawMaterial(ctx context.Context, id string) (*domain.RawMaterial, error)
	SetRawMaterialStock(ctx context.Context, id string, stock decimal.Decimal) error
	DecrementRawMaterialStock(ctx context.Context, id string, qty decimal.Decimal) (decimal.Decimal, error)
}

type OrderStore interface {
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	// UpdateOrderStatus writes status and returns the updated order together
	// with the status it replaced, read under the same lock as the write.
	UpdateOrderStatus(ctx context.Context, id string, status string, at time.Time) (order *domain.Order, previous string, err error)
}

type Repository interface {
	StockStore
	OrderStore
	Ping(ctx context.Context) error
}
