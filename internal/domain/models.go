package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

type OrderLineItem struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type Product struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Stock int    `json:"stock"`
}

// ProductStock is the product side of a line item joined with its product.
type ProductStock struct {
	ID    string
	Stock int
}

// OrderLineItemRow is a line item as fetched together with its product.
// Product is nil when the referenced product row does not exist.
type OrderLineItemRow struct {
	LineItemID string
	ProductID  string
	Quantity   int
	Product    *ProductStock
}

type RawMaterial struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Unit  string          `json:"unit"`
	Stock decimal.Decimal `json:"stock"`
}

// BOMEntry says how much of one raw material goes into one unit of a product.
type BOMEntry struct {
	ID              string          `json:"id"`
	ProductID       string          `json:"product_id"`
	RawMaterialID   string          `json:"raw_material_id"`
	QuantityPerUnit decimal.Decimal `json:"quantity_per_unit"`
}

type StockDecrementRequest struct {
	OrderID        string  `json:"order_id"`
	PreviousStatus *string `json:"previous_status,omitempty"`
}

type StockDecrementResult struct {
	Success          bool    `json:"success"`
	Error            string  `json:"error,omitempty"`
	ProductsUpdated  int     `json:"products_updated"`
	MaterialsUpdated int     `json:"materials_updated"`
	Failures         []error `json:"-"`
}

type OrderStatusUpdateRequest struct {
	Status string `json:"status"`
}

type OrderStatusUpdateResponse struct {
	Order   Order                 `json:"order"`
	Stock   *StockDecrementResult `json:"stock,omitempty"`
	Warning string                `json:"warning,omitempty"`
}

// OrderCompletedEvent is published by the order flow when an order enters Completed.
type OrderCompletedEvent struct {
	OrderID        string    `json:"order_id"`
	PreviousStatus *string   `json:"previous_status,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

const (
	OrderStatusPending        = "Pending"
	OrderStatusProcessing     = "Processing"
	OrderStatusOutForDelivery = "Out for Delivery"
	OrderStatusCompleted      = "Completed"
	OrderStatusCancelled      = "Cancelled"
)

var orderStatuses = map[string]struct{}{
	OrderStatusPending:        {},
	OrderStatusProcessing:     {},
	OrderStatusOutForDelivery: {},
	OrderStatusCompleted:      {},
	OrderStatusCancelled:      {},
}

func IsValidOrderStatus(status string) bool {
	_, ok := orderStatuses[status]
	return ok
}

// NormalizeID trims identifiers so that IDs stored with stray whitespace
// still match across line items and bill-of-materials rows.
func NormalizeID(id string) string {
	return strings.TrimSpace(id)
}
