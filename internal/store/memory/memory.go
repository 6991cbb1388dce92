package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"chemdist/backend/internal/domain"
	"chemdist/backend/internal/store"
)

type Store struct {
	mu           sync.RWMutex
	orders       map[string]domain.Order
	lineItems    map[string][]domain.OrderLineItem
	products     map[string]domain.Product
	rawMaterials map[string]domain.RawMaterial
	bomEntries   []domain.BOMEntry
}

func New() *Store {
	return &Store{
		orders:       make(map[string]domain.Order),
		lineItems:    make(map[string][]domain.OrderLineItem),
		products:     make(map[string]domain.Product),
		rawMaterials: make(map[string]domain.RawMaterial),
	}
}

// NewSeeded returns a store holding a small demo catalogue: three finished
// chemical products, their raw materials and one pending order.
func NewSeeded() *Store {
	s := New()

	for _, p := range []domain.Product{
		{ID: "PRD-BLEACH-5L", Name: "Sodium Hypochlorite 5L", Stock: 80},
		{ID: "PRD-DEGREASER-1L", Name: "Industrial Degreaser 1L", Stock: 150},
		{ID: "PRD-DISTILLED-20L", Name: "Distilled Water 20L", Stock: 40},
	} {
		s.PutProduct(p)
	}

	for _, m := range []domain.RawMaterial{
		{ID: "RM-NAOCL-12", Name: "Sodium Hypochlorite 12%", Unit: "L", Stock: decimal.NewFromInt(900)},
		{ID: "RM-JERRYCAN-5L", Name: "HDPE Jerrycan 5L", Unit: "pcs", Stock: decimal.NewFromInt(300)},
		{ID: "RM-SURFACTANT", Name: "Nonionic Surfactant", Unit: "kg", Stock: decimal.NewFromInt(120)},
		{ID: "RM-BOTTLE-1L", Name: "PET Bottle 1L", Unit: "pcs", Stock: decimal.NewFromInt(500)},
		{ID: "RM-CARBOY-20L", Name: "Carboy 20L", Unit: "pcs", Stock: decimal.NewFromInt(60)},
	} {
		s.PutRawMaterial(m)
	}

	for _, e := range []domain.BOMEntry{
		{ID: "BOM-1", ProductID: "PRD-BLEACH-5L", RawMaterialID: "RM-NAOCL-12", QuantityPerUnit: decimal.RequireFromString("2.25")},
		{ID: "BOM-2", ProductID: "PRD-BLEACH-5L", RawMaterialID: "RM-JERRYCAN-5L", QuantityPerUnit: decimal.NewFromInt(1)},
		{ID: "BOM-3", ProductID: "PRD-DEGREASER-1L", RawMaterialID: "RM-SURFACTANT", QuantityPerUnit: decimal.RequireFromString("0.15")},
		{ID: "BOM-4", ProductID: "PRD-DEGREASER-1L", RawMaterialID: "RM-BOTTLE-1L", QuantityPerUnit: decimal.NewFromInt(1)},
	} {
		s.PutBOMEntry(e)
	}

	s.PutOrder(domain.Order{ID: "ORD-1001", Status: domain.OrderStatusProcessing}, []domain.OrderLineItem{
		{ID: "OI-1", ProductID: "PRD-BLEACH-5L", Quantity: 4},
		{ID: "OI-2", ProductID: "PRD-DEGREASER-1L", Quantity: 10},
		{ID: "OI-3", ProductID: "PRD-DISTILLED-20L", Quantity: 2},
	})

	return s
}

func (s *Store) PutProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *Store) PutRawMaterial(m domain.RawMaterial) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rawMaterials[m.ID] = m
}

func (s *Store) PutBOMEntry(e domain.BOMEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bomEntries = append(s.bomEntries, e)
}

// PutOrder stores an order and replaces its line items.
func (s *Store) PutOrder(order domain.Order, items []domain.OrderLineItem) {
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[order.ID] = order
	copied := make([]domain.OrderLineItem, 0, len(items))
	for _, item := range items {
		item.OrderID = order.ID
		copied = append(copied, item)
	}
	s.lineItems[order.ID] = copied
}

func (s *Store) ProductStock(id string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	return p.Stock, ok
}

func (s *Store) RawMaterialStock(id string) (decimal.Decimal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.rawMaterials[id]
	return m.Stock, ok
}

func (s *Store) Ping(_ context.Context) error {
	return nil
}

func (s *Store) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &order, nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, id string, status string, at time.Time) (*domain.Order, string, error) {
	if !domain.IsValidOrderStatus(status) {
		return nil, "", store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, "", store.ErrNotFound
	}
	previous := order.Status
	order.Status = status
	order.UpdatedAt = at.UTC()
	s.orders[id] = order

	updated := order
	return &updated, previous, nil
}

func (s *Store) ListOrderLineItems(_ context.Context, orderID string) ([]domain.OrderLineItemRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := s.lineItems[orderID]
	rows := make([]domain.OrderLineItemRow, 0, len(items))
	for _, item := range items {
		row := domain.OrderLineItemRow{
			LineItemID: item.ID,
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
		}
		if p, ok := s.products[domain.NormalizeID(item.ProductID)]; ok {
			row.Product = &domain.ProductStock{ID: p.ID, Stock: p.Stock}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *Store) SetProductStock(_ context.Context, productID string, stock int) error {
	if stock < 0 {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return store.ErrNotFound
	}
	p.Stock = stock
	s.products[productID] = p
	return nil
}

func (s *Store) DecrementProductStock(_ context.Context, productID string, qty int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return 0, store.ErrNotFound
	}
	p.Stock = max(0, p.Stock-qty)
	s.products[productID] = p
	return p.Stock, nil
}

func (s *Store) ListBOMEntries(_ context.Context, productIDs []string) ([]domain.BOMEntry, error) {
	wanted := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		wanted[domain.NormalizeID(id)] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.BOMEntry, 0, len(s.bomEntries))
	for _, e := range s.bomEntries {
		if _, ok := wanted[domain.NormalizeID(e.ProductID)]; ok {
			entries = append(entries, e)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}

func (s *Store) GetRawMaterial(_ context.Context, id string) (*domain.RawMaterial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.rawMaterials[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &m, nil
}

func (s *Store) SetRawMaterialStock(_ context.Context, id string, stock decimal.Decimal) error {
	if stock.IsNegative() {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.rawMaterials[id]
	if !ok {
		return store.ErrNotFound
	}
	m.Stock = stock
	s.rawMaterials[id] = m
	return nil
}

func (s *Store) DecrementRawMaterialStock(_ context.Context, id string, qty decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.rawMaterials[id]
	if !ok {
		return decimal.Zero, store.ErrNotFound
	}
	m.Stock = m.Stock.Sub(qty)
	if m.Stock.IsNegative() {
		m.Stock = decimal.Zero
	}
	s.rawMaterials[id] = m
	return m.Stock, nil
}
