package postgres

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chemdist/backend/internal/domain"
	"chemdist/backend/internal/inventory"
	"chemdist/backend/internal/store"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()

	databaseURL := os.Getenv("STOCK_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set STOCK_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	require.NoError(t, err, "new store")
	t.Cleanup(func() {
		_ = s.Close()
	})
	require.NoError(t, s.Migrate(ctx), "migrate")
	return s
}

type seedStatement struct {
	query string
	args  []any
}

func seed(t *testing.T, s *Store, stmts []seedStatement) {
	t.Helper()
	for _, stmt := range stmts {
		_, err := s.db.ExecContext(context.Background(), stmt.query, stmt.args...)
		require.NoError(t, err, "seed %q", stmt.query)
	}
}

func TestCompletedOrderDecrementsStockAndRawMaterials(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("PRD-IT-%d", stamp)
	missingProductID := fmt.Sprintf("PRD-IT-GONE-%d", stamp)
	materialID := fmt.Sprintf("RM-IT-%d", stamp)
	orderID := fmt.Sprintf("ORD-IT-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM product_raw_materials WHERE raw_material_id = $1`, materialID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM raw_materials WHERE id = $1`, materialID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	})

	seed(t, s, []seedStatement{
		{`INSERT INTO products (id, name, stock) VALUES ($1, 'Bleach IT', 3)`, []any{productID}},
		{`INSERT INTO raw_materials (id, name, unit, stock) VALUES ($1, 'Hypochlorite IT', 'L', 20)`, []any{materialID}},
		{`INSERT INTO product_raw_materials (id, product_id, raw_material_id, quantity_per_unit) VALUES ($1, $2, $3, 2.5)`, []any{materialID + "-bom", " " + productID + " ", materialID}},
		{`INSERT INTO orders (id, status) VALUES ($1, 'Processing')`, []any{orderID}},
		{`INSERT INTO order_items (id, order_id, product_id, quantity) VALUES ($1, $2, $3, 5)`, []any{orderID + "-1", orderID, productID}},
		{`INSERT INTO order_items (id, order_id, product_id, quantity) VALUES ($1, $2, $3, 1)`, []any{orderID + "-2", orderID, missingProductID}},
	})

	prev := domain.OrderStatusProcessing
	res := inventory.NewDecrementer(s).Apply(ctx, orderID, &prev)
	assert.False(t, res.Success, "dangling product line must fail")
	assert.Equal(t, fmt.Sprintf("product %s missing for line item %s-2", missingProductID, orderID), res.Error)

	var stock int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock))
	assert.Zero(t, stock, "product stock clamps to 0")

	material, err := s.GetRawMaterial(ctx, materialID)
	require.NoError(t, err)
	// 20 - ceil(5 * 2.5)
	assert.True(t, material.Stock.Equal(decimal.NewFromInt(7)), "raw material stock: got %s", material.Stock)
}

func TestAtomicDecrementClampsAtZero(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("PRD-IT-ATOMIC-%d", stamp)
	materialID := fmt.Sprintf("RM-IT-ATOMIC-%d", stamp)
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM raw_materials WHERE id = $1`, materialID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	})

	seed(t, s, []seedStatement{
		{`INSERT INTO products (id, stock) VALUES ($1, 4)`, []any{productID}},
		{`INSERT INTO raw_materials (id, stock) VALUES ($1, 1.5)`, []any{materialID}},
	})

	stock, err := s.DecrementProductStock(ctx, productID, 9)
	require.NoError(t, err)
	assert.Zero(t, stock)

	left, err := s.DecrementRawMaterialStock(ctx, materialID, decimal.RequireFromString("0.25"))
	require.NoError(t, err)
	assert.True(t, left.Equal(decimal.RequireFromString("1.25")), "got %s", left)

	_, err = s.DecrementRawMaterialStock(ctx, materialID+"-nope", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestConcurrentStatusUpdatesSeeOnePreviousStatus(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	orderID := fmt.Sprintf("ORD-IT-RACE-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
	})
	seed(t, s, []seedStatement{
		{`INSERT INTO orders (id, status) VALUES ($1, 'Out for Delivery')`, []any{orderID}},
	})

	const callers = 6
	var (
		wg       sync.WaitGroup
		start    = make(chan struct{})
		previous = make([]string, callers)
		errs     = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, previous[i], errs[i] = s.UpdateOrderStatus(ctx, orderID, domain.OrderStatusCompleted, time.Now())
		}(i)
	}
	close(start)
	wg.Wait()

	notCompleted := 0
	for i := range previous {
		require.NoError(t, errs[i])
		if previous[i] != domain.OrderStatusCompleted {
			assert.Equal(t, domain.OrderStatusOutForDelivery, previous[i])
			notCompleted++
		}
	}
	assert.Equal(t, 1, notCompleted)

	_, _, err := s.UpdateOrderStatus(ctx, orderID+"-nope", domain.OrderStatusCompleted, time.Now())
	assert.ErrorIs(t, err, store.ErrNotFound)
}
