package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"chemdist/backend/internal/domain"
	"chemdist/backend/internal/store"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the tables this service reads and writes if they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var order domain.Order
	err := s.db.QueryRowContext(ctx, `
		SELECT id, status, updated_at
		FROM orders
		WHERE id = $1
	`, id).Scan(&order.ID, &order.Status, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	order.UpdatedAt = order.UpdatedAt.UTC()
	return &order, nil
}

// UpdateOrderStatus locks the order row before reading its current status,
// so two concurrent completions see each other and only one gets a
// non-Completed previous status.
func (s *Store) UpdateOrderStatus(ctx context.Context, id string, status string, at time.Time) (*domain.Order, string, error) {
	if !domain.IsValidOrderStatus(status) {
		return nil, "", store.ErrInvalidInput
	}

	var (
		order    domain.Order
		previous string
	)
	err := s.db.QueryRowContext(ctx, `
		UPDATE orders o
		SET status = $2, updated_at = $3
		FROM (SELECT id, status FROM orders WHERE id = $1 FOR UPDATE) prev
		WHERE o.id = prev.id
		RETURNING prev.status, o.id, o.status, o.updated_at
	`, id, status, at.UTC()).Scan(&previous, &order.ID, &order.Status, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", store.ErrNotFound
		}
		return nil, "", err
	}
	order.UpdatedAt = order.UpdatedAt.UTC()
	return &order, previous, nil
}

// ListOrderLineItems returns the order's line items joined with their
// product. A line item whose product row is gone comes back with a nil Product.
func (s *Store) ListOrderLineItems(ctx context.Context, orderID string) ([]domain.OrderLineItemRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT oi.id, oi.product_id, oi.quantity, p.id, p.stock
		FROM order_items oi
		LEFT JOIN products p ON p.id = btrim(oi.product_id)
		WHERE oi.order_id = $1
		ORDER BY oi.id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.OrderLineItemRow, 0, 16)
	for rows.Next() {
		var (
			row          domain.OrderLineItemRow
			productID    sql.NullString
			productStock sql.NullInt64
		)
		if err := rows.Scan(&row.LineItemID, &row.ProductID, &row.Quantity, &productID, &productStock); err != nil {
			return nil, err
		}
		if productID.Valid && productStock.Valid {
			row.Product = &domain.ProductStock{ID: productID.String, Stock: int(productStock.Int64)}
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) SetProductStock(ctx context.Context, productID string, stock int) error {
	if stock < 0 {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET stock = $2, updated_at = now()
		WHERE id = $1
	`, productID, stock)
	if err != nil {
		return mapWriteError(err)
	}
	return requireAffected(res)
}

func (s *Store) DecrementProductStock(ctx context.Context, productID string, qty int) (int, error) {
	var stock int
	err := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock = GREATEST(stock - $2, 0), updated_at = now()
		WHERE id = $1
		RETURNING stock
	`, productID, qty).Scan(&stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		return 0, mapWriteError(err)
	}
	return stock, nil
}

func (s *Store) ListBOMEntries(ctx context.Context, productIDs []string) ([]domain.BOMEntry, error) {
	if len(productIDs) == 0 {
		return []domain.BOMEntry{}, nil
	}
	trimmed := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		trimmed = append(trimmed, domain.NormalizeID(id))
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, raw_material_id, quantity_per_unit
		FROM product_raw_materials
		WHERE btrim(product_id) = ANY($1)
		ORDER BY id
	`, trimmed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.BOMEntry, 0, len(productIDs)*2)
	for rows.Next() {
		var e domain.BOMEntry
		if err := rows.Scan(&e.ID, &e.ProductID, &e.RawMaterialID, &e.QuantityPerUnit); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) GetRawMaterial(ctx context.Context, id string) (*domain.RawMaterial, error) {
	var m domain.RawMaterial
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, unit, stock
		FROM raw_materials
		WHERE id = $1
	`, id).Scan(&m.ID, &m.Name, &m.Unit, &m.Stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *Store) SetRawMaterialStock(ctx context.Context, id string, stock decimal.Decimal) error {
	if stock.IsNegative() {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE raw_materials
		SET stock = $2, updated_at = now()
		WHERE id = $1
	`, id, stock)
	if err != nil {
		return mapWriteError(err)
	}
	return requireAffected(res)
}

func (s *Store) DecrementRawMaterialStock(ctx context.Context, id string, qty decimal.Decimal) (decimal.Decimal, error) {
	var stock decimal.Decimal
	err := s.db.QueryRowContext(ctx, `
		UPDATE raw_materials
		SET stock = GREATEST(stock - $2::numeric, 0), updated_at = now()
		WHERE id = $1
		RETURNING stock
	`, id, qty).Scan(&stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, store.ErrNotFound
		}
		return decimal.Zero, mapWriteError(err)
	}
	return stock, nil
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// mapWriteError turns check-constraint violations into ErrInvalidInput and
// keeps the constraint name in the message.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23514" {
		return fmt.Errorf("%w: %s", store.ErrInvalidInput, strings.TrimSpace(pgErr.ConstraintName))
	}
	return err
}
