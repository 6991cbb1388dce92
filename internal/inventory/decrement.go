package inventory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/shopspring/decimal"

	"chemdist/backend/internal/domain"
	"chemdist/backend/internal/store"
)

var (
	ErrLookup      = errors.New("lookup failure")
	ErrPersistence = errors.New("persistence failure")
)

// Failure is one unit of work that could not be applied. Error returns the
// human-readable message that ends up in the aggregated result.
type Failure struct {
	Kind error
	Msg  string
	Err  error
}

func (f *Failure) Error() string { return f.Msg }

func (f *Failure) Unwrap() error { return f.Err }

func (f *Failure) Is(target error) bool { return target == f.Kind }

type Option func(*Decrementer)

// WithAtomicUpdates makes every stock write a single clamped subtraction
// inside the store instead of a read followed by a write. Two orders
// completing at the same time can no longer overwrite each other's
// decrements. The runs are still not wrapped in a transaction.
func WithAtomicUpdates() Option {
	return func(d *Decrementer) {
		d.atomic = true
	}
}

// Decrementer deducts sold quantities from product stock and the
// bill-of-materials usage from raw-material stock when an order completes.
type Decrementer struct {
	store  store.StockStore
	atomic bool
}

func NewDecrementer(stockStore store.StockStore, opts ...Option) *Decrementer {
	d := &Decrementer{store: stockStore}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Decrementer) Atomic() bool {
	return d.atomic
}

// Apply runs the decrement for one order. previousStatus is the status the
// order had before it moved to Completed; when it was already Completed the
// call does nothing. Individual failures never stop the run; they are
// collected into the result and every other update is still attempted.
func (d *Decrementer) Apply(ctx context.Context, orderID string, previousStatus *string) domain.StockDecrementResult {
	if previousStatus != nil && strings.TrimSpace(*previousStatus) == domain.OrderStatusCompleted {
		log.Printf("[inventory] order %s already completed, stock untouched", orderID)
		return domain.StockDecrementResult{Success: true}
	}

	r := &run{orderID: domain.NormalizeID(orderID)}
	if r.orderID == "" {
		r.fail(ErrLookup, nil, "order id is required")
		return r.result()
	}

	rows, err := d.store.ListOrderLineItems(ctx, r.orderID)
	if err != nil {
		r.fail(ErrLookup, err, "failed to fetch line items for order %s: %v", r.orderID, err)
		return r.result()
	}
	if len(rows) == 0 {
		return r.result()
	}

	for _, row := range rows {
		d.decrementProduct(ctx, r, row)
	}

	bom, err := d.store.ListBOMEntries(ctx, distinctProductIDs(rows))
	if err != nil {
		r.fail(ErrLookup, err, "failed to fetch bill of materials: %v", err)
		return r.result()
	}
	if len(bom) == 0 {
		return r.result()
	}

	for _, req := range Requirements(rows, bom) {
		d.decrementRawMaterial(ctx, r, req)
	}

	res := r.result()
	log.Printf("[inventory] order %s: %d products, %d raw materials updated, %d failures",
		r.orderID, res.ProductsUpdated, res.MaterialsUpdated, len(res.Failures))
	return res
}

func (d *Decrementer) decrementProduct(ctx context.Context, r *run, row domain.OrderLineItemRow) {
	if row.Product == nil {
		r.fail(ErrLookup, store.ErrNotFound, "product %s missing for line item %s", row.ProductID, row.LineItemID)
		return
	}

	if d.atomic {
		if _, err := d.store.DecrementProductStock(ctx, row.Product.ID, row.Quantity); err != nil {
			r.fail(ErrPersistence, err, "failed to update stock for product %s: %v", row.Product.ID, err)
			return
		}
		r.productsUpdated++
		return
	}

	// Stock comes from the joined row, so two lines for one product both
	// start from the same value and the later write wins.
	newStock := max(0, row.Product.Stock-row.Quantity)
	if err := d.store.SetProductStock(ctx, row.Product.ID, newStock); err != nil {
		r.fail(ErrPersistence, err, "failed to update stock for product %s: %v", row.Product.ID, err)
		return
	}
	r.productsUpdated++
}

func (d *Decrementer) decrementRawMaterial(ctx context.Context, r *run, req Requirement) {
	if d.atomic {
		_, err := d.store.DecrementRawMaterialStock(ctx, req.RawMaterialID, req.Quantity)
		switch {
		case errors.Is(err, store.ErrNotFound):
			r.fail(ErrLookup, err, "raw material %s not found", req.RawMaterialID)
		case err != nil:
			r.fail(ErrPersistence, err, "failed to update raw material %s: %v", req.RawMaterialID, err)
		default:
			r.materialsUpdated++
		}
		return
	}

	material, err := d.store.GetRawMaterial(ctx, req.RawMaterialID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && material == nil) {
		r.fail(ErrLookup, store.ErrNotFound, "raw material %s not found", req.RawMaterialID)
		return
	}
	if err != nil {
		r.fail(ErrLookup, err, "failed to fetch raw material %s: %v", req.RawMaterialID, err)
		return
	}

	newStock := clampDecimal(material.Stock.Sub(req.Quantity))
	if err := d.store.SetRawMaterialStock(ctx, material.ID, newStock); err != nil {
		r.fail(ErrPersistence, err, "failed to update raw material %s: %v", material.ID, err)
		return
	}
	r.materialsUpdated++
}

type run struct {
	orderID          string
	failures         []error
	productsUpdated  int
	materialsUpdated int
}

func (r *run) fail(kind error, cause error, format string, args ...any) {
	f := &Failure{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: cause}
	log.Printf("[inventory] WARN: order %s: %s", r.orderID, f.Msg)
	r.failures = append(r.failures, f)
}

func (r *run) result() domain.StockDecrementResult {
	res := domain.StockDecrementResult{
		Success:          len(r.failures) == 0,
		ProductsUpdated:  r.productsUpdated,
		MaterialsUpdated: r.materialsUpdated,
		Failures:         r.failures,
	}
	if !res.Success {
		msgs := make([]string, 0, len(r.failures))
		for _, f := range r.failures {
			msgs = append(msgs, f.Error())
		}
		res.Error = strings.Join(msgs, "; ")
	}
	return res
}

func distinctProductIDs(rows []domain.OrderLineItemRow) []string {
	seen := make(map[string]struct{}, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		id := domain.NormalizeID(row.ProductID)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

func clampDecimal(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}
