package inventory

import (
	"github.com/shopspring/decimal"

	"chemdist/backend/internal/domain"
)

// Requirement is the total amount of one raw material an order consumes.
type Requirement struct {
	RawMaterialID string
	Quantity      decimal.Decimal
}

// Requirements computes raw-material consumption for a set of line items.
// Each (line item, BOM entry) pair is rounded up on its own and the rounded
// values are summed per raw material, so two line items needing 0.5 each
// consume 2, not 1. Line items for the same product are not merged.
// The result keeps the order in which raw materials were first seen.
func Requirements(rows []domain.OrderLineItemRow, bom []domain.BOMEntry) []Requirement {
	byProduct := make(map[string][]domain.BOMEntry, len(bom))
	for _, entry := range bom {
		key := domain.NormalizeID(entry.ProductID)
		byProduct[key] = append(byProduct[key], entry)
	}

	index := make(map[string]int)
	out := make([]Requirement, 0, len(bom))
	for _, row := range rows {
		entries := byProduct[domain.NormalizeID(row.ProductID)]
		qty := decimal.NewFromInt(int64(row.Quantity))
		for _, entry := range entries {
			materialID := domain.NormalizeID(entry.RawMaterialID)
			if materialID == "" {
				continue
			}
			need := clampDecimal(qty.Mul(entry.QuantityPerUnit).Ceil())

			i, ok := index[materialID]
			if !ok {
				index[materialID] = len(out)
				out = append(out, Requirement{RawMaterialID: materialID, Quantity: need})
				continue
			}
			out[i].Quantity = out[i].Quantity.Add(need)
		}
	}
	return out
}
