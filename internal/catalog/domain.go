// Package catalog exposes the read side of the product catalog to the
// settlement engine. Catalog editing lives upstream; this engine only reads
// products and requests stock deltas through the ledger.
package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/openretail/settlement/internal/pricing"
)

// Product is the catalog view the engine prices and settles against.
type Product struct {
	ID                string
	Name              string
	UnitPrice         decimal.Decimal
	Stock             int64
	LowStockThreshold int64
	Promotion         *pricing.Promotion
}

// LowOnStock reports whether the product sits at or below its alert
// threshold.
func (p Product) LowOnStock() bool {
	return p.Stock <= p.LowStockThreshold
}
