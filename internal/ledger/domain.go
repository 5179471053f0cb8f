// Package ledger records every inventory quantity change as an append-only
// movement and derives the resulting stock. Corrections are new movements,
// never edits.
package ledger

import "time"

// Kind classifies why stock moved.
type Kind string

const (
	// KindSaleDecrement is written once per settled cart line.
	KindSaleDecrement Kind = "sale-decrement"
	// KindManualAdjustment covers operator corrections from the stock screen.
	KindManualAdjustment Kind = "manual-adjustment"
	// KindLoss records breakage, theft, or expiry write-offs.
	KindLoss Kind = "loss"
	// KindInventoryCount reconciles counted stock against the book quantity.
	KindInventoryCount Kind = "inventory-count"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindSaleDecrement, KindManualAdjustment, KindLoss, KindInventoryCount:
		return true
	}
	return false
}

// Movement is one ledger row. ResultingStock is always PriorStock + Delta;
// a negative result from an out-of-band kind is recorded as-is, a visible
// signal of a data problem rather than an error.
type Movement struct {
	ID             string
	ProductID      string
	Delta          int64
	Kind           Kind
	Reason         string
	EmployeeID     string
	Reference      string
	PriorStock     int64
	ResultingStock int64
	OccurredAt     time.Time
}
