// Package cash computes change for cash payments: the amount returned to
// the customer and its breakdown into notes and coins.
//
// All arithmetic runs on integer cents. The euro series is canonical (each
// denomination evenly divides the next larger one), so the greedy descending
// walk is guaranteed to produce a minimal count whose sum is exactly the
// change amount.
package cash

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInsufficientTender is returned when the tendered amount does not cover
// the amount due. Callers must treat it as a validation failure: no sale may
// be created past it.
var ErrInsufficientTender = errors.New("cash: tendered amount below amount due")

// EuroDenominations is the full euro cash series in cents, descending.
var EuroDenominations = []int64{
	50000, 20000, 10000, 5000, 2000, 1000, 500, 200, 100, 50, 20, 10, 5, 2, 1,
}

// DenominationCount is one row of a change breakdown.
type DenominationCount struct {
	Denomination decimal.Decimal
	Count        int64
}

// Change is the result of settling a cash payment.
type Change struct {
	Amount decimal.Decimal
	Counts []DenominationCount
}

// Breakdown returns the change for a payment of tendered against due, split
// over denominations (cents, strictly descending). Denominations that do not
// appear in the change are omitted from Counts.
func Breakdown(due, tendered decimal.Decimal, denominations []int64) (Change, error) {
	dueCents, err := toCents(due)
	if err != nil {
		return Change{}, err
	}
	tenderedCents, err := toCents(tendered)
	if err != nil {
		return Change{}, err
	}
	if tenderedCents < dueCents {
		return Change{}, fmt.Errorf("%w: due %s, tendered %s", ErrInsufficientTender, due, tendered)
	}

	remaining := tenderedCents - dueCents
	change := Change{Amount: fromCents(remaining)}

	for _, denom := range denominations {
		if denom <= 0 || remaining < denom {
			continue
		}
		count := remaining / denom
		remaining -= count * denom
		change.Counts = append(change.Counts, DenominationCount{
			Denomination: fromCents(denom),
			Count:        count,
		})
	}
	if remaining != 0 {
		// Only reachable with a non-canonical denomination set missing a
		// 1-cent unit.
		return Change{}, fmt.Errorf("cash: %d cents not representable with given denominations", remaining)
	}
	return change, nil
}

// Sum re-adds the breakdown. Kept exported so receipts can assert the
// invariant Sum == Amount.
func (c Change) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, dc := range c.Counts {
		total = total.Add(dc.Denomination.Mul(decimal.NewFromInt(dc.Count)))
	}
	return total
}

func toCents(amount decimal.Decimal) (int64, error) {
	cents := amount.Shift(2)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, fmt.Errorf("cash: amount %s has sub-cent precision", amount)
	}
	return cents.IntPart(), nil
}

func fromCents(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Shift(-2)
}
