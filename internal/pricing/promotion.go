// Package pricing computes the amount charged for a single cart line:
// unit price, quantity, and an optional time-windowed promotion.
//
// Promotions are a closed set of kinds. Construct them through
// NewPercentage, NewFixed, or NewBuyXGetY so that a shape with missing or
// out-of-range fields cannot enter the system; legacy records that fail
// validation are surfaced as errors at load time, not silently repriced.
package pricing

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kind discriminates the promotion variants.
type Kind string

const (
	KindPercentage Kind = "percentage"
	KindFixed      Kind = "fixed"
	KindBuyXGetY   Kind = "buy_x_get_y"
)

// ErrInvalidPromotion is wrapped by every constructor rejection.
var ErrInvalidPromotion = errors.New("pricing: invalid promotion")

// Promotion is a tagged union: only the fields belonging to its Kind carry
// meaning. Value is percentage points for KindPercentage and a per-unit
// currency discount for KindFixed; BuyQuantity/GetFreeQuantity belong to
// KindBuyXGetY only. The validity window is inclusive at both ends.
type Promotion struct {
	Kind            Kind
	Value           decimal.Decimal
	BuyQuantity     int64
	GetFreeQuantity int64
	StartTime       time.Time
	EndTime         time.Time
	Description     string
}

// NewPercentage builds a percentage promotion. Value must be within
// [0, 100]; out-of-range values are a construction error, never clamped.
func NewPercentage(value decimal.Decimal, start, end time.Time, description string) (Promotion, error) {
	if value.IsNegative() || value.GreaterThan(decimal.NewFromInt(100)) {
		return Promotion{}, fmt.Errorf("%w: percentage value %s outside [0,100]", ErrInvalidPromotion, value)
	}
	if err := validateWindow(start, end); err != nil {
		return Promotion{}, err
	}
	return Promotion{
		Kind:        KindPercentage,
		Value:       value,
		StartTime:   start,
		EndTime:     end,
		Description: description,
	}, nil
}

// NewFixed builds a fixed per-unit discount promotion. Value must be
// non-negative; it may exceed the unit price, in which case the line is
// floored at zero when priced.
func NewFixed(value decimal.Decimal, start, end time.Time, description string) (Promotion, error) {
	if value.IsNegative() {
		return Promotion{}, fmt.Errorf("%w: fixed discount %s is negative", ErrInvalidPromotion, value)
	}
	if err := validateWindow(start, end); err != nil {
		return Promotion{}, err
	}
	return Promotion{
		Kind:        KindFixed,
		Value:       value,
		StartTime:   start,
		EndTime:     end,
		Description: description,
	}, nil
}

// NewBuyXGetY builds a "buy X, get Y free" promotion. Both quantities must
// be positive so the group size can never be zero.
func NewBuyXGetY(buyQuantity, getFreeQuantity int64, start, end time.Time, description string) (Promotion, error) {
	if buyQuantity <= 0 || getFreeQuantity <= 0 {
		return Promotion{}, fmt.Errorf("%w: buy %d / get %d must both be positive", ErrInvalidPromotion, buyQuantity, getFreeQuantity)
	}
	if err := validateWindow(start, end); err != nil {
		return Promotion{}, err
	}
	return Promotion{
		Kind:            KindBuyXGetY,
		BuyQuantity:     buyQuantity,
		GetFreeQuantity: getFreeQuantity,
		StartTime:       start,
		EndTime:         end,
		Description:     description,
	}, nil
}

// ActiveAt reports whether the promotion window covers asOf.
// Both bounds are inclusive.
func (p Promotion) ActiveAt(asOf time.Time) bool {
	return !asOf.Before(p.StartTime) && !asOf.After(p.EndTime)
}

func validateWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: missing validity window", ErrInvalidPromotion)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: window ends before it starts", ErrInvalidPromotion)
	}
	return nil
}
