// Package sale holds the finalized sale record and its receipt artifact.
// A Sale is written exactly once per checkout and never mutated; refunds are
// a separate flow that reference the sale, they do not edit it.
package sale

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod is how the sale was paid.
type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
)

// Line is a snapshot of one cart line with its resolved price. It copies
// the product name and unit price at settlement time so later catalog edits
// cannot rewrite history.
type Line struct {
	ProductID   string
	ProductName string
	Quantity    int64
	UnitPrice   decimal.Decimal
	Amount      decimal.Decimal
}

// Sale is the persisted outcome of a checkout.
type Sale struct {
	ID             string
	ReceiptNumber  string
	Lines          []Line
	Subtotal       decimal.Decimal
	Total          decimal.Decimal
	PaymentMethod  PaymentMethod
	AmountTendered decimal.Decimal
	ChangeGiven    decimal.Decimal
	LoyaltyCardID  string
	PointsEarned   int64
	EmployeeID     string
	CreatedAt      time.Time
}

// BusinessInfo is the letterhead data printed on receipts.
type BusinessInfo struct {
	Name       string
	Address    string
	Phone      string
	Email      string
	VATNumber  string
	BusinessID string
}

// Receipt is the artifact handed to the rendering layer.
type Receipt struct {
	Sale     Sale
	Business BusinessInfo
}

// NewReceiptNumber generates a human-quotable receipt reference: a country
// prefix, the last six digits of the wall clock in milliseconds, and three
// random digits.
func NewReceiptNumber(at time.Time) string {
	millis := fmt.Sprintf("%d", at.UnixMilli())
	if len(millis) > 6 {
		millis = millis[len(millis)-6:]
	}
	return fmt.Sprintf("BE%s%03d", millis, rand.Intn(1000))
}
