// Package loyalty maps a customer card to the discount it earns at the till
// and the points it accrues afterwards.
package loyalty

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Tier is one step of the loyalty ladder. DiscountPercentage is in
// percentage points. PointsMultiplier is stored for reporting but is not
// applied when points are earned; tier changes are a back-office action.
type Tier struct {
	Name               string
	MinimumPoints      int64
	DiscountPercentage decimal.Decimal
	PointsMultiplier   decimal.Decimal
}

// Table is an ordered set of tiers forming a step function from points to
// tier. It is immutable after construction.
type Table struct {
	tiers []Tier
}

// NewTable copies tiers and orders them by MinimumPoints ascending.
func NewTable(tiers []Tier) Table {
	cp := make([]Tier, len(tiers))
	copy(cp, tiers)
	for i := 1; i < len(cp); i++ {
		for j := i; j > 0 && cp[j].MinimumPoints < cp[j-1].MinimumPoints; j-- {
			cp[j], cp[j-1] = cp[j-1], cp[j]
		}
	}
	return Table{tiers: cp}
}

// DefaultTable returns the standard bronze/silver/gold/platinum ladder.
func DefaultTable() Table {
	return NewTable([]Tier{
		{Name: "bronze", MinimumPoints: 0, DiscountPercentage: decimal.Zero, PointsMultiplier: decimal.NewFromInt(1)},
		{Name: "silver", MinimumPoints: 100, DiscountPercentage: decimal.NewFromInt(5), PointsMultiplier: decimal.RequireFromString("1.2")},
		{Name: "gold", MinimumPoints: 500, DiscountPercentage: decimal.NewFromInt(10), PointsMultiplier: decimal.RequireFromString("1.5")},
		{Name: "platinum", MinimumPoints: 1000, DiscountPercentage: decimal.NewFromInt(15), PointsMultiplier: decimal.NewFromInt(2)},
	})
}

// Tiers returns a copy of the ordered tier list.
func (t Table) Tiers() []Tier {
	cp := make([]Tier, len(t.tiers))
	copy(cp, t.tiers)
	return cp
}

// Lowest returns the entry tier. The zero Tier is returned for an empty table.
func (t Table) Lowest() Tier {
	if len(t.tiers) == 0 {
		return Tier{}
	}
	return t.tiers[0]
}

// ByName looks a tier up by its name.
func (t Table) ByName(name string) (Tier, bool) {
	for _, tier := range t.tiers {
		if tier.Name == name {
			return tier, true
		}
	}
	return Tier{}, false
}

// TierForPoints returns the highest tier whose threshold is covered by
// points. Used for manual re-grading; the settle path never calls it.
func (t Table) TierForPoints(points int64) Tier {
	best := t.Lowest()
	for _, tier := range t.tiers {
		if points >= tier.MinimumPoints {
			best = tier
		}
	}
	return best
}

// DiscountRate returns the fraction of the subtotal the card takes off,
// in [0, 1). No card or an unknown tier name yields zero; a stale tier
// name on a card must never fail a checkout.
func (t Table) DiscountRate(card *Card) decimal.Decimal {
	if card == nil {
		return decimal.Zero
	}
	tier, ok := t.ByName(card.Tier)
	if !ok {
		return decimal.Zero
	}
	return tier.DiscountPercentage.Div(decimal.NewFromInt(100))
}

// Card is a customer loyalty card. Points only ever grow, via Accrue after
// a settled sale.
type Card struct {
	ID           string
	Number       string
	CustomerName string
	Tier         string
	Points       int64
	CreatedAt    time.Time
	LastUsed     *time.Time
}

// NewCard issues a card on the entry tier with zero points.
func NewCard(table Table, number, customerName string) Card {
	return Card{
		ID:           uuid.NewString(),
		Number:       number,
		CustomerName: customerName,
		Tier:         table.Lowest().Name,
		Points:       0,
		CreatedAt:    time.Now().UTC(),
	}
}

// Accrue adds earned points and stamps the card as used. The card's tier is
// left untouched.
func (c *Card) Accrue(points int64, at time.Time) {
	if points <= 0 {
		return
	}
	c.Points += points
	used := at
	c.LastUsed = &used
}

// PointsEarned returns the points a sale grants: the floored final charged
// amount when a card is attached, zero otherwise. The tier multiplier is
// deliberately not applied here.
func PointsEarned(finalTotal decimal.Decimal, card *Card) int64 {
	if card == nil {
		return 0
	}
	if finalTotal.IsNegative() {
		return 0
	}
	return finalTotal.Floor().IntPart()
}
