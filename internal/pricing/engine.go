package pricing

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// LineAmount returns the amount charged for quantity units at unitPrice,
// applying promo when it is present and its window covers asOf. An expired
// or not-yet-started promotion is inert, not an error. The result is
// rounded to cents and never negative.
func LineAmount(ctx context.Context, unitPrice decimal.Decimal, promo *Promotion, quantity int64, asOf time.Time) decimal.Decimal {
	qty := decimal.NewFromInt(quantity)
	full := unitPrice.Mul(qty)

	if promo == nil || !promo.ActiveAt(asOf) {
		return full.Round(2)
	}

	switch promo.Kind {
	case KindPercentage:
		rate := promo.Value.Div(hundred)
		return full.Mul(decimal.NewFromInt(1).Sub(rate)).Round(2)

	case KindFixed:
		discounted := unitPrice.Sub(promo.Value)
		if discounted.IsNegative() {
			discounted = decimal.Zero
		}
		return discounted.Mul(qty).Round(2)

	case KindBuyXGetY:
		// Constructors forbid non-positive quantities, but promotions loaded
		// from legacy records can bypass them. A zero group size would divide
		// by zero; treat the promotion as inert and record the anomaly.
		if promo.BuyQuantity <= 0 || promo.GetFreeQuantity <= 0 {
			slog.WarnContext(ctx, "malformed buy-x-get-y promotion, charging full price",
				"buy_quantity", promo.BuyQuantity,
				"get_free_quantity", promo.GetFreeQuantity,
			)
			return full.Round(2)
		}
		group := promo.BuyQuantity + promo.GetFreeQuantity
		sets := quantity / group
		remainder := quantity % group
		payable := sets*promo.BuyQuantity + min(remainder, promo.BuyQuantity)
		return unitPrice.Mul(decimal.NewFromInt(payable)).Round(2)

	default:
		slog.WarnContext(ctx, "unknown promotion kind, charging full price", "kind", promo.Kind)
		return full.Round(2)
	}
}
