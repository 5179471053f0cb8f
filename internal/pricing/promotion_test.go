package pricing

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewPercentageRejectsOutOfRange(t *testing.T) {
	for _, v := range []string{"-1", "100.01", "250"} {
		_, err := NewPercentage(decimal.RequireFromString(v), winStart, winEnd, "")
		if !errors.Is(err, ErrInvalidPromotion) {
			t.Fatalf("value=%s: expected ErrInvalidPromotion, got %v", v, err)
		}
	}
}

func TestNewFixedRejectsNegative(t *testing.T) {
	_, err := NewFixed(decimal.NewFromInt(-5), winStart, winEnd, "")
	if !errors.Is(err, ErrInvalidPromotion) {
		t.Fatalf("expected ErrInvalidPromotion, got %v", err)
	}
}

func TestNewBuyXGetYRejectsNonPositiveQuantities(t *testing.T) {
	cases := []struct{ buy, free int64 }{
		{0, 1}, {1, 0}, {-2, 1}, {0, 0},
	}
	for _, c := range cases {
		_, err := NewBuyXGetY(c.buy, c.free, winStart, winEnd, "")
		if !errors.Is(err, ErrInvalidPromotion) {
			t.Fatalf("buy=%d free=%d: expected ErrInvalidPromotion, got %v", c.buy, c.free, err)
		}
	}
}

func TestNewPromotionRejectsInvertedWindow(t *testing.T) {
	_, err := NewPercentage(decimal.NewFromInt(10), winEnd, winStart, "")
	if !errors.Is(err, ErrInvalidPromotion) {
		t.Fatalf("expected ErrInvalidPromotion, got %v", err)
	}
}

func TestActiveAtInclusiveBounds(t *testing.T) {
	p, err := NewFixed(decimal.NewFromInt(1), winStart, winEnd, "")
	if err != nil {
		t.Fatalf("NewFixed: %v", err)
	}
	if !p.ActiveAt(winStart) || !p.ActiveAt(winEnd) {
		t.Fatalf("window bounds should be inclusive")
	}
	if p.ActiveAt(winStart.Add(-time.Nanosecond)) || p.ActiveAt(winEnd.Add(time.Nanosecond)) {
		t.Fatalf("instants outside the window should be inactive")
	}
}
