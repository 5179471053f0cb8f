// Package checkout turns an in-memory cart into a persisted sale plus
// queued stock decrements. The sale write is the single source of truth for
// "did the sale happen"; everything after it is best-effort and reconciled
// through the movement outbox.
package checkout

import "github.com/openretail/settlement/internal/loyalty"

// Phase is the lifecycle state of a settlement attempt.
type Phase string

const (
	PhaseOpen          Phase = "OPEN"
	PhaseValidating    Phase = "VALIDATING"
	PhasePricing       Phase = "PRICING"
	PhasePersisting    Phase = "PERSISTING"
	PhaseSettlingStock Phase = "SETTLING_STOCK"
	PhaseComplete      Phase = "COMPLETE"
	PhaseAborted       Phase = "ABORTED"
)

// Line is one cart entry. Quantity is always positive; setting it to zero
// or below removes the line.
type Line struct {
	ProductID string
	Quantity  int64
}

// Session is the cart a checkout settles. It is an explicit value owned by
// the caller and passed into the orchestrator; there is no package-level
// cart. Abandoning a session before the sale is persisted has zero side
// effects. A Session is not safe for concurrent use.
type Session struct {
	employeeID string
	lines      []Line
	card       *loyalty.Card
	phase      Phase
}

// NewSession opens a cart attributed to the given employee.
func NewSession(employeeID string) *Session {
	return &Session{employeeID: employeeID, phase: PhaseOpen}
}

func (s *Session) EmployeeID() string { return s.employeeID }

// Phase reports where the last settlement attempt got to.
func (s *Session) Phase() Phase { return s.phase }

// AddItem adds quantity units of a product, merging with an existing line.
// Non-positive quantities are ignored.
func (s *Session) AddItem(productID string, quantity int64) {
	if quantity <= 0 || productID == "" {
		return
	}
	for i := range s.lines {
		if s.lines[i].ProductID == productID {
			s.lines[i].Quantity += quantity
			return
		}
	}
	s.lines = append(s.lines, Line{ProductID: productID, Quantity: quantity})
}

// SetQuantity replaces a line's quantity. Zero or negative removes the line.
func (s *Session) SetQuantity(productID string, quantity int64) {
	if quantity <= 0 {
		s.Remove(productID)
		return
	}
	for i := range s.lines {
		if s.lines[i].ProductID == productID {
			s.lines[i].Quantity = quantity
			return
		}
	}
	s.lines = append(s.lines, Line{ProductID: productID, Quantity: quantity})
}

// Remove deletes a product's line from the cart.
func (s *Session) Remove(productID string) {
	for i := range s.lines {
		if s.lines[i].ProductID == productID {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
			return
		}
	}
}

// Lines returns a copy of the cart lines.
func (s *Session) Lines() []Line {
	cp := make([]Line, len(s.lines))
	copy(cp, s.lines)
	return cp
}

// Empty reports whether the cart has no lines.
func (s *Session) Empty() bool { return len(s.lines) == 0 }

// AttachCard selects the loyalty card for this checkout.
func (s *Session) AttachCard(card loyalty.Card) { s.card = &card }

// DetachCard clears the loyalty selection.
func (s *Session) DetachCard() { s.card = nil }

// Card returns the attached loyalty card, or nil.
func (s *Session) Card() *loyalty.Card { return s.card }

// Reset clears the cart and loyalty selection after a completed checkout so
// the session can take the next customer.
func (s *Session) Reset() {
	s.lines = nil
	s.card = nil
	s.phase = PhaseOpen
}
