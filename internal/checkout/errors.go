package checkout

import (
	"errors"
	"fmt"
)

// Validation failure codes surfaced to the operator.
const (
	CodeEmptyCart          = "empty_cart"
	CodeInvalidQuantity    = "invalid_quantity"
	CodeUnknownProduct     = "unknown_product"
	CodeInsufficientStock  = "insufficient_stock"
	CodeInsufficientTender = "insufficient_tender"
	CodeInvalidTender      = "invalid_tender"
)

// ValidationError rejects a checkout before any write occurs. It is never
// retried automatically; the operator fixes the cart or the tender and runs
// the checkout again.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("checkout: %s: %s", e.Code, e.Message)
}

// PersistenceError means the sale write failed. The checkout is aborted and
// the cart preserved so the whole attempt can be retried.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("checkout: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// AsValidation unwraps err into a ValidationError if it is one.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
