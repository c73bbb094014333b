package checkout

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrUnknownChannel     = errors.New("unknown checkout channel")
	ErrChannelUnavailable = errors.New("checkout channel is not configured")
	ErrRecordOrder        = errors.New("failed to record order")
	ErrCaptureMismatch    = errors.New("captured payment does not match the cart")
)

// FieldError describes one missing or malformed customer field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned before any side effect when the customer
// details are incomplete
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+" "+f.Message)
	}
	return "invalid checkout details: " + strings.Join(msgs, ", ")
}

// PaymentError wraps a failed payment capture. The cart is kept.
type PaymentError struct {
	Ref string
	Err error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment %s could not be captured: %v", e.Ref, e.Err)
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}
