package repositories

import (
	"errors"
	"fmt"
)

// OrderErrorCode enumerates repository error causes for order placement and
// stock reservation.
type OrderErrorCode string

const (
	// OrderErrorUnknown represents an unspecified failure.
	OrderErrorUnknown OrderErrorCode = "order_unknown"
	// OrderErrorInsufficientStock indicates requested quantity exceeds availability.
	OrderErrorInsufficientStock OrderErrorCode = "order_insufficient_stock"
	// OrderErrorProductNotFound indicates the product has no catalog record.
	OrderErrorProductNotFound OrderErrorCode = "order_product_not_found"
	// OrderErrorUserNotFound indicates the purchasing user does not exist.
	OrderErrorUserNotFound OrderErrorCode = "order_user_not_found"
	// OrderErrorNotFound indicates the order is absent from both storage shapes.
	OrderErrorNotFound OrderErrorCode = "order_not_found"
)

// OrderError wraps order-specific failures with machine readable codes. The
// ProductTitle, when set, lets the API name the offending product so clients
// can retry with an adjusted cart.
type OrderError struct {
	Op           string
	Code         OrderErrorCode
	Message      string
	ProductID    string
	ProductTitle string
	Err          error
}

// Error implements the error interface.
func (e *OrderError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *OrderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewOrderError constructs a typed order error.
func NewOrderError(code OrderErrorCode, message string, err error) *OrderError {
	if message == "" {
		message = string(code)
	}
	return &OrderError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// OrderErrorHasCode reports whether err carries the given order error code.
func OrderErrorHasCode(err error, code OrderErrorCode) bool {
	var orderErr *OrderError
	return errors.As(err, &orderErr) && orderErr.Code == code
}

// AsOrderError extracts the typed order error when present.
func AsOrderError(err error) (*OrderError, bool) {
	var orderErr *OrderError
	ok := errors.As(err, &orderErr)
	return orderErr, ok
}
