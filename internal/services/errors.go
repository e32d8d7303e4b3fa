package services

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyCart is returned when checkout is attempted with no cart lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidInput signals the caller provided invalid data.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidStatus is returned for an order status outside the known set.
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrInvalidPaymentStatus is returned for a payment status outside the known set.
	ErrInvalidPaymentStatus = errors.New("invalid payment status")
	// ErrInvalidPaymentMethod is returned for a payment method outside cod/card/paypal.
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	// ErrRefundRequiresRefundOrder rejects setting status=refunded without restoring inventory.
	ErrRefundRequiresRefundOrder = errors.New("orders are refunded through the refund operation")
	// ErrAlreadyRefunded is returned when refunding an order twice.
	ErrAlreadyRefunded = errors.New("order already refunded")
	// ErrUserExists is returned when the email is already registered.
	ErrUserExists = errors.New("user already exists")
)

// InsufficientInventoryError reports a cart line asking for more units than
// the product has available.
type InsufficientInventoryError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient inventory for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// NotFoundError reports a missing entity, or one not owned by the caller.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

func notFound(resource string, id int64) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// IsNotFound reports whether err is, or wraps, a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
