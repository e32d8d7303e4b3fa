package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/SigNoz/storefront-go-app/internal/models"
	"github.com/shopspring/decimal"
)

// ValidateCheckout checks the parts of a checkout that do not need the database
func ValidateCheckout(in models.CheckoutInput) error {
	if !in.PaymentMethod.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, in.PaymentMethod)
	}
	if missing := in.ShippingAddress.MissingFields(); len(missing) > 0 {
		return fmt.Errorf("%w: shipping address is missing %s", ErrInvalidInput, strings.Join(missing, ", "))
	}

	amounts := []struct {
		name  string
		value decimal.Decimal
	}{
		{"tax", in.Tax},
		{"shipping", in.Shipping},
		{"discount", in.Discount},
	}
	for _, a := range amounts {
		if a.value.IsNegative() {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidInput, a.name)
		}
	}
	return nil
}

// BuildOrder prices a cart snapshot into an unsaved pending order with one
// line per cart line. Every line must fit within the product's available
// quantity. The total is subtotal + tax + shipping - discount and is not
// clamped at zero.
func BuildOrder(userID int64, lines []models.CartLine, in models.CheckoutInput) (*models.Order, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	subtotal := decimal.Zero
	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		if line.Quantity > line.Available {
			return nil, &InsufficientInventoryError{
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Available: line.Available,
			}
		}

		lineTotal := line.LineTotal()
		subtotal = subtotal.Add(lineTotal)
		items = append(items, models.OrderItem{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   lineTotal,
		})
	}

	return &models.Order{
		UserID:          userID,
		Status:          models.OrderStatusPending,
		PaymentStatus:   models.PaymentStatusPending,
		PaymentMethod:   in.PaymentMethod,
		Subtotal:        subtotal,
		Tax:             in.Tax,
		Shipping:        in.Shipping,
		Discount:        in.Discount,
		Total:           subtotal.Add(in.Tax).Add(in.Shipping).Sub(in.Discount),
		ShippingAddress: in.ShippingAddress,
		BillingAddress:  in.BillingAddress,
		Notes:           in.Notes,
		Items:           items,
	}, nil
}

// FormatOrderNumber renders the display number ORD-YYYYMMDD-NNNNNN
func FormatOrderNumber(day time.Time, seq int64) string {
	return fmt.Sprintf("ORD-%s-%06d", day.Format("20060102"), seq)
}
