package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Role is the back-office role of a user account
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleSupport  Role = "support"
	RoleCustomer Role = "customer"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleSupport, RoleCustomer:
		return true
	}
	return false
}

// OrderStatus is the fulfilment state of an order
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// Valid reports whether s is a known order status
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// PaymentStatus is the settlement state of an order or a payment row
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Valid reports whether s is a known payment status
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// PaymentMethod is how the customer pays for an order
type PaymentMethod string

const (
	PaymentMethodCOD    PaymentMethod = "cod"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodPayPal PaymentMethod = "paypal"
)

// Valid reports whether m is a supported payment method
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCOD, PaymentMethodCard, PaymentMethodPayPal:
		return true
	}
	return false
}

// Prepaid reports whether payments with this method settle immediately.
// Cash on delivery stays pending until the courier collects.
func (m PaymentMethod) Prepaid() bool {
	return m != PaymentMethodCOD
}

// Product represents a product in the catalog
type Product struct {
	ID          int64           `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Category    string          `json:"category" db:"category"`
	Brand       string          `json:"brand" db:"brand"`
	SKU         string          `json:"sku" db:"sku"`
	Quantity    int             `json:"quantity" db:"quantity"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// User represents a user account
type User struct {
	ID        int64     `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name" db:"name"`
	Role      Role      `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CartItem represents one product line in a user's cart
type CartItem struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	ProductID int64     `json:"product_id" db:"product_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CartLine is a cart item with its product resolved, as read at checkout
type CartLine struct {
	ProductID   int64
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int
	Available   int
}

// LineTotal returns unit price times quantity
func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// WishlistItem is a product a user saved for later
type WishlistItem struct {
	UserID    int64     `json:"user_id" db:"user_id"`
	Product   Product   `json:"product"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Order represents a placed order
type Order struct {
	ID              int64           `json:"id" db:"id"`
	UserID          int64           `json:"user_id" db:"user_id"`
	OrderNumber     string          `json:"order_number" db:"order_number"`
	Status          OrderStatus     `json:"status" db:"status"`
	PaymentStatus   PaymentStatus   `json:"payment_status" db:"payment_status"`
	PaymentMethod   PaymentMethod   `json:"payment_method" db:"payment_method"`
	Subtotal        decimal.Decimal `json:"subtotal" db:"subtotal"`
	Tax             decimal.Decimal `json:"tax" db:"tax"`
	Shipping        decimal.Decimal `json:"shipping" db:"shipping"`
	Discount        decimal.Decimal `json:"discount" db:"discount"`
	Total           decimal.Decimal `json:"total" db:"total"`
	ShippingAddress Address         `json:"shipping_address" db:"shipping_address"`
	BillingAddress  *Address        `json:"billing_address,omitempty" db:"billing_address"`
	Notes           *string         `json:"notes,omitempty" db:"notes"`
	ShippedAt       *time.Time      `json:"shipped_at,omitempty" db:"shipped_at"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty" db:"delivered_at"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
	Items           []OrderItem     `json:"items,omitempty"`
}

// OrderItem represents an item in an order. Price is a snapshot taken at checkout.
type OrderItem struct {
	ID          int64           `json:"id" db:"id"`
	OrderID     int64           `json:"order_id" db:"order_id"`
	ProductID   int64           `json:"product_id" db:"product_id"`
	ProductName string          `json:"product_name" db:"product_name"`
	Quantity    int             `json:"quantity" db:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price" db:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total" db:"line_total"`
}

// Payment is one entry of an order's append-only payment ledger.
// Refunds carry a negative amount.
type Payment struct {
	ID            int64           `json:"id" db:"id"`
	OrderID       int64           `json:"order_id" db:"order_id"`
	PaymentMethod PaymentMethod   `json:"payment_method" db:"payment_method"`
	TransactionID *string         `json:"transaction_id,omitempty" db:"transaction_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Status        PaymentStatus   `json:"status" db:"status"`
	Response      json.RawMessage `json:"response,omitempty" db:"response"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// Inventory is the available quantity of a product
type Inventory struct {
	ProductID int64     `json:"product_id" db:"product_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CartResponse represents a cart with its items
type CartResponse struct {
	UserID   int64           `json:"user_id"`
	Items    []CartItem      `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// AddToCartRequest represents a request to add item to cart
type AddToCartRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// CheckoutInput carries everything createOrder needs besides the cart
type CheckoutInput struct {
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	ShippingAddress Address         `json:"shipping_address"`
	BillingAddress  *Address        `json:"billing_address,omitempty"`
	Notes           *string         `json:"notes,omitempty"`
	Tax             decimal.Decimal `json:"tax"`
	Shipping        decimal.Decimal `json:"shipping"`
	Discount        decimal.Decimal `json:"discount"`
}

// PaymentData describes a payment attempt against an order
type PaymentData struct {
	PaymentMethod PaymentMethod   `json:"payment_method"`
	TransactionID *string         `json:"transaction_id,omitempty"`
	Response      json.RawMessage `json:"response,omitempty"`
}

// CreateProductRequest represents a back-office request to add a product
type CreateProductRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Brand       string          `json:"brand"`
	SKU         string          `json:"sku"`
	Quantity    int             `json:"quantity"`
}

// CreateUserRequest represents a request to create a user
type CreateUserRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}
