package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/SigNoz/storefront-go-app/internal/db"
	"github.com/SigNoz/storefront-go-app/internal/events"
	"github.com/SigNoz/storefront-go-app/internal/metrics"
	"github.com/SigNoz/storefront-go-app/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const orderColumns = `id, user_id, order_number, status, payment_status, payment_method,
	subtotal, tax, shipping, discount, total, shipping_address, billing_address, notes,
	shipped_at, delivered_at, created_at, updated_at`

// productInvalidator drops cached products whose quantity changed
type productInvalidator interface {
	Delete(ctx context.Context, ids ...int64) error
}

// OrderFilter narrows the back-office order listing
type OrderFilter struct {
	Status models.OrderStatus
	Limit  int
	Offset int
}

// OrderService handles checkout and the order lifecycle
type OrderService struct {
	db        *db.DB
	metrics   *metrics.AppMetrics
	logger    *zap.Logger
	carts     *CartService
	inventory *InventoryLedger
	payments  *PaymentService
	events    events.Publisher
	products  productInvalidator
	clock     func() time.Time
}

// NewOrderService creates a new order service
func NewOrderService(
	db *db.DB,
	metrics *metrics.AppMetrics,
	logger *zap.Logger,
	carts *CartService,
	inventory *InventoryLedger,
	payments *PaymentService,
	publisher events.Publisher,
	products productInvalidator,
) *OrderService {
	return &OrderService{
		db:        db,
		metrics:   metrics,
		logger:    logger,
		carts:     carts,
		inventory: inventory,
		payments:  payments,
		events:    publisher,
		products:  products,
		clock:     time.Now,
	}
}

// CreateOrder converts the user's cart into a pending order. Reading the cart,
// writing the order and its lines, decrementing inventory and clearing the
// cart happen in one transaction; any failure leaves all tables untouched.
func (s *OrderService) CreateOrder(ctx context.Context, userID int64, in models.CheckoutInput) (*models.Order, error) {
	if err := ValidateCheckout(in); err != nil {
		return nil, err
	}

	now := s.now()
	var order *models.Order

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		lines, err := s.carts.Snapshot(ctx, tx, userID)
		if err != nil {
			return err
		}

		order, err = BuildOrder(userID, lines, in)
		if err != nil {
			return err
		}

		order.OrderNumber, err = s.nextOrderNumber(ctx, tx, now)
		if err != nil {
			return err
		}
		order.CreatedAt = now
		order.UpdatedAt = now

		if err := s.insertOrder(ctx, tx, order); err != nil {
			return err
		}
		for i := range order.Items {
			if err := s.insertOrderItem(ctx, tx, order.ID, &order.Items[i]); err != nil {
				return err
			}
		}
		for _, item := range order.Items {
			if err := s.inventory.Decrement(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		return s.carts.Clear(ctx, tx, userID)
	})
	if err != nil {
		var shortage *InsufficientInventoryError
		if errors.As(err, &shortage) {
			s.metrics.InsufficientStock.Add(ctx, 1, s.metrics.Attrs(attribute.Int64("product_id", shortage.ProductID)))
			s.logger.Info("checkout rejected",
				zap.Int64("user_id", userID),
				zap.Int64("product_id", shortage.ProductID),
				zap.Int("requested", shortage.Requested),
				zap.Int("available", shortage.Available),
			)
		}
		return nil, err
	}

	s.metrics.OrdersCreated.Add(ctx, 1, s.metrics.Attrs(
		attribute.String("order_status", string(order.Status)),
		attribute.String("payment_method", string(order.PaymentMethod)),
	))
	s.metrics.RevenueTotal.Add(ctx, order.Total.InexactFloat64(), s.metrics.Attrs(
		attribute.String("payment_method", string(order.PaymentMethod)),
	))

	s.invalidateProducts(ctx, order.Items)
	s.publish(ctx, events.Event{
		Type:          events.OrderCreated,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		Amount:        order.Total,
		OccurredAt:    now,
	})

	s.logger.Info("order created",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int64("user_id", userID),
		zap.Int("items", len(order.Items)),
		zap.String("total", order.Total.StringFixed(2)),
	)

	return order, nil
}

// GetOrder returns an order with its lines
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := s.findOrder(ctx, s.db, orderID, false)
	if err != nil {
		return nil, err
	}

	order.Items, err = s.loadItems(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// GetUserOrder returns an order only if it belongs to userID
func (s *OrderService) GetUserOrder(ctx context.Context, userID, orderID int64) (*models.Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, notFound("order", orderID)
	}
	return order, nil
}

// ListUserOrders returns all orders for a user, newest first
func (s *OrderService) ListUserOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE user_id = ? ORDER BY created_at DESC, id DESC"
	return s.queryOrders(ctx, query, userID)
}

// ListOrders returns orders for the back-office, optionally filtered by status
func (s *OrderService) ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	if filter.Status != "" {
		if !filter.Status.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, filter.Status)
		}
		query := "SELECT " + orderColumns + " FROM orders WHERE status = ? ORDER BY id DESC LIMIT ? OFFSET ?"
		return s.queryOrders(ctx, query, filter.Status, filter.Limit, filter.Offset)
	}

	query := "SELECT " + orderColumns + " FROM orders ORDER BY id DESC LIMIT ? OFFSET ?"
	return s.queryOrders(ctx, query, filter.Limit, filter.Offset)
}

// UpdateOrderStatus sets the order status. Moving to shipped or delivered
// stamps shipped_at or delivered_at; stamps are kept if the status later
// moves elsewhere. Refunds go through RefundOrder, and a refunded order
// keeps its status.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) (*models.Order, error) {
	if status == models.OrderStatusRefunded {
		return nil, ErrRefundRequiresRefundOrder
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	now := s.now()
	var query string
	var args []any
	switch status {
	case models.OrderStatusShipped:
		query = "UPDATE orders SET status = ?, shipped_at = ?, updated_at = ? WHERE id = ? AND status <> ?"
		args = []any{status, now, now, orderID, models.OrderStatusRefunded}
	case models.OrderStatusDelivered:
		query = "UPDATE orders SET status = ?, delivered_at = ?, updated_at = ? WHERE id = ? AND status <> ?"
		args = []any{status, now, now, orderID, models.OrderStatusRefunded}
	default:
		query = "UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status <> ?"
		args = []any{status, now, orderID, models.OrderStatusRefunded}
	}

	start := time.Now()
	result, err := s.db.ExecContext(ctx, query, args...)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "orders", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// refunded is terminal; tell it apart from a missing order
		current, err := s.findOrder(ctx, s.db, orderID, false)
		if err != nil {
			return nil, err
		}
		if current.Status == models.OrderStatusRefunded {
			return nil, ErrAlreadyRefunded
		}
		return nil, notFound("order", orderID)
	}

	s.metrics.OrderStatusChanges.Add(ctx, 1, s.metrics.Attrs(attribute.String("order_status", string(status))))

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:          events.OrderStatusChanged,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		Amount:        order.Total,
		OccurredAt:    now,
	})
	s.logger.Info("order status updated", zap.Int64("order_id", orderID), zap.String("status", string(status)))

	return order, nil
}

// UpdatePaymentStatus sets the order's payment status and mirrors it onto
// the most recent payment row, if any, in the same transaction.
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, orderID int64, status models.PaymentStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPaymentStatus, status)
	}

	now := s.now()
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.setPaymentStatus(ctx, tx, orderID, status, now); err != nil {
			return err
		}
		return s.payments.mirrorLatest(ctx, tx, orderID, status)
	})
	if err != nil {
		return nil, err
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:          events.OrderPaymentStatusChanged,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		Amount:        order.Total,
		OccurredAt:    now,
	})
	s.logger.Info("order payment status updated", zap.Int64("order_id", orderID), zap.String("payment_status", string(status)))

	return order, nil
}

// RefundOrder puts every ordered unit back into inventory, marks the order and
// its payment status refunded and appends a negative payment for the total.
// All of it commits together or not at all.
func (s *OrderService) RefundOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	now := s.now()
	var order *models.Order
	var refund models.Payment

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		order, err = s.findOrder(ctx, tx, orderID, true)
		if err != nil {
			return err
		}
		if order.Status == models.OrderStatusRefunded {
			return ErrAlreadyRefunded
		}
		// the ledger is authoritative even if the status column was rewritten
		refunded, err := s.payments.hasRefund(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if refunded {
			return ErrAlreadyRefunded
		}

		order.Items, err = s.loadItems(ctx, tx, orderID)
		if err != nil {
			return err
		}
		for _, item := range order.Items {
			if err := s.inventory.Increment(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		query := "UPDATE orders SET status = ?, payment_status = ?, updated_at = ? WHERE id = ?"
		start := time.Now()
		_, err = tx.ExecContext(ctx, query, models.OrderStatusRefunded, models.PaymentStatusRefunded, now, orderID)
		s.metrics.RecordDBQuery(ctx, "UPDATE", "orders", query, start, err == nil)
		if err != nil {
			return fmt.Errorf("failed to mark order refunded: %w", err)
		}

		refund = models.Payment{
			OrderID:       orderID,
			PaymentMethod: order.PaymentMethod,
			Amount:        order.Total.Neg(),
			Status:        models.PaymentStatusRefunded,
			CreatedAt:     now,
		}
		return s.payments.insert(ctx, tx, &refund)
	})
	if err != nil {
		return nil, err
	}

	order.Status = models.OrderStatusRefunded
	order.PaymentStatus = models.PaymentStatusRefunded
	order.UpdatedAt = now

	s.metrics.RefundsTotal.Add(ctx, 1, s.metrics.Attrs(attribute.String("payment_method", string(order.PaymentMethod))))
	s.metrics.RefundedAmount.Add(ctx, order.Total.InexactFloat64(), s.metrics.Attrs(attribute.String("payment_method", string(order.PaymentMethod))))
	s.invalidateProducts(ctx, order.Items)
	s.publish(ctx, events.Event{
		Type:          events.OrderRefunded,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		Amount:        refund.Amount,
		OccurredAt:    now,
	})
	s.logger.Info("order refunded",
		zap.Int64("order_id", orderID),
		zap.Int64("payment_id", refund.ID),
		zap.String("amount", refund.Amount.StringFixed(2)),
	)

	return order, nil
}

// nextOrderNumber bumps today's sequence row. LAST_INSERT_ID(expr) hands the
// new value back through the result, and the row lock taken by the upsert
// serialises concurrent checkouts on the same day.
func (s *OrderService) nextOrderNumber(ctx context.Context, q db.Querier, now time.Time) (string, error) {
	start := time.Now()
	query := `INSERT INTO order_sequences (seq_date, last_value) VALUES (?, LAST_INSERT_ID(1))
		ON DUPLICATE KEY UPDATE last_value = LAST_INSERT_ID(last_value + 1)`
	result, err := q.ExecContext(ctx, query, now.Format("2006-01-02"))
	s.metrics.RecordDBQuery(ctx, "INSERT", "order_sequences", query, start, err == nil)
	if err != nil {
		return "", fmt.Errorf("failed to allocate order number: %w", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("failed to read order sequence: %w", err)
	}
	return FormatOrderNumber(now, seq), nil
}

func (s *OrderService) insertOrder(ctx context.Context, q db.Querier, order *models.Order) error {
	start := time.Now()
	query := `INSERT INTO orders (user_id, order_number, status, payment_status, payment_method,
		subtotal, tax, shipping, discount, total, shipping_address, billing_address, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := q.ExecContext(ctx, query,
		order.UserID, order.OrderNumber, order.Status, order.PaymentStatus, order.PaymentMethod,
		order.Subtotal, order.Tax, order.Shipping, order.Discount, order.Total,
		order.ShippingAddress, order.BillingAddress, order.Notes, order.CreatedAt, order.UpdatedAt,
	)
	s.metrics.RecordDBQuery(ctx, "INSERT", "orders", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	order.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get order ID: %w", err)
	}
	return nil
}

func (s *OrderService) insertOrderItem(ctx context.Context, q db.Querier, orderID int64, item *models.OrderItem) error {
	start := time.Now()
	query := "INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price, line_total) VALUES (?, ?, ?, ?, ?, ?)"
	result, err := q.ExecContext(ctx, query, orderID, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice, item.LineTotal)
	s.metrics.RecordDBQuery(ctx, "INSERT", "order_items", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to create order item: %w", err)
	}

	item.OrderID = orderID
	item.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get order item ID: %w", err)
	}
	return nil
}

func (s *OrderService) setPaymentStatus(ctx context.Context, q db.Querier, orderID int64, status models.PaymentStatus, now time.Time) error {
	start := time.Now()
	query := "UPDATE orders SET payment_status = ?, updated_at = ? WHERE id = ?"
	result, err := q.ExecContext(ctx, query, status, now, orderID)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "orders", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound("order", orderID)
	}
	return nil
}

// findOrder reads one order row; forUpdate locks it until the transaction ends
func (s *OrderService) findOrder(ctx context.Context, q db.Querier, orderID int64, forUpdate bool) (*models.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE id = ?"
	if forUpdate {
		query += " FOR UPDATE"
	}

	start := time.Now()
	order, err := scanOrder(q.QueryRowContext(ctx, query, orderID))
	s.metrics.RecordDBQuery(ctx, "SELECT", "orders", query, start, err == nil || isNoRows(err))

	if isNoRows(err) {
		return nil, notFound("order", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

func (s *OrderService) loadItems(ctx context.Context, q db.Querier, orderID int64) ([]models.OrderItem, error) {
	start := time.Now()
	query := "SELECT id, order_id, product_id, product_name, quantity, unit_price, line_total FROM order_items WHERE order_id = ? ORDER BY id"
	rows, err := q.QueryContext(ctx, query, orderID)
	s.metrics.RecordDBQuery(ctx, "SELECT", "order_items", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName,
			&item.Quantity, &item.UnitPrice, &item.LineTotal); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *OrderService) queryOrders(ctx context.Context, query string, args ...any) ([]models.Order, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, args...)
	s.metrics.RecordDBQuery(ctx, "SELECT", "orders", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var order models.Order
	err := row.Scan(
		&order.ID, &order.UserID, &order.OrderNumber, &order.Status, &order.PaymentStatus, &order.PaymentMethod,
		&order.Subtotal, &order.Tax, &order.Shipping, &order.Discount, &order.Total,
		&order.ShippingAddress, &order.BillingAddress, &order.Notes,
		&order.ShippedAt, &order.DeliveredAt, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *OrderService) invalidateProducts(ctx context.Context, items []models.OrderItem) {
	if s.products == nil || len(items) == 0 {
		return
	}
	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}
	if err := s.products.Delete(ctx, ids...); err != nil {
		s.logger.Warn("failed to invalidate cached products", zap.Int64s("product_ids", ids), zap.Error(err))
	}
}

// publish never fails the caller: the order is already committed
func (s *OrderService) publish(ctx context.Context, event events.Event) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish order event",
			zap.String("event_type", event.Type),
			zap.Int64("order_id", event.OrderID),
			zap.Error(err),
		)
	}
}

func (s *OrderService) now() time.Time {
	return s.clock().UTC()
}
