package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/SigNoz/storefront-go-app/internal/db"
	"github.com/SigNoz/storefront-go-app/internal/events"
	"github.com/SigNoz/storefront-go-app/internal/metrics"
	"github.com/SigNoz/storefront-go-app/internal/models"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PaymentService records payment attempts against orders. Every insert also
// refreshes orders.payment_status in the same transaction.
type PaymentService struct {
	db      *db.DB
	metrics *metrics.AppMetrics
	logger  *zap.Logger
	events  events.Publisher
	clock   func() time.Time
}

// NewPaymentService creates a new payment service
func NewPaymentService(db *db.DB, metrics *metrics.AppMetrics, logger *zap.Logger, publisher events.Publisher) *PaymentService {
	return &PaymentService{
		db:      db,
		metrics: metrics,
		logger:  logger,
		events:  publisher,
		clock:   time.Now,
	}
}

// ProcessPayment records a payment for the full order total. An empty method
// falls back to the one chosen at checkout. Prepaid methods complete
// immediately, cash on delivery stays pending. Refunded orders take no
// further payments.
func (s *PaymentService) ProcessPayment(ctx context.Context, orderID int64, data models.PaymentData) (*models.Payment, error) {
	if data.PaymentMethod != "" && !data.PaymentMethod.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, data.PaymentMethod)
	}

	now := s.clock().UTC()
	payment := &models.Payment{
		OrderID:       orderID,
		PaymentMethod: data.PaymentMethod,
		TransactionID: data.TransactionID,
		Response:      data.Response,
		CreatedAt:     now,
	}
	var userID int64
	var orderNumber string

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		start := time.Now()
		query := "SELECT user_id, order_number, status, total, payment_method FROM orders WHERE id = ? FOR UPDATE"
		var status models.OrderStatus
		var total decimal.Decimal
		var method models.PaymentMethod
		err := tx.QueryRowContext(ctx, query, orderID).Scan(&userID, &orderNumber, &status, &total, &method)
		s.metrics.RecordDBQuery(ctx, "SELECT", "orders", query, start, err == nil || isNoRows(err))
		if isNoRows(err) {
			return notFound("order", orderID)
		}
		if err != nil {
			return fmt.Errorf("failed to get order: %w", err)
		}
		if status == models.OrderStatusRefunded {
			return ErrAlreadyRefunded
		}

		if payment.PaymentMethod == "" {
			payment.PaymentMethod = method
		}
		payment.Amount = total
		payment.Status = models.PaymentStatusPending
		if payment.PaymentMethod.Prepaid() {
			payment.Status = models.PaymentStatusCompleted
		}

		if err := s.insert(ctx, tx, payment); err != nil {
			return err
		}

		start = time.Now()
		query = "UPDATE orders SET payment_status = ?, updated_at = ? WHERE id = ?"
		_, err = tx.ExecContext(ctx, query, payment.Status, now, orderID)
		s.metrics.RecordDBQuery(ctx, "UPDATE", "orders", query, start, err == nil)
		if err != nil {
			return fmt.Errorf("failed to update order payment status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PaymentsRecorded.Add(ctx, 1, s.metrics.Attrs(
		attribute.String("payment_method", string(payment.PaymentMethod)),
		attribute.String("payment_status", string(payment.Status)),
	))
	if err := s.events.Publish(ctx, events.Event{
		Type:          events.PaymentRecorded,
		OrderID:       orderID,
		OrderNumber:   orderNumber,
		UserID:        userID,
		PaymentStatus: string(payment.Status),
		Amount:        payment.Amount,
		OccurredAt:    now,
	}); err != nil {
		s.logger.Error("failed to publish payment event", zap.Int64("order_id", orderID), zap.Error(err))
	}
	s.logger.Info("payment recorded",
		zap.Int64("order_id", orderID),
		zap.Int64("payment_id", payment.ID),
		zap.String("payment_method", string(payment.PaymentMethod)),
		zap.String("status", string(payment.Status)),
	)

	return payment, nil
}

// ListPayments returns the payment ledger of an order, oldest first
func (s *PaymentService) ListPayments(ctx context.Context, orderID int64) ([]models.Payment, error) {
	start := time.Now()
	query := `SELECT id, order_id, payment_method, transaction_id, amount, status, response, created_at
		FROM payments WHERE order_id = ? ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, orderID)
	s.metrics.RecordDBQuery(ctx, "SELECT", "payments", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	payments := []models.Payment{}
	for rows.Next() {
		var p models.Payment
		var response []byte
		if err := rows.Scan(&p.ID, &p.OrderID, &p.PaymentMethod, &p.TransactionID,
			&p.Amount, &p.Status, &response, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		if len(response) > 0 {
			p.Response = response
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// insert appends a payment row on q and sets its ID
func (s *PaymentService) insert(ctx context.Context, q db.Querier, p *models.Payment) error {
	var response any
	if len(p.Response) > 0 {
		response = string(p.Response)
	}

	start := time.Now()
	query := `INSERT INTO payments (order_id, payment_method, transaction_id, amount, status, response, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	result, err := q.ExecContext(ctx, query, p.OrderID, p.PaymentMethod, p.TransactionID, p.Amount, p.Status, response, p.CreatedAt)
	s.metrics.RecordDBQuery(ctx, "INSERT", "payments", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to record payment: %w", err)
	}

	p.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get payment ID: %w", err)
	}
	return nil
}

// hasRefund reports whether the ledger already holds a refund for the order
func (s *PaymentService) hasRefund(ctx context.Context, q db.Querier, orderID int64) (bool, error) {
	start := time.Now()
	query := "SELECT COUNT(*) FROM payments WHERE order_id = ? AND status = ? AND amount < 0"
	var count int
	err := q.QueryRowContext(ctx, query, orderID, models.PaymentStatusRefunded).Scan(&count)
	s.metrics.RecordDBQuery(ctx, "SELECT", "payments", query, start, err == nil)
	if err != nil {
		return false, fmt.Errorf("failed to check refunds: %w", err)
	}
	return count > 0, nil
}

// mirrorLatest copies status onto the newest payment of the order. Orders
// without payments are left alone.
func (s *PaymentService) mirrorLatest(ctx context.Context, q db.Querier, orderID int64, status models.PaymentStatus) error {
	start := time.Now()
	query := "SELECT id FROM payments WHERE order_id = ? ORDER BY id DESC LIMIT 1"
	var paymentID int64
	err := q.QueryRowContext(ctx, query, orderID).Scan(&paymentID)
	s.metrics.RecordDBQuery(ctx, "SELECT", "payments", query, start, err == nil || isNoRows(err))
	if isNoRows(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to find latest payment: %w", err)
	}

	start = time.Now()
	query = "UPDATE payments SET status = ? WHERE id = ?"
	_, err = q.ExecContext(ctx, query, status, paymentID)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "payments", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	return nil
}
