package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/SigNoz/storefront-go-app/internal/db"
	"github.com/SigNoz/storefront-go-app/internal/metrics"
)

// InventoryLedger owns every write to products.quantity. Callers pass the
// transaction the adjustment belongs to.
type InventoryLedger struct {
	metrics *metrics.AppMetrics
}

// NewInventoryLedger creates a new inventory ledger
func NewInventoryLedger(metrics *metrics.AppMetrics) *InventoryLedger {
	return &InventoryLedger{metrics: metrics}
}

// Decrement removes qty units from a product. The update only matches while
// enough stock remains, so a concurrent checkout that drained the row makes
// it affect zero rows and surfaces as *InsufficientInventoryError.
func (l *InventoryLedger) Decrement(ctx context.Context, q db.Querier, productID int64, qty int) error {
	start := time.Now()
	query := "UPDATE products SET quantity = quantity - ?, updated_at = NOW() WHERE id = ? AND quantity >= ?"
	result, err := q.ExecContext(ctx, query, qty, productID, qty)
	l.metrics.RecordDBQuery(ctx, "UPDATE", "products", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to decrement inventory: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	available, err := l.Available(ctx, q, productID)
	if err != nil {
		return err
	}
	return &InsufficientInventoryError{ProductID: productID, Requested: qty, Available: available}
}

// Increment adds qty units back to a product unconditionally
func (l *InventoryLedger) Increment(ctx context.Context, q db.Querier, productID int64, qty int) error {
	start := time.Now()
	query := "UPDATE products SET quantity = quantity + ?, updated_at = NOW() WHERE id = ?"
	result, err := q.ExecContext(ctx, query, qty, productID)
	l.metrics.RecordDBQuery(ctx, "UPDATE", "products", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to increment inventory: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound("product", productID)
	}
	return nil
}

// Available returns the current available quantity of a product
func (l *InventoryLedger) Available(ctx context.Context, q db.Querier, productID int64) (int, error) {
	start := time.Now()
	query := "SELECT quantity FROM products WHERE id = ?"
	var available int
	err := q.QueryRowContext(ctx, query, productID).Scan(&available)
	l.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, notFound("product", productID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read inventory: %w", err)
	}
	return available, nil
}
