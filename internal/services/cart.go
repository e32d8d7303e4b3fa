package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/SigNoz/storefront-go-app/internal/db"
	"github.com/SigNoz/storefront-go-app/internal/metrics"
	"github.com/SigNoz/storefront-go-app/internal/models"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CartService handles cart-related operations
type CartService struct {
	db      *db.DB
	metrics *metrics.AppMetrics
	logger  *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(db *db.DB, metrics *metrics.AppMetrics, logger *zap.Logger) *CartService {
	return &CartService{
		db:      db,
		metrics: metrics,
		logger:  logger,
	}
}

// MonitorActiveCarts periodically updates the active carts gauge until ctx is done
func (s *CartService) MonitorActiveCarts(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			query := "SELECT COUNT(DISTINCT user_id) FROM cart_items"
			start := time.Now()
			var count int
			err := s.db.QueryRowContext(ctx, query).Scan(&count)
			s.metrics.RecordDBQuery(ctx, "SELECT", "cart_items", query, start, err == nil)
			if err != nil {
				s.logger.Warn("active carts query failed", zap.Error(err))
				continue
			}
			s.metrics.ActiveCartsCount.Record(ctx, int64(count), s.metrics.Attrs())
		}
	}
}

// AddToCart adds quantity units of a product, merging into an existing line
func (s *CartService) AddToCart(ctx context.Context, userID, productID int64, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrInvalidInput)
	}

	var exists bool
	checkProductQuery := "SELECT EXISTS(SELECT 1 FROM products WHERE id = ?)"
	if err := s.db.QueryRowContext(ctx, checkProductQuery, productID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to verify product: %w", err)
	}
	if !exists {
		return notFound("product", productID)
	}

	// uq_cart_items_user_product keeps one line per (user, product)
	start := time.Now()
	query := `INSERT INTO cart_items (user_id, product_id, quantity) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE quantity = quantity + VALUES(quantity), updated_at = NOW()`
	_, err := s.db.ExecContext(ctx, query, userID, productID, quantity)
	s.metrics.RecordDBQuery(ctx, "INSERT", "cart_items", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to add item to cart: %w", err)
	}

	s.updateCartItemsCount(ctx, userID)
	return nil
}

// UpdateQuantity replaces the quantity of an existing cart line
func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID int64, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrInvalidInput)
	}

	start := time.Now()
	query := "UPDATE cart_items SET quantity = ?, updated_at = NOW() WHERE user_id = ? AND product_id = ?"
	result, err := s.db.ExecContext(ctx, query, quantity, userID, productID)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "cart_items", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to update cart item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound("cart item", productID)
	}

	s.updateCartItemsCount(ctx, userID)
	return nil
}

// RemoveFromCart removes a product line from the cart
func (s *CartService) RemoveFromCart(ctx context.Context, userID, productID int64) error {
	start := time.Now()
	query := "DELETE FROM cart_items WHERE user_id = ? AND product_id = ?"
	result, err := s.db.ExecContext(ctx, query, userID, productID)
	s.metrics.RecordDBQuery(ctx, "DELETE", "cart_items", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to remove item from cart: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound("cart item", productID)
	}

	s.updateCartItemsCount(ctx, userID)
	return nil
}

// GetCart returns the cart with all items and the running subtotal
func (s *CartService) GetCart(ctx context.Context, userID int64) (*models.CartResponse, error) {
	start := time.Now()
	query := `
		SELECT ci.id, ci.user_id, ci.product_id, ci.quantity, ci.created_at, ci.updated_at, p.price
		FROM cart_items ci
		JOIN products p ON ci.product_id = p.id
		WHERE ci.user_id = ?
		ORDER BY ci.id
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	s.metrics.RecordDBQuery(ctx, "SELECT", "cart_items", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart items: %w", err)
	}
	defer rows.Close()

	cart := &models.CartResponse{UserID: userID, Items: []models.CartItem{}, Subtotal: decimal.Zero}
	for rows.Next() {
		var item models.CartItem
		var price decimal.Decimal
		if err := rows.Scan(&item.ID, &item.UserID, &item.ProductID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt, &price); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		cart.Items = append(cart.Items, item)
		cart.Subtotal = cart.Subtotal.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cart items: %w", err)
	}

	return cart, nil
}

// Snapshot reads the user's cart lines with product price and availability
// resolved, in the order they were added. It runs on q so checkout can read
// inside its own transaction.
func (s *CartService) Snapshot(ctx context.Context, q db.Querier, userID int64) ([]models.CartLine, error) {
	start := time.Now()
	query := `
		SELECT ci.product_id, p.name, p.price, ci.quantity, p.quantity
		FROM cart_items ci
		JOIN products p ON ci.product_id = p.id
		WHERE ci.user_id = ?
		ORDER BY ci.id
	`
	rows, err := q.QueryContext(ctx, query, userID)
	s.metrics.RecordDBQuery(ctx, "SELECT", "cart_items", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart items: %w", err)
	}
	defer rows.Close()

	var lines []models.CartLine
	for rows.Next() {
		var line models.CartLine
		if err := rows.Scan(&line.ProductID, &line.ProductName, &line.UnitPrice, &line.Quantity, &line.Available); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cart items: %w", err)
	}

	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	return lines, nil
}

// Clear deletes every cart line of the user on q
func (s *CartService) Clear(ctx context.Context, q db.Querier, userID int64) error {
	start := time.Now()
	query := "DELETE FROM cart_items WHERE user_id = ?"
	_, err := q.ExecContext(ctx, query, userID)
	s.metrics.RecordDBQuery(ctx, "DELETE", "cart_items", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// updateCartItemsCount updates the cart items count gauge metric
func (s *CartService) updateCartItemsCount(ctx context.Context, userID int64) {
	start := time.Now()
	query := "SELECT COUNT(*) FROM cart_items WHERE user_id = ?"
	var count int
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&count)
	s.metrics.RecordDBQuery(ctx, "SELECT", "cart_items", query, start, err == nil)
	if err != nil {
		s.logger.Warn("cart items count query failed", zap.Int64("user_id", userID), zap.Error(err))
		return
	}

	s.logger.Debug("recording cart items count", zap.Int64("user_id", userID), zap.Int("count", count))
	s.metrics.CartItemsCount.Record(ctx, int64(count), s.metrics.Attrs(attribute.Int64("user_id", userID)))
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
