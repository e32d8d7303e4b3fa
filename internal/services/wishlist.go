package services

import (
	"context"
	"fmt"
	"time"

	"github.com/SigNoz/storefront-go-app/internal/db"
	"github.com/SigNoz/storefront-go-app/internal/metrics"
	"github.com/SigNoz/storefront-go-app/internal/models"
	"go.uber.org/zap"
)

// WishlistService keeps the products a user saved for later
type WishlistService struct {
	db      *db.DB
	metrics *metrics.AppMetrics
	logger  *zap.Logger
}

// NewWishlistService creates a new wishlist service
func NewWishlistService(db *db.DB, metrics *metrics.AppMetrics, logger *zap.Logger) *WishlistService {
	return &WishlistService{
		db:      db,
		metrics: metrics,
		logger:  logger,
	}
}

// Add saves a product to the wishlist. Adding a saved product again is a no-op.
func (s *WishlistService) Add(ctx context.Context, userID, productID int64) error {
	var exists bool
	checkProductQuery := "SELECT EXISTS(SELECT 1 FROM products WHERE id = ?)"
	if err := s.db.QueryRowContext(ctx, checkProductQuery, productID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to verify product: %w", err)
	}
	if !exists {
		return notFound("product", productID)
	}

	start := time.Now()
	query := "INSERT IGNORE INTO wishlist_items (user_id, product_id) VALUES (?, ?)"
	_, err := s.db.ExecContext(ctx, query, userID, productID)
	s.metrics.RecordDBQuery(ctx, "INSERT", "wishlist_items", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to add wishlist item: %w", err)
	}

	s.logger.Debug("wishlist item added", zap.Int64("user_id", userID), zap.Int64("product_id", productID))
	return nil
}

// Remove drops a product from the wishlist
func (s *WishlistService) Remove(ctx context.Context, userID, productID int64) error {
	start := time.Now()
	query := "DELETE FROM wishlist_items WHERE user_id = ? AND product_id = ?"
	result, err := s.db.ExecContext(ctx, query, userID, productID)
	s.metrics.RecordDBQuery(ctx, "DELETE", "wishlist_items", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to remove wishlist item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound("wishlist item", productID)
	}
	return nil
}

// List returns the saved products, most recently saved first
func (s *WishlistService) List(ctx context.Context, userID int64) ([]models.WishlistItem, error) {
	start := time.Now()
	query := `
		SELECT w.user_id, w.created_at,
			p.id, p.name, p.description, p.price, p.category, p.brand, p.sku, p.quantity, p.created_at, p.updated_at
		FROM wishlist_items w
		JOIN products p ON w.product_id = p.id
		WHERE w.user_id = ?
		ORDER BY w.created_at DESC, p.id
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	s.metrics.RecordDBQuery(ctx, "SELECT", "wishlist_items", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query wishlist: %w", err)
	}
	defer rows.Close()

	items := []models.WishlistItem{}
	for rows.Next() {
		var item models.WishlistItem
		p := &item.Product
		if err := rows.Scan(&item.UserID, &item.CreatedAt,
			&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &p.Brand, &p.SKU, &p.Quantity, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan wishlist item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
