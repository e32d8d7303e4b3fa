package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/SigNoz/storefront-go-app/internal/cache"
	"github.com/SigNoz/storefront-go-app/internal/db"
	"github.com/SigNoz/storefront-go-app/internal/metrics"
	"github.com/SigNoz/storefront-go-app/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const productColumns = "id, name, description, price, category, brand, sku, quantity, created_at, updated_at"

// ProductFilter narrows a catalog listing
type ProductFilter struct {
	Category string
	Brand    string
	Limit    int
	Offset   int
}

// ProductService handles product-related operations
type ProductService struct {
	db        *db.DB
	metrics   *metrics.AppMetrics
	logger    *zap.Logger
	cache     cache.ProductCache
	inventory *InventoryLedger
}

// NewProductService creates a new product service
func NewProductService(db *db.DB, metrics *metrics.AppMetrics, logger *zap.Logger, productCache cache.ProductCache, inventory *InventoryLedger) *ProductService {
	return &ProductService{
		db:        db,
		metrics:   metrics,
		logger:    logger,
		cache:     productCache,
		inventory: inventory,
	}
}

// ListProducts returns a paginated list of products, optionally by category and brand
func (s *ProductService) ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var where []string
	var args []any
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Brand != "" {
		where = append(where, "brand = ?")
		args = append(args, filter.Brand)
	}

	query := "SELECT " + productColumns + " FROM products"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, args...)
	s.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// GetProduct returns a product by ID, reading through the product cache
func (s *ProductService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	cached, ok, err := s.cache.Get(ctx, id)
	if err != nil {
		s.logger.Warn("product cache read failed", zap.Int64("product_id", id), zap.Error(err))
	}
	if ok {
		s.metrics.CacheHits.Add(ctx, 1, s.metrics.Attrs(attribute.String("cache", "product")))
		s.recordView(ctx, &cached)
		return &cached, nil
	}
	s.metrics.CacheMisses.Add(ctx, 1, s.metrics.Attrs(attribute.String("cache", "product")))

	start := time.Now()
	query := "SELECT " + productColumns + " FROM products WHERE id = ?"
	p, err := scanProduct(s.db.QueryRowContext(ctx, query, id))
	s.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil || isNoRows(err))
	if isNoRows(err) {
		return nil, notFound("product", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	if err := s.cache.Set(ctx, *p); err != nil {
		s.logger.Warn("product cache write failed", zap.Int64("product_id", id), zap.Error(err))
	}
	s.recordView(ctx, p)
	return p, nil
}

// CreateProduct adds a product to the catalog
func (s *ProductService) CreateProduct(ctx context.Context, req models.CreateProductRequest) (*models.Product, error) {
	switch {
	case strings.TrimSpace(req.Name) == "":
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	case strings.TrimSpace(req.SKU) == "":
		return nil, fmt.Errorf("%w: sku is required", ErrInvalidInput)
	case req.Price.IsNegative():
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	case req.Quantity < 0:
		return nil, fmt.Errorf("%w: quantity must not be negative", ErrInvalidInput)
	}

	start := time.Now()
	query := `INSERT INTO products (name, description, price, category, brand, sku, quantity)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	result, err := s.db.ExecContext(ctx, query, req.Name, req.Description, req.Price, req.Category, req.Brand, req.SKU, req.Quantity)
	s.metrics.RecordDBQuery(ctx, "INSERT", "products", query, start, err == nil)
	if err != nil {
		if isDuplicateEntry(err) {
			return nil, fmt.Errorf("%w: sku %q already exists", ErrInvalidInput, req.SKU)
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get product ID: %w", err)
	}

	s.logger.Info("product created", zap.Int64("product_id", id), zap.String("sku", req.SKU))

	now := time.Now().UTC()
	return &models.Product{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Brand:       req.Brand,
		SKU:         req.SKU,
		Quantity:    req.Quantity,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Restock adds qty units to a product and returns the new inventory level
func (s *ProductService) Restock(ctx context.Context, productID int64, qty int) (*models.Inventory, error) {
	if qty < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", ErrInvalidInput)
	}

	if err := s.inventory.Increment(ctx, s.db, productID, qty); err != nil {
		return nil, err
	}
	if err := s.cache.Delete(ctx, productID); err != nil {
		s.logger.Warn("failed to invalidate cached product", zap.Int64("product_id", productID), zap.Error(err))
	}

	s.logger.Info("product restocked", zap.Int64("product_id", productID), zap.Int("quantity", qty))
	return s.GetInventory(ctx, productID)
}

// GetInventory returns the available quantity of a product
func (s *ProductService) GetInventory(ctx context.Context, productID int64) (*models.Inventory, error) {
	start := time.Now()
	query := "SELECT id, quantity, updated_at FROM products WHERE id = ?"
	var inv models.Inventory
	err := s.db.QueryRowContext(ctx, query, productID).Scan(&inv.ProductID, &inv.Quantity, &inv.UpdatedAt)
	s.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil || isNoRows(err))
	if isNoRows(err) {
		return nil, notFound("product", productID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory: %w", err)
	}

	s.metrics.InventoryLevel.Record(ctx, int64(inv.Quantity), s.metrics.Attrs(attribute.Int64("product_id", productID)))
	return &inv, nil
}

func (s *ProductService) recordView(ctx context.Context, p *models.Product) {
	s.metrics.ProductsViewed.Add(ctx, 1, s.metrics.Attrs(
		attribute.Int64("product_id", p.ID),
		attribute.String("product_category", p.Category),
	))
}

func scanProduct(row rowScanner) (*models.Product, error) {
	var p models.Product
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &p.Brand,
		&p.SKU, &p.Quantity, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
