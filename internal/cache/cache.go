// Package cache holds read-through caches for catalog data.
package cache

import (
	"context"

	"github.com/SigNoz/storefront-go-app/internal/models"
)

// ProductCache caches products by id. Entries carry the available quantity,
// so writers of products.quantity delete the entries they touched.
type ProductCache interface {
	Get(ctx context.Context, id int64) (models.Product, bool, error)
	Set(ctx context.Context, product models.Product) error
	Delete(ctx context.Context, ids ...int64) error
}
