package services

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SigNoz/storefront-go-app/internal/models"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var productRowColumns = []string{"id", "name", "description", "price", "category", "brand", "sku", "quantity", "created_at", "updated_at"}

func TestGetProduct_ReadsThroughCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id = ?")).WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(productRowColumns).
			AddRow(int64(1), "Widget", "A widget", "10.00", "tools", "Acme", "W-1", 5, fixedNow, fixedNow))

	first, err := env.products.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Acme", first.Brand)

	// second read is served from the cache, no query expected
	second, err := env.products.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first.SKU, second.SKU)
	env.verify(t)
}

func TestGetProduct_NotFound(t *testing.T) {
	env := newTestEnv(t)

	env.mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id = ?")).
		WillReturnRows(sqlmock.NewRows(productRowColumns))

	_, err := env.products.GetProduct(context.Background(), 99)
	assert.True(t, IsNotFound(err))
	env.verify(t)
}

func TestListProducts_Filters(t *testing.T) {
	env := newTestEnv(t)

	env.mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE category = ? AND brand = ? ORDER BY id LIMIT ? OFFSET ?")).
		WithArgs("tools", "Acme", 20, 0).
		WillReturnRows(sqlmock.NewRows(productRowColumns).
			AddRow(int64(1), "Widget", "", "10.00", "tools", "Acme", "W-1", 5, fixedNow, fixedNow))

	products, err := env.products.ListProducts(context.Background(), ProductFilter{Category: "tools", Brand: "Acme"})
	require.NoError(t, err)
	assert.Len(t, products, 1)
	env.verify(t)
}

func TestCreateProduct(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := models.CreateProductRequest{Name: "Widget", Price: dec("10.00"), Category: "tools", SKU: "W-1", Quantity: 5}

	env.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO products")).
		WithArgs("Widget", "", dec("10.00"), "tools", "", "W-1", 5).
		WillReturnResult(sqlmock.NewResult(12, 1))
	env.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO products")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'W-1' for key 'uq_products_sku'"})

	product, err := env.products.CreateProduct(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(12), product.ID)

	_, err = env.products.CreateProduct(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidInput)

	req.Price = dec("-1")
	_, err = env.products.CreateProduct(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidInput)
	env.verify(t)
}

func TestRestock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.cache.Set(ctx, models.Product{ID: 1, Quantity: 0}))

	env.mock.ExpectExec(incrementQuery).WithArgs(10, int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	env.mock.ExpectQuery(regexp.QuoteMeta("SELECT id, quantity, updated_at FROM products WHERE id = ?")).WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "quantity", "updated_at"}).AddRow(int64(1), 10, fixedNow))

	inv, err := env.products.Restock(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, inv.Quantity)

	_, cached, _ := env.cache.Get(ctx, 1)
	assert.False(t, cached)

	_, err = env.products.Restock(ctx, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
	env.verify(t)
}

func TestGetInventory_DatabaseError(t *testing.T) {
	env := newTestEnv(t)

	env.mock.ExpectQuery(regexp.QuoteMeta("SELECT id, quantity, updated_at FROM products")).
		WillReturnError(errors.New("too many connections"))

	_, err := env.products.GetInventory(context.Background(), 1)
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
	env.verify(t)
}
