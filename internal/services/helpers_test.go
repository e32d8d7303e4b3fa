package services

import (
	"context"
	"database/sql/driver"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SigNoz/storefront-go-app/internal/cache"
	"github.com/SigNoz/storefront-go-app/internal/db"
	"github.com/SigNoz/storefront-go-app/internal/events"
	"github.com/SigNoz/storefront-go-app/internal/metrics"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

var fixedNow = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type testEnv struct {
	db        *db.DB
	mock      sqlmock.Sqlmock
	metrics   *metrics.AppMetrics
	logger    *zap.Logger
	publisher *recordingPublisher
	cache     *cache.Memory
	carts     *CartService
	inventory *InventoryLedger
	payments  *PaymentService
	orders    *OrderService
	products  *ProductService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	m, err := metrics.NewAppMetrics(noop.NewMeterProvider().Meter("test"), "storefront-test")
	require.NoError(t, err)

	env := &testEnv{
		db:        db.Wrap(sqlDB, zaptest.NewLogger(t)),
		mock:      mock,
		metrics:   m,
		logger:    zaptest.NewLogger(t),
		publisher: &recordingPublisher{},
		cache:     cache.NewMemory(time.Minute),
	}
	env.carts = NewCartService(env.db, m, env.logger)
	env.inventory = NewInventoryLedger(m)
	env.payments = NewPaymentService(env.db, m, env.logger, env.publisher)
	env.payments.clock = func() time.Time { return fixedNow }
	env.orders = NewOrderService(env.db, m, env.logger, env.carts, env.inventory, env.payments, env.publisher, env.cache)
	env.orders.clock = func() time.Time { return fixedNow }
	env.products = NewProductService(env.db, m, env.logger, env.cache, env.inventory)
	return env
}

func (e *testEnv) verify(t *testing.T) {
	t.Helper()
	require.NoError(t, e.mock.ExpectationsWereMet())
}

var orderRowColumns = []string{
	"id", "user_id", "order_number", "status", "payment_status", "payment_method",
	"subtotal", "tax", "shipping", "discount", "total", "shipping_address", "billing_address", "notes",
	"shipped_at", "delivered_at", "created_at", "updated_at",
}

const testShippingAddress = `{"name":"Ada","email":"ada@example.com","phone":"555-0100","address":"1 Main St","city":"Springfield","state":"IL","postal_code":"62701","country":"US"}`

type orderRow struct {
	id            int64
	userID        int64
	status        string
	paymentStatus string
	method        string
	shippedAt     any
}

func (r orderRow) values() []driver.Value {
	return []driver.Value{
		r.id, r.userID, "ORD-20261015-000001", r.status, r.paymentStatus, r.method,
		"25.00", "2.00", "3.00", "0.00", "30.00", testShippingAddress, nil, nil,
		r.shippedAt, nil, fixedNow, fixedNow,
	}
}

func orderRows(rows ...orderRow) *sqlmock.Rows {
	out := sqlmock.NewRows(orderRowColumns)
	for _, r := range rows {
		out.AddRow(r.values()...)
	}
	return out
}

func orderItemRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "order_id", "product_id", "product_name", "quantity", "unit_price", "line_total"}).
		AddRow(int64(1), int64(42), int64(1), "Widget", 2, "10.00", "20.00").
		AddRow(int64(2), int64(42), int64(2), "Gadget", 1, "5.00", "5.00")
}
