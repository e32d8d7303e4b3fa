package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/SigNoz/storefront-go-app/pkg/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
)

// exportInterval is how often the periodic reader pushes to the collector
const exportInterval = 10 * time.Second

// AppMetrics holds all application metrics
type AppMetrics struct {
	// HTTP Metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestsErrors  metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	// Database Metrics
	DBQueriesTotal  metric.Int64Counter
	DBQueryDuration metric.Float64Histogram

	// Business Metrics
	OrdersCreated      metric.Int64Counter
	OrderStatusChanges metric.Int64Counter
	RevenueTotal       metric.Float64Counter
	RefundsTotal       metric.Int64Counter
	RefundedAmount     metric.Float64Counter
	PaymentsRecorded   metric.Int64Counter
	InsufficientStock  metric.Int64Counter
	ProductsViewed     metric.Int64Counter
	CartItemsCount     metric.Int64Gauge
	InventoryLevel     metric.Int64Gauge

	// Application Metrics
	ActiveUsersCount metric.Int64Gauge
	ActiveCartsCount metric.Int64Gauge
	CacheHits        metric.Int64Counter
	CacheMisses      metric.Int64Counter

	// Service name for adding to all metrics
	serviceName string
}

// InitMetrics sets up the OTLP/HTTP meter provider and the application instruments
func InitMetrics(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*AppMetrics, *sdkmetric.MeterProvider, error) {
	// Explicit attributes take precedence over OTEL_RESOURCE_ATTRIBUTES
	envRes, err := resource.New(ctx, resource.WithFromEnv())
	if err != nil {
		envRes = resource.Empty()
	}

	explicitRes, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.OTELServiceName),
			semconv.ServiceVersion(cfg.OTELServiceVersion),
			attribute.String("deployment.environment", cfg.OTELDeploymentEnvironment),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create explicit resource: %w", err)
	}

	res, err := resource.Merge(envRes, explicitRes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to merge resources: %w", err)
	}

	serviceName, ok := res.Set().Value(semconv.ServiceNameKey)
	if !ok || serviceName.AsString() == "" {
		return nil, nil, fmt.Errorf("service.name is not set in resource attributes")
	}

	// WithEndpoint expects host:port without a scheme
	exporterOpts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(cfg.OTELExporterOTLPEndpoint),
		otlpmetrichttp.WithURLPath("/v1/metrics"),
	}
	if cfg.OTELExporterOTLPHeaders != "" {
		exporterOpts = append(exporterOpts, otlpmetrichttp.WithHeaders(parseHeaders(cfg.OTELExporterOTLPHeaders)))
	}
	if cfg.OTELExporterOTLPInsecure {
		exporterOpts = append(exporterOpts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, exporterOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	logger.Info("metrics exporter configured",
		zap.String("endpoint", cfg.OTELExporterOTLPEndpoint),
		zap.String("path", "/v1/metrics"),
		zap.Bool("insecure", cfg.OTELExporterOTLPInsecure),
		zap.Int("headers", len(parseHeaders(cfg.OTELExporterOTLPHeaders))),
		zap.Duration("interval", exportInterval),
		zap.String("service_name", serviceName.AsString()),
	)

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))),
	)
	otel.SetMeterProvider(meterProvider)

	appMetrics, err := NewAppMetrics(meterProvider.Meter(cfg.OTELServiceName), cfg.OTELServiceName)
	if err != nil {
		return nil, nil, err
	}
	return appMetrics, meterProvider, nil
}

// NewAppMetrics creates every application instrument on meter
func NewAppMetrics(meter metric.Meter, serviceName string) (*AppMetrics, error) {
	// SigNoz default histogram buckets in milliseconds, expanded to 60s
	buckets := []float64{2, 4, 6, 8, 10, 50, 100, 200, 400, 800, 1000, 1400, 2000, 5000, 10000, 15000, 20000, 30000, 45000, 60000}

	m := &AppMetrics{serviceName: serviceName}
	var err error

	counters := []struct {
		dst         *metric.Int64Counter
		name        string
		description string
	}{
		{&m.HTTPRequestsTotal, "http.server.request.count", "Total number of HTTP requests"},
		{&m.HTTPRequestsErrors, "http.server.request.error.count", "Total number of HTTP error requests"},
		{&m.DBQueriesTotal, "db.client.queries.count", "Total number of database queries"},
		{&m.OrdersCreated, "orders_created_total", "Total number of orders created"},
		{&m.OrderStatusChanges, "order_status_changes_total", "Total number of order status transitions"},
		{&m.RefundsTotal, "orders_refunded_total", "Total number of refunded orders"},
		{&m.PaymentsRecorded, "payments_recorded_total", "Total number of payment ledger entries"},
		{&m.InsufficientStock, "checkout_insufficient_stock_total", "Checkouts rejected for insufficient inventory"},
		{&m.ProductsViewed, "products_viewed_total", "Total number of product views"},
		{&m.CacheHits, "cache_hits_total", "Total number of cache hits"},
		{&m.CacheMisses, "cache_misses_total", "Total number of cache misses"},
	}
	for _, c := range counters {
		if *c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.description), metric.WithUnit("1")); err != nil {
			return nil, fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
	}

	gauges := []struct {
		dst         *metric.Int64Gauge
		name        string
		description string
	}{
		{&m.CartItemsCount, "cart_items_count", "Current number of items in user carts"},
		{&m.InventoryLevel, "inventory_level", "Current inventory level for products"},
		{&m.ActiveUsersCount, "active_users_count", "Currently active users"},
		{&m.ActiveCartsCount, "active_carts_count", "Number of active carts with items"},
	}
	for _, g := range gauges {
		if *g.dst, err = meter.Int64Gauge(g.name, metric.WithDescription(g.description), metric.WithUnit("1")); err != nil {
			return nil, fmt.Errorf("failed to create %s gauge: %w", g.name, err)
		}
	}

	if m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(buckets...),
	); err != nil {
		return nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}

	if m.DBQueryDuration, err = meter.Float64Histogram(
		"db.client.queries.duration",
		metric.WithDescription("Database query duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(buckets...),
	); err != nil {
		return nil, fmt.Errorf("failed to create db duration histogram: %w", err)
	}

	if m.RevenueTotal, err = meter.Float64Counter(
		"revenue_total",
		metric.WithDescription("Total revenue generated"),
		metric.WithUnit("USD"),
	); err != nil {
		return nil, fmt.Errorf("failed to create revenue counter: %w", err)
	}

	if m.RefundedAmount, err = meter.Float64Counter(
		"refunded_amount_total",
		metric.WithDescription("Total amount refunded"),
		metric.WithUnit("USD"),
	); err != nil {
		return nil, fmt.Errorf("failed to create refunded amount counter: %w", err)
	}

	return m, nil
}

// WithServiceName adds service.name to attributes
func (m *AppMetrics) WithServiceName(attrs []attribute.KeyValue) []attribute.KeyValue {
	return append(attrs, attribute.String("service.name", m.serviceName))
}

// Attrs is shorthand for metric.WithAttributes(m.WithServiceName(attrs))
func (m *AppMetrics) Attrs(attrs ...attribute.KeyValue) metric.MeasurementOption {
	return metric.WithAttributes(m.WithServiceName(attrs)...)
}

// RecordDBQuery records database query metrics including the SQL statement
func (m *AppMetrics) RecordDBQuery(ctx context.Context, operation, table, statement string, start time.Time, success bool) {
	duration := time.Since(start).Milliseconds()

	status := "success"
	if !success {
		status = "error"
	}

	attrs := []attribute.KeyValue{
		attribute.String("db.operation", operation),
		attribute.String("db.sql.table", table),
		attribute.String("db.statement", statement),
		attribute.String("db.system", "mysql"),
		attribute.String("status", status),
	}

	m.DBQueriesTotal.Add(ctx, 1, metric.WithAttributes(m.WithServiceName(attrs)...))
	m.DBQueryDuration.Record(ctx, float64(duration), metric.WithAttributes(m.WithServiceName(attrs)...))
}

// parseHeaders parses header string in format "key1=value1,key2=value2"
func parseHeaders(headerStr string) map[string]string {
	headers := make(map[string]string)
	if headerStr == "" {
		return headers
	}

	for _, pair := range strings.Split(headerStr, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) == 2 {
			headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return headers
}
