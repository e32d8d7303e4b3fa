package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SigNoz/storefront-go-app/internal/api"
	"github.com/SigNoz/storefront-go-app/internal/cache"
	"github.com/SigNoz/storefront-go-app/internal/db"
	"github.com/SigNoz/storefront-go-app/internal/events"
	"github.com/SigNoz/storefront-go-app/internal/logging"
	"github.com/SigNoz/storefront-go-app/internal/metrics"
	"github.com/SigNoz/storefront-go-app/internal/services"
	"github.com/SigNoz/storefront-go-app/pkg/config"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.OTELServiceName)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// W3C trace context flows from incoming requests into Kafka headers
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	// Initialize OpenTelemetry metrics
	appMetrics, meterProvider, err := metrics.InitMetrics(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize metrics", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			logger.Error("error shutting down meter provider", zap.Error(err))
		}
	}()

	// Initialize database
	database, err := db.NewDB(cfg.GetDSN(), cfg.OTELServiceName, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	schemaSQL, err := os.ReadFile("schema.sql")
	if err != nil {
		logger.Warn("could not read schema.sql, assuming schema exists", zap.Error(err))
	} else if err := database.InitSchema(ctx, string(schemaSQL)); err != nil {
		logger.Warn("could not initialize schema, assuming schema exists", zap.Error(err))
	}

	productCache, closeCache := newProductCache(ctx, cfg, logger)
	defer closeCache()

	publisher, closePublisher := newPublisher(cfg, logger)
	defer closePublisher()

	// Initialize services
	inventory := services.NewInventoryLedger(appMetrics)
	cartService := services.NewCartService(database, appMetrics, logger)
	paymentService := services.NewPaymentService(database, appMetrics, logger, publisher)
	app := api.NewApp(logger, appMetrics,
		services.NewProductService(database, appMetrics, logger, productCache, inventory),
		cartService,
		services.NewWishlistService(database, appMetrics, logger),
		services.NewOrderService(database, appMetrics, logger, cartService, inventory, paymentService, publisher, productCache),
		paymentService,
		services.NewUserService(database, appMetrics, logger),
	)

	go cartService.MonitorActiveCarts(ctx, 30*time.Second)

	router := mux.NewRouter()
	app.SetupRoutes(router)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.String("port", cfg.AppPort),
			zap.String("otlp_endpoint", cfg.OTELExporterOTLPEndpoint),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}

// newProductCache prefers Redis and falls back to the in-process cache
func newProductCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (cache.ProductCache, func()) {
	if cfg.RedisAddr == "" {
		return cache.NewMemory(cfg.ProductCacheTTL), func() {}
	}

	rdb, err := cache.InitRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
	if err != nil {
		logger.Warn("redis unavailable, using in-process product cache", zap.Error(err))
		return cache.NewMemory(cfg.ProductCacheTTL), func() {}
	}
	return cache.NewRedis(rdb, cfg.ProductCacheTTL), func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis client", zap.Error(err))
		}
	}
}

// newPublisher returns a Kafka publisher, or a no-op one when no brokers are configured
func newPublisher(cfg *config.Config, logger *zap.Logger) (events.Publisher, func()) {
	if !cfg.KafkaEnabled() {
		logger.Info("kafka brokers not configured, order events are dropped")
		return events.Nop{}, func() {}
	}

	producer, err := events.NewSyncProducer(cfg.KafkaBrokers, logger)
	if err != nil {
		logger.Warn("kafka unavailable, order events are dropped", zap.Error(err))
		return events.Nop{}, func() {}
	}

	kafka := events.NewKafka(producer, cfg.KafkaOrderTopic, logger)
	return kafka, func() {
		if err := kafka.Close(); err != nil {
			logger.Warn("error closing kafka producer", zap.Error(err))
		}
	}
}
