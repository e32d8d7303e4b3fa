package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration from environment variables
type Config struct {
	// Application
	AppPort   string
	LogLevel  string
	LogFormat string // json or console

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Kafka; no brokers disables order event publishing
	KafkaBrokers    []string
	KafkaOrderTopic string

	// Product cache; an empty address selects the in-process cache
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	ProductCacheTTL time.Duration

	// OpenTelemetry
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPProtocol  string
	OTELExporterOTLPHeaders   string // For SigNoz Cloud: signoz-ingestion-key=<key>
	OTELExporterOTLPInsecure  bool   // true for http://, false for https://
	OTELServiceName           string
	OTELServiceVersion        string
	OTELDeploymentEnvironment string
	OTELResourceAttributes    string
}

// LoadConfig loads configuration from .env file and environment variables with defaults
func LoadConfig() *Config {
	// .env is optional; only complain about real read errors
	if err := godotenv.Load(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	}

	return &Config{
		AppPort:   getEnv("APP_PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: getEnv("DB_PASSWORD", "password"),
		DBName:     getEnv("DB_NAME", "storefront"),

		KafkaBrokers:    getEnvList("KAFKA_BROKERS"),
		KafkaOrderTopic: getEnv("KAFKA_ORDER_TOPIC", "order_events"),

		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		ProductCacheTTL: getEnvDuration("PRODUCT_CACHE_TTL", 5*time.Minute),

		OTELExporterOTLPEndpoint:  getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		OTELExporterOTLPProtocol:  getEnv("OTEL_EXPORTER_OTLP_PROTOCOL", "http/protobuf"),
		OTELExporterOTLPHeaders:   getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
		OTELExporterOTLPInsecure:  getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELServiceName:           getEnv("OTEL_SERVICE_NAME", "storefront-go-app"),
		OTELServiceVersion:        getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
		OTELDeploymentEnvironment: getEnv("OTEL_DEPLOYMENT_ENVIRONMENT", "development"),
		OTELResourceAttributes:    getEnv("OTEL_RESOURCE_ATTRIBUTES", ""),
	}
}

// GetDSN returns the MySQL DSN string.
// clientFoundRows makes RowsAffected report matched rows, so an UPDATE that
// leaves a row unchanged is not mistaken for a missing row.
func (c *Config) GetDSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName +
		"?parseTime=true&charset=utf8mb4&clientFoundRows=true"
}

// GetAppPortInt returns the application port as an integer
func (c *Config) GetAppPortInt() int {
	port, err := strconv.Atoi(c.AppPort)
	if err != nil {
		return 8080
	}
	return port
}

// KafkaEnabled reports whether order events should be published
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if value == "true" || value == "1" || value == "yes" {
			return true
		}
		return false
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
