package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/SigNoz/storefront-go-app/internal/metrics"
	"github.com/SigNoz/storefront-go-app/internal/models"
	"github.com/SigNoz/storefront-go-app/internal/services"
	"github.com/gorilla/mux"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// UserIDHeader carries the caller's user id when it is not in the query string
const UserIDHeader = "X-User-ID"

// ErrMissingUserID is returned when a request does not identify its user
var ErrMissingUserID = errors.New("user_id is required")

// MetricsMiddleware records HTTP request metrics
func MetricsMiddleware(m *metrics.AppMetrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := wrap(w)

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Milliseconds()
			ctx := r.Context()
			attrs := []attribute.KeyValue{
				attribute.String("http.method", r.Method),
				attribute.String("http.route", routePattern(r)),
				attribute.Int("http.status_code", rw.statusCode),
			}

			m.HTTPRequestsTotal.Add(ctx, 1, m.Attrs(attrs...))
			if rw.statusCode >= 400 {
				m.HTTPRequestsErrors.Add(ctx, 1, m.Attrs(attrs...))
			}
			m.HTTPRequestDuration.Record(ctx, float64(duration), m.Attrs(attrs...))

			if uid, err := UserID(r); err == nil {
				m.ActiveUsersCount.Record(ctx, 1, m.Attrs(
					attribute.String("session_type", "active"),
					attribute.Int64("user_id", uid),
				))
			}
		})
	}
}

// LoggingMiddleware writes one structured log line per request
func LoggingMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := wrap(w)

			next.ServeHTTP(rw, r)

			traceID := ""
			if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
				traceID = sc.TraceID().String()
			}

			fields := []zap.Field{
				zap.String("request_id", RequestID(r.Context())),
				zap.String("trace_id", traceID),
				zap.String("method", r.Method),
				zap.String("route", routePattern(r)),
				zap.String("path", r.URL.Path),
				zap.Int("status", rw.statusCode),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
			}
			switch {
			case rw.statusCode >= 500:
				logger.Error("HTTP request", fields...)
			case rw.statusCode >= 400:
				logger.Warn("HTTP request", fields...)
			default:
				logger.Info("HTTP request", fields...)
			}
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func wrap(w http.ResponseWriter) *responseWriter {
	if rw, ok := w.(*responseWriter); ok {
		return rw
	}
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// TraceContextMiddleware continues the caller's trace context from the
// request headers so logs and published events share its trace id
func TraceContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDMiddleware adds a request ID to the context
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = ulid.Make().String()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID returns the request ID stored by RequestIDMiddleware
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// CORSMiddleware adds CORS headers
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, "+UserIDHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RecoveryMiddleware turns a panic into a JSON 500 response
func RecoveryMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rec),
						zap.String("request_id", RequestID(r.Context())),
						zap.String("path", r.URL.Path),
						zap.Stack("stack"),
					)
					WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RoleResolver looks up the role of a user
type RoleResolver interface {
	RoleOf(ctx context.Context, userID int64) (models.Role, error)
}

// RequireRole only lets through callers whose role is one of allowed
func RequireRole(resolver RoleResolver, logger *zap.Logger, allowed ...models.Role) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := UserID(r)
			if err != nil {
				WriteError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
				return
			}

			role, err := resolver.RoleOf(r.Context(), userID)
			if services.IsNotFound(err) {
				// unknown users are treated like users without the role
				WriteError(w, http.StatusForbidden, "forbidden", "insufficient role")
				return
			}
			if err != nil {
				logger.Error("role lookup failed",
					zap.Int64("user_id", userID),
					zap.String("request_id", RequestID(r.Context())),
					zap.Error(err),
				)
				WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error")
				return
			}
			for _, a := range allowed {
				if role == a {
					next.ServeHTTP(w, r)
					return
				}
			}
			WriteError(w, http.StatusForbidden, "forbidden", "insufficient role")
		})
	}
}

// UserID resolves the caller from the user_id query parameter or the X-User-ID header
func UserID(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("user_id")
	if raw == "" {
		raw = r.Header.Get(UserIDHeader)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrMissingUserID
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("user_id must be a positive integer")
	}
	return id, nil
}

// WriteError writes the JSON error envelope used by every endpoint
func WriteError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message, "code": code})
}

func routePattern(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unknown"
}
