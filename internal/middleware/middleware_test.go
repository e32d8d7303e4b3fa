package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SigNoz/storefront-go-app/internal/models"
	"github.com/SigNoz/storefront-go-app/internal/services"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type staticRoles map[int64]models.Role

func (s staticRoles) RoleOf(_ context.Context, userID int64) (models.Role, error) {
	role, ok := s[userID]
	if !ok {
		return "", &services.NotFoundError{Resource: "user", ID: userID}
	}
	return role, nil
}

type failingRoles struct{}

func (failingRoles) RoleOf(context.Context, int64) (models.Role, error) {
	return "", errors.New("connection refused")
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func useTraceContext(t *testing.T) {
	t.Helper()
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })
}

func TestUserID(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		header  string
		want    int64
		wantErr bool
	}{
		{"query parameter", "/x?user_id=7", "", 7, false},
		{"header fallback", "/x", "8", 8, false},
		{"query wins over header", "/x?user_id=7", "8", 7, false},
		{"missing", "/x", "", 0, true},
		{"not a number", "/x?user_id=abc", "", 0, true},
		{"zero", "/x?user_id=0", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set(UserIDHeader, tt.header)
			}

			got, err := UserID(req)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTraceContextMiddleware(t *testing.T) {
	useTraceContext(t)

	core, logs := observer.New(zap.InfoLevel)
	var seen trace.SpanContext
	handler := TraceContextMiddleware(LoggingMiddleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = trace.SpanContextFromContext(r.Context())
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, seen.IsValid())
	assert.True(t, seen.IsRemote())
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", seen.TraceID().String())

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", logs.All()[0].ContextMap()["trace_id"])
}

func TestTraceContextMiddleware_NoHeader(t *testing.T) {
	useTraceContext(t)

	var seen trace.SpanContext
	handler := TraceContextMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = trace.SpanContextFromContext(r.Context())
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.False(t, seen.IsValid())
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 26)
	assert.Equal(t, seen, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "upstream-id")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, "upstream-id", seen)
}

func TestRequireRole(t *testing.T) {
	roles := staticRoles{1: models.RoleAdmin, 2: models.RoleSupport}
	router := mux.NewRouter()
	router.Handle("/admin", RequireRole(roles, zaptest.NewLogger(t), models.RoleAdmin, models.RoleManager)(http.HandlerFunc(okHandler)))

	tests := []struct {
		target string
		want   int
	}{
		{"/admin?user_id=1", http.StatusNoContent},
		{"/admin?user_id=2", http.StatusForbidden},
		{"/admin?user_id=3", http.StatusForbidden},
		{"/admin", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.target, nil))
		assert.Equal(t, tt.want, w.Code, tt.target)
	}
}

func TestRequireRole_LookupFailure(t *testing.T) {
	handler := RequireRole(failingRoles{}, zaptest.NewLogger(t), models.RoleAdmin)(http.HandlerFunc(okHandler))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin?user_id=1", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error","code":"internal_error"}`, w.Body.String())
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(zaptest.NewLogger(t))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error","code":"internal_error"}`, w.Body.String())
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	called := false
	handler := CORSMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, called)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), UserIDHeader)
}
