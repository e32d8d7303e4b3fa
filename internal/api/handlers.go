package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/SigNoz/storefront-go-app/internal/metrics"
	"github.com/SigNoz/storefront-go-app/internal/middleware"
	"github.com/SigNoz/storefront-go-app/internal/models"
	"github.com/SigNoz/storefront-go-app/internal/services"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// App holds application dependencies
type App struct {
	logger          *zap.Logger
	metrics         *metrics.AppMetrics
	productService  *services.ProductService
	cartService     *services.CartService
	wishlistService *services.WishlistService
	orderService    *services.OrderService
	paymentService  *services.PaymentService
	userService     *services.UserService
}

// NewApp creates a new application instance
func NewApp(
	logger *zap.Logger,
	m *metrics.AppMetrics,
	ps *services.ProductService,
	cs *services.CartService,
	ws *services.WishlistService,
	os *services.OrderService,
	pay *services.PaymentService,
	us *services.UserService,
) *App {
	return &App{
		logger:          logger,
		metrics:         m,
		productService:  ps,
		cartService:     cs,
		wishlistService: ws,
		orderService:    os,
		paymentService:  pay,
		userService:     us,
	}
}

// SetupRoutes configures the HTTP routes
func (a *App) SetupRoutes(r *mux.Router) {
	r.Use(middleware.TraceContextMiddleware)
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.LoggingMiddleware(a.logger))
	r.Use(middleware.CORSMiddleware)
	r.Use(middleware.RecoveryMiddleware(a.logger))
	r.Use(middleware.MetricsMiddleware(a.metrics))

	api := r.PathPrefix("/api/v1").Subrouter()

	// Products
	api.HandleFunc("/products", a.ListProductsHandler).Methods(http.MethodGet)
	api.HandleFunc("/products/{id:[0-9]+}", a.GetProductHandler).Methods(http.MethodGet)
	api.HandleFunc("/products/{id:[0-9]+}/inventory", a.GetProductInventoryHandler).Methods(http.MethodGet)

	// Cart
	api.HandleFunc("/cart", a.GetCartHandler).Methods(http.MethodGet)
	api.HandleFunc("/cart/add", a.AddToCartHandler).Methods(http.MethodPost)
	api.HandleFunc("/cart/update", a.UpdateCartHandler).Methods(http.MethodPost)
	api.HandleFunc("/cart/remove", a.RemoveFromCartHandler).Methods(http.MethodPost)

	// Wishlist
	api.HandleFunc("/wishlist", a.GetWishlistHandler).Methods(http.MethodGet)
	api.HandleFunc("/wishlist/add", a.AddToWishlistHandler).Methods(http.MethodPost)
	api.HandleFunc("/wishlist/remove", a.RemoveFromWishlistHandler).Methods(http.MethodPost)

	// Orders
	api.HandleFunc("/orders", a.CreateOrderHandler).Methods(http.MethodPost)
	api.HandleFunc("/orders", a.ListOrdersHandler).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id:[0-9]+}", a.GetOrderHandler).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id:[0-9]+}/payments", a.ProcessPaymentHandler).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id:[0-9]+}/payments", a.ListPaymentsHandler).Methods(http.MethodGet)

	// Users
	api.HandleFunc("/users", a.CreateUserHandler).Methods(http.MethodPost)
	api.HandleFunc("/users/{id:[0-9]+}", a.GetUserHandler).Methods(http.MethodGet)

	// Back-office: support may read, admins and managers may also write
	admin := r.PathPrefix("/admin").Subrouter()
	readers := middleware.RequireRole(a.userService, a.logger, models.RoleAdmin, models.RoleManager, models.RoleSupport)
	writers := middleware.RequireRole(a.userService, a.logger, models.RoleAdmin, models.RoleManager)
	admin.Handle("/orders", readers(http.HandlerFunc(a.AdminListOrdersHandler))).Methods(http.MethodGet)
	admin.Handle("/orders/{id:[0-9]+}", readers(http.HandlerFunc(a.AdminGetOrderHandler))).Methods(http.MethodGet)
	admin.Handle("/orders/{id:[0-9]+}/status", writers(http.HandlerFunc(a.UpdateOrderStatusHandler))).Methods(http.MethodPut)
	admin.Handle("/orders/{id:[0-9]+}/payment-status", writers(http.HandlerFunc(a.UpdatePaymentStatusHandler))).Methods(http.MethodPut)
	admin.Handle("/orders/{id:[0-9]+}/refund", writers(http.HandlerFunc(a.RefundOrderHandler))).Methods(http.MethodPost)
	admin.Handle("/products", writers(http.HandlerFunc(a.CreateProductHandler))).Methods(http.MethodPost)
	admin.Handle("/products/{id:[0-9]+}/restock", writers(http.HandlerFunc(a.RestockProductHandler))).Methods(http.MethodPost)

	// Health
	r.HandleFunc("/health", a.HealthHandler).Methods(http.MethodGet)
}

// HealthHandler handles health check requests
func (a *App) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ListProductsHandler handles GET /api/v1/products
func (a *App) ListProductsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := pagination(r, 20)

	products, err := a.productService.ListProducts(r.Context(), services.ProductFilter{
		Category: q.Get("category"),
		Brand:    q.Get("brand"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, products)
}

// GetProductHandler handles GET /api/v1/products/{id}
func (a *App) GetProductHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	product, err := a.productService.GetProduct(r.Context(), id)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

// GetProductInventoryHandler handles GET /api/v1/products/{id}/inventory
func (a *App) GetProductInventoryHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	inventory, err := a.productService.GetInventory(r.Context(), id)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, inventory)
}

// CreateProductHandler handles POST /admin/products
func (a *App) CreateProductHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProductRequest
	if !decodeBody(w, r, &req) {
		return
	}

	product, err := a.productService.CreateProduct(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, product)
}

// RestockProductHandler handles POST /admin/products/{id}/restock
func (a *App) RestockProductHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	inventory, err := a.productService.Restock(r.Context(), id, req.Quantity)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, inventory)
}

// CreateUserHandler handles POST /api/v1/users
func (a *App) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := a.userService.CreateUser(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// GetUserHandler handles GET /api/v1/users/{id}
func (a *App) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	user, err := a.userService.GetUser(r.Context(), id)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func pagination(r *http.Request, defaultLimit int) (limit, offset int) {
	limit = defaultLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid_id", "invalid id")
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return false
	}
	return true
}

// currentUser resolves the caller or writes a 401
func currentUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := middleware.UserID(r)
	if err != nil {
		middleware.WriteError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
		return 0, false
	}
	return userID, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
