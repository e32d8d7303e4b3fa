package api

import (
	"net/http"

	"github.com/SigNoz/storefront-go-app/internal/models"
	"github.com/SigNoz/storefront-go-app/internal/services"
)

// CreateOrderHandler handles POST /api/v1/orders
func (a *App) CreateOrderHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var in models.CheckoutInput
	if !decodeBody(w, r, &in) {
		return
	}

	order, err := a.orderService.CreateOrder(r.Context(), userID, in)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// ListOrdersHandler handles GET /api/v1/orders
func (a *App) ListOrdersHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	orders, err := a.orderService.ListUserOrders(r.Context(), userID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

// GetOrderHandler handles GET /api/v1/orders/{id}
func (a *App) GetOrderHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r)
	if !ok {
		return
	}

	order, err := a.orderService.GetUserOrder(r.Context(), userID, orderID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// ProcessPaymentHandler handles POST /api/v1/orders/{id}/payments
func (a *App) ProcessPaymentHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r)
	if !ok {
		return
	}

	var data models.PaymentData
	if !decodeBody(w, r, &data) {
		return
	}

	// ownership check before touching the ledger
	if _, err := a.orderService.GetUserOrder(r.Context(), userID, orderID); err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	payment, err := a.paymentService.ProcessPayment(r.Context(), orderID, data)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, payment)
}

// ListPaymentsHandler handles GET /api/v1/orders/{id}/payments
func (a *App) ListPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r)
	if !ok {
		return
	}

	if _, err := a.orderService.GetUserOrder(r.Context(), userID, orderID); err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	payments, err := a.paymentService.ListPayments(r.Context(), orderID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, payments)
}

// AdminListOrdersHandler handles GET /admin/orders
func (a *App) AdminListOrdersHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 50)

	orders, err := a.orderService.ListOrders(r.Context(), services.OrderFilter{
		Status: models.OrderStatus(r.URL.Query().Get("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

// AdminGetOrderHandler handles GET /admin/orders/{id}
func (a *App) AdminGetOrderHandler(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r)
	if !ok {
		return
	}

	order, err := a.orderService.GetOrder(r.Context(), orderID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// UpdateOrderStatusHandler handles PUT /admin/orders/{id}/status
func (a *App) UpdateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		Status models.OrderStatus `json:"status"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	order, err := a.orderService.UpdateOrderStatus(r.Context(), orderID, req.Status)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// UpdatePaymentStatusHandler handles PUT /admin/orders/{id}/payment-status
func (a *App) UpdatePaymentStatusHandler(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		PaymentStatus models.PaymentStatus `json:"payment_status"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	order, err := a.orderService.UpdatePaymentStatus(r.Context(), orderID, req.PaymentStatus)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// RefundOrderHandler handles POST /admin/orders/{id}/refund
func (a *App) RefundOrderHandler(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r)
	if !ok {
		return
	}

	order, err := a.orderService.RefundOrder(r.Context(), orderID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}
