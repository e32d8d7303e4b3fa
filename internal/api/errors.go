package api

import (
	"errors"
	"net/http"

	"github.com/SigNoz/storefront-go-app/internal/middleware"
	"github.com/SigNoz/storefront-go-app/internal/services"
	"go.uber.org/zap"
)

type insufficientInventoryBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	ProductID int64  `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// writeServiceError maps service errors onto HTTP statuses
func (a *App) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var shortage *services.InsufficientInventoryError
	var notFound *services.NotFoundError

	switch {
	case errors.As(err, &shortage):
		writeJSON(w, http.StatusConflict, insufficientInventoryBody{
			Error:     shortage.Error(),
			Code:      "insufficient_inventory",
			ProductID: shortage.ProductID,
			Requested: shortage.Requested,
			Available: shortage.Available,
		})
	case errors.As(err, &notFound):
		middleware.WriteError(w, http.StatusNotFound, "not_found", notFound.Error())
	case errors.Is(err, services.ErrEmptyCart):
		middleware.WriteError(w, http.StatusBadRequest, "empty_cart", err.Error())
	case errors.Is(err, services.ErrInvalidInput):
		middleware.WriteError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, services.ErrInvalidStatus):
		middleware.WriteError(w, http.StatusBadRequest, "invalid_status", err.Error())
	case errors.Is(err, services.ErrInvalidPaymentStatus):
		middleware.WriteError(w, http.StatusBadRequest, "invalid_payment_status", err.Error())
	case errors.Is(err, services.ErrInvalidPaymentMethod):
		middleware.WriteError(w, http.StatusBadRequest, "invalid_payment_method", err.Error())
	case errors.Is(err, services.ErrRefundRequiresRefundOrder):
		middleware.WriteError(w, http.StatusBadRequest, "use_refund", err.Error())
	case errors.Is(err, services.ErrAlreadyRefunded):
		middleware.WriteError(w, http.StatusConflict, "already_refunded", err.Error())
	case errors.Is(err, services.ErrUserExists):
		middleware.WriteError(w, http.StatusConflict, "user_exists", err.Error())
	default:
		a.logger.Error("request failed",
			zap.String("request_id", middleware.RequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		middleware.WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
