package api

import (
	"net/http"

	"github.com/SigNoz/storefront-go-app/internal/models"
)

type productRequest struct {
	ProductID int64 `json:"product_id"`
}

// GetCartHandler handles GET /api/v1/cart
func (a *App) GetCartHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	cart, err := a.cartService.GetCart(r.Context(), userID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, cart)
}

// AddToCartHandler handles POST /api/v1/cart/add
func (a *App) AddToCartHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.AddToCartRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	if err := a.cartService.AddToCart(r.Context(), userID, req.ProductID, req.Quantity); err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "added"})
}

// UpdateCartHandler handles POST /api/v1/cart/update
func (a *App) UpdateCartHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.AddToCartRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := a.cartService.UpdateQuantity(r.Context(), userID, req.ProductID, req.Quantity); err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// RemoveFromCartHandler handles POST /api/v1/cart/remove
func (a *App) RemoveFromCartHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req productRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := a.cartService.RemoveFromCart(r.Context(), userID, req.ProductID); err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// GetWishlistHandler handles GET /api/v1/wishlist
func (a *App) GetWishlistHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	items, err := a.wishlistService.List(r.Context(), userID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

// AddToWishlistHandler handles POST /api/v1/wishlist/add
func (a *App) AddToWishlistHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req productRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := a.wishlistService.Add(r.Context(), userID, req.ProductID); err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "added"})
}

// RemoveFromWishlistHandler handles POST /api/v1/wishlist/remove
func (a *App) RemoveFromWishlistHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req productRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := a.wishlistService.Remove(r.Context(), userID, req.ProductID); err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}
