package httpapi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

type cartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type cartView struct {
	Lines    []domain.CartLine `json:"lines"`
	Subtotal decimal.Decimal   `json:"subtotal"`
}

func (h *handler) cartView() cartView {
	lines := h.Checkout.Cart()
	return cartView{Lines: lines, Subtotal: domain.Subtotal(lines)}
}

// getCart handles GET /api/v1/cart
func (h *handler) getCart(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, h.cartView())
}

// addCartItem handles POST /api/v1/cart/items. Без quantity добавляется одна штука.
func (h *handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if _, err := h.Checkout.Add(r.Context(), req.ProductID, req.Quantity); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeData(w, http.StatusOK, h.cartView())
}

// updateCartItem handles PUT /api/v1/cart/items/{productId}
func (h *handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if _, err := h.Checkout.Update(r.Context(), chi.URLParam(r, "productId"), req.Quantity); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeData(w, http.StatusOK, h.cartView())
}

// removeCartItem handles DELETE /api/v1/cart/items/{productId}
func (h *handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	if err := h.Checkout.Remove(r.Context(), chi.URLParam(r, "productId")); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeData(w, http.StatusOK, h.cartView())
}

// clearCart handles DELETE /api/v1/cart
func (h *handler) clearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.Checkout.Clear(r.Context()); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeData(w, http.StatusOK, h.cartView())
}

// cartTotals handles GET /api/v1/cart/totals?fee=
func (h *handler) cartTotals(w http.ResponseWriter, r *http.Request) {
	fee, err := serviceFee(r)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	totals, err := h.Checkout.Totals(fee)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeData(w, http.StatusOK, totals)
}

// serviceFee читает сбор из параметра fee; пустой параметр означает ноль.
func serviceFee(r *http.Request) (decimal.Decimal, error) {
	raw := r.URL.Query().Get("fee")
	if raw == "" {
		return decimal.Zero, nil
	}
	fee, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: invalid service fee %q", domain.ErrValidation, raw)
	}
	return fee, nil
}
