package http

import (
	"encoding/json"
	"net/http"

	"github.com/fjod/go_cart/cart-engine/internal/checkout"
)

// CheckoutSummary prices the current cart with shipping.
func (h *CartHandler) CheckoutSummary(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}

	summary, err := checkout.Summarize(e.Snapshot())
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// CreateOrderRequest builds the order request for the current cart. The cart
// is cleared later, when the checkout completion event arrives.
func (h *CartHandler) CreateOrderRequest(w http.ResponseWriter, r *http.Request) {
	var details checkout.OrderDetails
	if err := json.NewDecoder(r.Body).Decode(&details); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	e, ok := h.engine(w, r)
	if !ok {
		return
	}

	order, err := checkout.BuildOrder(e.Snapshot(), details)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}
