package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/auth"
	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/fjod/go_cart/cart-engine/internal/logger"
	"github.com/fjod/go_cart/cart-engine/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Carts is the part of service.CartService the handlers use.
// Consumers define this interface.
type Carts interface {
	Engine(ctx context.Context, sessionID string) (*service.Engine, error)
}

type CartHandler struct {
	carts   Carts
	timeout time.Duration
	logger  *zap.Logger
}

func NewCartHandler(carts Carts, timeout time.Duration, logger *zap.Logger) *CartHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartHandler{
		carts:   carts,
		timeout: timeout,
		logger:  logger,
	}
}

type AddItemRequestDTO struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Image     string          `json:"image,omitempty"`
	Currency  string          `json:"currency"`
	Color     string          `json:"color"`
	Size      string          `json:"size"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity"`
}

type ContainsResponseDTO struct {
	InCart bool `json:"inCart"`
}

// engine resolves the cart of the authenticated session.
func (h *CartHandler) engine(w http.ResponseWriter, r *http.Request) (*service.Engine, bool) {
	sessionID, ok := auth.SessionFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing session")
		return nil, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	e, err := h.carts.Engine(ctx, sessionID)
	if err != nil {
		logger.WithTrace(r.Context(), h.logger).Warn("cart lookup failed",
			zap.String("session_id", sessionID), zap.Error(err))
		handleError(w, err)
		return nil, false
	}
	return e, true
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, e.Snapshot())
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Currency == "" {
		req.Currency = domain.DefaultCurrency
	}

	e, ok := h.engine(w, r)
	if !ok {
		return
	}

	snapshot, err := e.AddItem(domain.LineItemInput{
		ProductID: strings.TrimSpace(req.ProductID),
		Name:      req.Name,
		Image:     req.Image,
		Currency:  req.Currency,
		Color:     req.Color,
		Size:      req.Size,
		UnitPrice: req.UnitPrice,
		Quantity:  req.Quantity,
	})
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, snapshot)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	lineID := chi.URLParam(r, "line_id")

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity == nil {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity is required")
		return
	}

	e, ok := h.engine(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, e.UpdateQuantity(lineID, *req.Quantity))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	lineID := chi.URLParam(r, "line_id")

	e, ok := h.engine(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, e.RemoveItem(lineID))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, e.Clear())
}

func (h *CartHandler) Contains(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	productID := q.Get("product_id")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	e, ok := h.engine(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, ContainsResponseDTO{
		InCart: e.IsInCart(productID, q.Get("color"), q.Get("size")),
	})
}
