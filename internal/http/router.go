package http

import (
	"net/http"

	"github.com/fjod/go_cart/cart-engine/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// NewRouter wires the cart API. The events stream is kept out of the
// timeout and compression middleware since it is long-lived.
func NewRouter(h *CartHandler, authenticator *auth.Authenticator, l *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(l))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(authenticator.Middleware(func(w http.ResponseWriter, _ *http.Request, err error) {
			handleError(w, err)
		}))

		r.Get("/events", h.Events)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(h.timeout))
			r.Use(middleware.Compress(5))

			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Post("/items", h.AddItem)
			r.Put("/items/{line_id}", h.UpdateQuantity)
			r.Delete("/items/{line_id}", h.RemoveItem)
			r.Get("/contains", h.Contains)
			r.Get("/checkout", h.CheckoutSummary)
			r.Post("/checkout", h.CreateOrderRequest)
		})
	})

	return otelhttp.NewHandler(r, "cart-engine")
}
