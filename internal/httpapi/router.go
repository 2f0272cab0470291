package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter assembles the public API surface. Handlers hold no business
// logic; everything behind them is a domain service.
func NewRouter(products *ProductHandler, carts *CartHandler, orders *OrdersHandler, requestTimeout time.Duration) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(SessionMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", products.ListProducts)
			r.Get("/{id}", products.GetProduct)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", carts.GetCart)
			r.Delete("/", carts.ClearCart)
			r.Post("/items", carts.AddItem)
			r.Put("/items/{product_id}", carts.UpdateQuantity)
			r.Delete("/items/{product_id}", carts.RemoveItem)
			r.Post("/coupon", orders.ApplyCoupon)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", orders.FindOrders)
			r.Post("/", orders.PlaceOrder)
			r.Get("/preview", orders.Preview)
			r.Get("/{order_id}", orders.GetOrder)
			r.Post("/{order_id}/cancel", orders.CancelOrder)
			r.Put("/{order_id}/status", orders.UpdateStatus)
		})
	})

	return r
}
