package api

import (
	"net/http"

	"shop/internal/api/middleware"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func NewRouter(h *Handlers, redisClient *redis.Client) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Checkout is the atomic "mark checked out + enqueue fact" edge.
	r.With(middleware.Idempotency(redisClient)).Post("/baskets/{id}/checkout", h.CheckoutBasket)

	r.With(middleware.Idempotency(redisClient)).Delete("/orders/{id}", h.DeleteOrder)
	r.Get("/orders/{id}", h.GetOrder)
	r.Get("/orders/{id}/trace", h.GetTrace)

	r.Handle("/metrics", promhttp.Handler())

	return r
}
