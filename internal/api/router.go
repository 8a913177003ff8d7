package api

import (
	"log/slog"
	"net/http"

	"github.com/Priya8975/price-tracker/internal/catalog"
	"github.com/Priya8975/price-tracker/internal/monitor"
	"github.com/Priya8975/price-tracker/internal/pricing"
	"github.com/Priya8975/price-tracker/internal/store"
	"github.com/Priya8975/price-tracker/internal/subscription"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the services the router exposes.
type Deps struct {
	Catalog       *catalog.Service
	Pricing       *pricing.Service
	Subscriptions *subscription.Service
	Monitor       *monitor.Service
	Stats         store.StatsReader
	Queue         QueueDepther
	Breaker       BreakerReader
	MailRelay     string
	Hub           LiveFeed
	HealthChecks  map[string]Pinger
	Logger        *slog.Logger
}

// LiveFeed serves the dashboard websocket.
type LiveFeed interface {
	ClientCounter
	HandleWebSocket(w http.ResponseWriter, r *http.Request)
}

// NewRouter creates and configures the HTTP router.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// CORS for dashboard
	r.Use(corsMiddleware)

	productHandler := NewProductHandler(d.Catalog, d.Logger)
	priceHandler := NewPriceHandler(d.Pricing, d.Logger)
	subHandler := NewSubscriptionHandler(d.Subscriptions, d.Logger)
	taskHandler := NewTaskHandler(d.Monitor, d.Logger)
	dashHandler := NewDashboardHandler(d.Stats, d.Queue, d.Breaker, d.MailRelay, d.Hub, d.Logger)

	r.Get("/ws", d.Hub.HandleWebSocket)
	r.Handle("/metrics", promhttp.Handler())

	// Targets of the links in subscription emails.
	r.Get("/subscriptions/{id}/unsubscribe", subHandler.Unsubscribe)
	r.Get("/subscriptions/{id}/subscribe", subHandler.Subscribe)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler(d.HealthChecks))

		r.Route("/products", func(r chi.Router) {
			r.Post("/", productHandler.Create)
			r.Get("/", productHandler.List)
			r.Get("/search", productHandler.Search)
			r.Get("/{id}", productHandler.Get)
			r.Post("/{id}/refresh", productHandler.Refresh)
			r.Delete("/{id}", productHandler.Delete)

			r.Post("/{id}/prices", priceHandler.Check)
			r.Get("/{id}/prices", priceHandler.History)

			r.Post("/{id}/subscribers", subHandler.Subscribe)
			r.Delete("/{id}/subscribers", subHandler.Unsubscribe)
			r.Get("/{id}/subscribers", subHandler.ListByProduct)
		})

		r.Route("/prices", func(r chi.Router) {
			r.Post("/check", priceHandler.CheckAll)
			r.Get("/", priceHandler.List)
			r.Delete("/", priceHandler.Purge)
			r.Delete("/{id}", priceHandler.Delete)
		})

		r.Get("/subscribers", subHandler.List)

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", taskHandler.List)
			r.Delete("/", taskHandler.Purge)
			r.Get("/count", taskHandler.Count)
			r.Post("/retry-failed", taskHandler.RetryFailed)
			r.Get("/{id}", taskHandler.Get)
			r.Post("/{id}/retry", taskHandler.Retry)
		})

		r.Get("/metrics", dashHandler.Metrics)
	})

	return r
}

// corsMiddleware adds CORS headers for dashboard development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
