package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/auth"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/cart"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/metrics"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/order"
)

type RouterConfig struct {
	Cart    cart.Service
	Orders  order.Service
	Tokens  *auth.TokenManager
	Metrics *metrics.Metrics
	// Ping reports whether the database is reachable. Nil means always healthy.
	Ping func(ctx context.Context) error
}

func NewRouter(cfg RouterConfig) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	if cfg.Metrics != nil {
		router.Use(cfg.Metrics.Middleware)
		router.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	router.Get("/health", healthHandler(cfg.Ping))

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(cfg.Tokens.Authenticator(writeError))
		r.Use(auth.Require(auth.Authenticated(), writeError))

		NewCartHandler(cfg.Cart).RegisterRoutes(r)
		NewOrderHandler(cfg.Orders).RegisterRoutes(r)
	})

	return router
}

func healthHandler(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				log.Warn().Err(err).Msg("Health check failed")
				respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
