package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gastcinema/seat-reservations/internal/auth"
	"github.com/gastcinema/seat-reservations/internal/observability"
	"github.com/gastcinema/seat-reservations/internal/rateLimit"
)

func SetupRouter(h *Handlers, logger observability.Logger, a *auth.Authenticator, rl *rateLimit.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)

	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	// Catalog browsing and the seat map are public; only seat mutations and
	// account-scoped reads need an identity.
	r.Get("/v1/movies/{id}", h.GetMovie)
	r.Get("/v1/movies/{id}/showtimes", h.ListShowtimes)
	r.Get("/v1/showtimes/{id}", h.GetShowtime)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(a))
		r.Use(RateLimitMiddleware(rl))

		r.Post("/v1/showtimes/{id}/locks", h.AcquireLock)
		r.Post("/v1/showtimes/{id}/locks/release", h.ReleaseLock)

		r.Get("/v1/bookings", h.ListBookings)
		r.With(IdempotencyKeyMiddleware).Post("/v1/bookings", h.CreateBooking)

		r.Get("/v1/admin/stats", h.AdminStats)
	})

	return r
}
