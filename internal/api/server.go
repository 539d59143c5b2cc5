package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/ygagnon/farewatch/internal/api/handler"
	"github.com/ygagnon/farewatch/internal/cache"
	"github.com/ygagnon/farewatch/internal/config"
	"github.com/ygagnon/farewatch/internal/db"
	"github.com/ygagnon/farewatch/internal/duffel"
	"github.com/ygagnon/farewatch/internal/store"
	"github.com/ygagnon/farewatch/internal/tracker"
)

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(
	pool *db.Pool,
	st *store.Store,
	checker *tracker.Checker,
	flights *duffel.Client,
	appCache *cache.Cache,
	cfg *config.Config,
) *chi.Mux {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TimingMiddleware)
	r.Use(middleware.Compress(5)) // gzip

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Content-Type", "If-None-Match", "Cache-Control"},
		ExposedHeaders:   []string{"X-Process-Time", "X-Cache", "ETag"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// Rate limiting
	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	// --- Handler dependencies ---
	h := handler.New(pool, st, checker, flights, appCache, cfg)

	// --- Routes ---

	// Root
	r.Get("/", h.Root)

	// Health checks
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/db", h.HealthCheckDB)
		r.Get("/cache", h.HealthCheckCache)
	})

	// Swagger UI
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"),
	))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Destinations (CRUD)
		r.Get("/destinations", h.ListDestinations)
		r.Post("/destinations", h.CreateDestination)
		r.Route("/destinations/{id}", func(r chi.Router) {
			r.Get("/", h.GetDestination)
			r.Put("/", h.UpdateDestination)
			r.Delete("/", h.DeleteDestination)

			// Tracking
			r.Post("/check", h.CheckDestination)
			r.Get("/prices", h.ListPrices)
			r.Get("/analysis", h.GetAnalysis)
			r.Get("/alternatives", h.GetAlternatives)
			r.Get("/alerts", h.ListDestinationAlerts)
		})

		// Sweeps
		r.Post("/sweeps", h.TriggerSweep)

		// Alerts
		r.Get("/alerts", h.ListAlerts)
	})

	return r
}
