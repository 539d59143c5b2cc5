// Package handler provides HTTP handlers for all API endpoints.
package handler

import (
	"net/http"
	"time"

	"github.com/ygagnon/farewatch/internal/api/respond"
	"github.com/ygagnon/farewatch/internal/cache"
	"github.com/ygagnon/farewatch/internal/config"
	"github.com/ygagnon/farewatch/internal/db"
	"github.com/ygagnon/farewatch/internal/duffel"
	"github.com/ygagnon/farewatch/internal/store"
	"github.com/ygagnon/farewatch/internal/tracker"
)

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	pool    *db.Pool
	store   *store.Store
	checker *tracker.Checker
	flights *duffel.Client
	cache   *cache.Cache
	cfg     *config.Config
}

// New creates a Handler with shared dependencies.
func New(pool *db.Pool, st *store.Store, checker *tracker.Checker, flights *duffel.Client, c *cache.Cache, cfg *config.Config) *Handler {
	return &Handler{
		pool:    pool,
		store:   st,
		checker: checker,
		flights: flights,
		cache:   c,
		cfg:     cfg,
	}
}

// Root serves API info at /.
// @Summary API root info
// @Description Returns API name, version, and status.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":    "farewatch API",
		"version": "1.0.0",
		"status":  "running",
		"docs":    "/docs",
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Description Returns basic health status and timestamp.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":      "healthy",
		"environment": h.cfg.Environment,
		"sweeping":    h.checker.Sweeping(),
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
// @Summary Database health check
// @Description Verifies Postgres connectivity.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if err := h.pool.HealthCheck(r.Context()); err != nil {
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"error":     "Database connection check failed",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckCache returns cache statistics.
// @Summary Cache health check
// @Description Returns in-memory cache statistics.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health/cache [get]
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"cache":     h.cache.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
