package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/isdelr/traderlibrary-be/internal/apperr"
	"github.com/isdelr/traderlibrary-be/internal/monitoring"
	"github.com/rs/zerolog/log"
)

// Pinger checks that the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HostStatsProvider returns the latest host sample.
type HostStatsProvider interface {
	Latest() monitoring.HostStats
}

// HealthHandler serves liveness and discovery endpoints.
type HealthHandler struct {
	db      Pinger
	stats   HostStatsProvider
	env     string
	clients func() int
	started time.Time
}

// NewHealthHandler creates a new HealthHandler. stats and clients may be nil.
func NewHealthHandler(db Pinger, stats HostStatsProvider, env string, clients func() int) *HealthHandler {
	return &HealthHandler{db: db, stats: stats, env: env, clients: clients, started: time.Now()}
}

// Health reports API, database and host status. A failed database ping
// yields 503.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, dbStatus, code := "OK", "connected", http.StatusOK
	if err := h.db.Ping(ctx); err != nil {
		log.Error().Err(err).Msg("Health check: database unreachable")
		status, dbStatus, code = "DEGRADED", "disconnected", http.StatusServiceUnavailable
	}

	system := map[string]interface{}{
		"uptimeSeconds": int64(time.Since(h.started).Seconds()),
	}
	if h.stats != nil {
		system["host"] = h.stats.Latest()
	}
	if h.clients != nil {
		system["websocketClients"] = h.clients()
	}

	WriteJSON(w, code, map[string]interface{}{
		"success":     code == http.StatusOK,
		"status":      status,
		"message":     "Trader Library API is running",
		"timestamp":   time.Now().UTC(),
		"environment": h.env,
		"database":    dbStatus,
		"system":      system,
	})
}

// Welcome lists the public API entry points.
func (h *HealthHandler) Welcome(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Welcome to the Trader Library API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":  "/api/health",
			"auth":    "/api/auth",
			"premium": "/api/premium",
			"admin":   "/api/admin",
		},
	})
}

// NotFound renders unknown routes as JSON.
func NotFound(w http.ResponseWriter, r *http.Request) {
	RespondError(w, r, apperr.ErrRouteNotFound.WithMessage("Route "+r.URL.Path+" not found"))
}

// MethodNotAllowed renders unsupported methods as JSON.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	RespondError(w, r, apperr.ErrMethodNotAllowed)
}
