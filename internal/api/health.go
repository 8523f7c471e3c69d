// Package api provides the HTTP handlers of the neon server.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/neonviz/neon/internal/dbpool"
	"github.com/neonviz/neon/internal/ws"
)

// HealthHandler serves health check endpoints.
type HealthHandler struct {
	pool      *dbpool.Pool
	hub       *ws.Hub
	widgets   func() int
	log       *logrus.Logger
	version   string
	startTime time.Time
}

// NewHealthHandler creates a HealthHandler. pool and hub may be nil; widgets
// reports how many taxonomy widgets are configured.
func NewHealthHandler(pool *dbpool.Pool, hub *ws.Hub, widgets func() int, log *logrus.Logger, version string) *HealthHandler {
	return &HealthHandler{
		pool:      pool,
		hub:       hub,
		widgets:   widgets,
		log:       log,
		version:   version,
		startTime: time.Now(),
	}
}

type readinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type healthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Database      string  `json:"database"`
	Widgets       int     `json:"widgets"`
	Clients       int     `json:"websocket_clients"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Liveness handles GET /api/v1/health.
func (h *HealthHandler) Liveness(c *gin.Context) {
	resp := healthResponse{
		Status:        "ok",
		Version:       h.version,
		Database:      "not_configured",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}

	if h.pool != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		resp.Database = "connected"
		if err := h.pool.HealthCheck(ctx); err != nil {
			resp.Database = "disconnected"
		}
	}

	if h.widgets != nil {
		resp.Widgets = h.widgets()
	}

	if h.hub != nil {
		resp.Clients = h.hub.ClientCount()
	}

	c.JSON(http.StatusOK, resp)
}

// Readiness handles GET /api/v1/ready. The server is ready once the database
// (when configured) answers and at least one widget is loaded.
func (h *HealthHandler) Readiness(c *gin.Context) {
	checks := map[string]string{"widgets": "ok"}
	ready := true

	if h.widgets == nil || h.widgets() == 0 {
		checks["widgets"] = "none_configured"
		ready = false
	}

	if h.pool != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		checks["database"] = "ok"
		if err := h.checkDatabase(ctx); err != nil {
			h.log.WithError(err).Error("readiness: database check failed")
			checks["database"] = "error"
			ready = false
		}
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, readinessResponse{Status: "not_ready", Checks: checks})
		return
	}

	c.JSON(http.StatusOK, readinessResponse{Status: "ready", Checks: checks})
}

// checkDatabase pings the pool and verifies the migrated schema is present.
func (h *HealthHandler) checkDatabase(ctx context.Context) error {
	return h.pool.HealthCheck(ctx, "tenants", "records", "filters")
}
