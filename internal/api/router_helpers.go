package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/neonviz/neon/internal/middleware"
	"github.com/neonviz/neon/internal/ws"
)

// getTenantID extracts the authenticated tenant ID from the Gin context
// and validates it is a proper UUID.
func getTenantID(c *gin.Context) string {
	tid := c.GetString(middleware.TenantKey)

	if _, err := uuid.Parse(tid); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid tenant id")
		return ""
	}

	return tid
}

// wsHandler upgrades to a WebSocket client of the request's tenant. lookup
// re-validates the API key periodically and is nil when auth is disabled.
func wsHandler(appCtx context.Context, log *logrus.Logger, hub *ws.Hub, corsOrigins []string, lookup middleware.TenantLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := getTenantID(c)
		if tenantID == "" {
			return
		}

		if hub == nil {
			respondError(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "event stream is not configured")
			return
		}

		conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
			OriginPatterns:       corsOrigins,
			CompressionMode:      websocket.CompressionContextTakeover,
			CompressionThreshold: 128,
		})
		if err != nil {
			log.WithError(err).Error("websocket accept failed")
			return
		}

		var validator ws.TenantValidator
		if lookup != nil {
			validator = lookup
		}

		client := ws.NewClient(hub, conn, tenantID, validator, middleware.ExtractBearerToken(c))
		hub.Register(client)

		// Cancel when either the server shuts down or the request ends.
		wsCtx, wsCancel := context.WithCancel(appCtx)
		stop := context.AfterFunc(c.Request.Context(), wsCancel)
		defer stop()

		go client.WritePump(wsCtx)
		client.ReadPump(wsCtx)
		wsCancel()
	}
}

// ginLogger writes one line per request. Server errors log at error,
// client errors at warn and the rest at info.
func ginLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		entry := log.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"duration":   time.Since(start).String(),
			"client":     c.ClientIP(),
			"request_id": c.GetString(middleware.RequestIDKey),
		})

		if tid := c.GetString(middleware.TenantKey); tid != "" {
			entry = entry.WithField("tenant_id", tid)
		}

		if widget := c.Param("id"); widget != "" {
			entry = entry.WithField("widget_id", widget)
		}

		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("request")
		case status >= http.StatusBadRequest:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	}
}

// validatePathID checks that a path parameter is non-empty and within length limits.
func validatePathID(id string) error {
	if id == "" {
		return fmt.Errorf("id must not be empty")
	}
	if len(id) > 255 {
		return fmt.Errorf("id exceeds maximum length of 255")
	}
	return nil
}
