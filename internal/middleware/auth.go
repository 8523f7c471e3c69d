package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// TenantKey is the gin context key holding the authenticated tenant ID.
const TenantKey = "tenant_id"

// authTimingFloor is the minimum duration of a rejected authentication, so
// response times do not reveal whether a key exists.
const authTimingFloor = 50 * time.Millisecond

// TenantLookup resolves an API key to a tenant ID.
type TenantLookup interface {
	GetTenantByAPIKey(ctx context.Context, apiKey string) (string, error)
}

// AuthMiddleware authenticates requests via Bearer token and stores the
// tenant ID under TenantKey. A nil lockout disables failure tracking.
func AuthMiddleware(lookup TenantLookup, log *logrus.Logger, lockout *Lockout) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if c.Writer.Status() == http.StatusUnauthorized {
				if elapsed := time.Since(start); elapsed < authTimingFloor {
					time.Sleep(authTimingFloor - elapsed)
				}
			}
		}()

		apiKey := ExtractBearerToken(c)
		if apiKey == "" {
			respondError(c, http.StatusUnauthorized, "unauthorized", "missing or invalid authorization header")
			return
		}

		if lockout != nil && lockout.Blocked(apiKey) {
			respondError(c, http.StatusTooManyRequests, "rate_limited", "too many failed authentication attempts")
			return
		}

		tenantID, err := lookup.GetTenantByAPIKey(c.Request.Context(), apiKey)
		if err != nil {
			log.WithFields(logrus.Fields{
				"client_ip":  c.ClientIP(),
				"method":     c.Request.Method,
				"path":       c.Request.URL.Path,
				"request_id": c.GetString(RequestIDKey),
			}).Warn("authentication failed: invalid api key")

			if lockout != nil {
				lockout.Fail(apiKey)
			}

			respondError(c, http.StatusUnauthorized, "unauthorized", "invalid api key")
			return
		}

		if lockout != nil {
			lockout.Succeed(apiKey)
		}

		c.Set(TenantKey, tenantID)
		c.Next()
	}
}

// StaticTenant assigns every request to tenantID. It replaces
// AuthMiddleware when authentication is disabled for local use.
func StaticTenant(tenantID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(TenantKey, tenantID)
		c.Next()
	}
}

// ExtractBearerToken extracts the API key from the Authorization header.
func ExtractBearerToken(c *gin.Context) string {
	token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok {
		return ""
	}

	return token
}
