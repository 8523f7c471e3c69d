package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/neonviz/neon/internal/httputil"
	"github.com/neonviz/neon/internal/metrics"
)

// respondError writes the shared error body and counts the rejection by code.
func respondError(c *gin.Context, status int, code, message string) {
	metrics.ErrorsTotal.WithLabelValues(code).Inc()
	httputil.RespondError(c, status, code, message)
}
