package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/neonviz/neon/internal/metrics"
)

// PrometheusMiddleware counts requests per route pattern and observes their
// duration. Routes listed in untimed are counted only; a WebSocket upgrade
// lasts as long as its connection.
func PrometheusMiddleware(untimed ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(untimed))
	for _, route := range untimed {
		skip[route] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		labels := []string{c.Request.Method, route, strconv.Itoa(c.Writer.Status())}
		metrics.RequestsTotal.WithLabelValues(labels...).Inc()

		if _, ok := skip[route]; !ok {
			metrics.RequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		}
	}
}
