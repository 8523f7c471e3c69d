package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/neonviz/neon/internal/dbpool"
	"github.com/neonviz/neon/internal/domain"
	"github.com/neonviz/neon/internal/middleware"
	"github.com/neonviz/neon/internal/ws"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Log      *logrus.Logger
	Pool     *dbpool.Pool
	Hub      *ws.Hub
	Taxonomy domain.TaxonomyService
	Filters  domain.FilterService
	Records  domain.RecordService

	// TenantLookup authenticates API keys. When nil every request is
	// assigned LocalTenant.
	TenantLookup middleware.TenantLookup
	LocalTenant  string

	CORSOrigins    []string
	Version        string
	RateLimitRPS   float64
	RateLimitBurst int
}

// maxBodySize bounds request bodies, including inline build records.
const maxBodySize = 32 << 20

func setupMiddleware(ctx context.Context, r *gin.Engine, deps *RouterDeps) {
	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.Use(middleware.RequestID(deps.Log))
	r.Use(ginLogger(deps.Log))
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.MaxBodySize(maxBodySize))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     deps.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		MaxAge:           1 * time.Hour,
		AllowCredentials: false,
	}))
	r.Use(middleware.NewRateLimiter(ctx, deps.RateLimitRPS, deps.RateLimitBurst).Handler())
	r.Use(middleware.PrometheusMiddleware("/api/v1/ws"))
}

func registerRoutes(ctx context.Context, api *gin.RouterGroup, deps *RouterDeps) {
	log := deps.Log

	health := NewHealthHandler(deps.Pool, deps.Hub, func() int { return len(deps.Taxonomy.Widgets()) }, log, deps.Version)
	taxonomy := NewTaxonomyHandler(deps.Taxonomy, log)
	filters := NewFilterHandler(deps.Filters, log)
	records := NewRecordHandler(deps.Records, log)

	// Health and readiness are unauthenticated.
	api.GET("/health", health.Liveness)
	api.GET("/ready", health.Readiness)

	var lookup middleware.TenantLookup
	if deps.TenantLookup != nil {
		lookup = middleware.NewCachedTenantLookup(ctx, deps.TenantLookup)
		api.Use(middleware.AuthMiddleware(lookup, log, middleware.NewLockout(ctx, log)))
	} else {
		api.Use(middleware.StaticTenant(deps.LocalTenant))
	}

	// Widgets and taxonomy trees.
	api.GET("/widgets", taxonomy.Widgets)
	api.POST("/widgets/:id/taxonomy", taxonomy.Build)
	api.GET("/widgets/:id/taxonomy", taxonomy.Show)
	api.POST("/widgets/:id/taxonomy/toggle", taxonomy.Toggle)

	// Filter collection.
	api.GET("/filters", filters.List)
	api.POST("/filters/exchange", filters.Exchange)
	api.DELETE("/filters", filters.Clear)

	// Datastore ingest.
	api.POST("/datastores/:datastore/:table/records", records.Ingest)

	// WebSocket endpoint.
	api.GET("/ws", wsHandler(ctx, log, deps.Hub, deps.CORSOrigins, lookup))
}

// NewRouter creates and configures the Gin engine with all middleware and routes.
func NewRouter(ctx context.Context, deps *RouterDeps) http.Handler {
	r := gin.New()
	setupMiddleware(ctx, r, deps)
	registerRoutes(ctx, r.Group("/api/v1"), deps)

	return r
}
