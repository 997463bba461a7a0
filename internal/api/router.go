// Package api exposes the enrichment HTTP surface: job intake and
// status, direct enrichment, waterfall runs, credentials, and the SSE
// event stream.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/north-cloud/enrichment/internal/catalog"
	"github.com/jonesrussell/north-cloud/enrichment/internal/database"
	"github.com/jonesrussell/north-cloud/enrichment/internal/logger"
	"github.com/jonesrussell/north-cloud/enrichment/internal/metrics"
	"github.com/jonesrussell/north-cloud/enrichment/internal/service"
	"github.com/jonesrussell/north-cloud/enrichment/internal/sse"
)

const (
	defaultReadTimeout  = 30 * time.Second
	defaultWriteTimeout = 60 * time.Second
	defaultIdleTimeout  = 120 * time.Second
	healthCheckTimeout  = 2 * time.Second

	serviceVersion = "1.0.0"
)

// Pinger is anything with a context-aware health probe.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Router holds the API dependencies.
type Router struct {
	svc         *service.Service
	credentials *database.CredentialRepository
	catalog     *catalog.Catalog
	broker      sse.Broker
	db          Pinger
	redisClient *redis.Client
	logger      logger.Logger
	debug       bool
}

// NewRouter creates the API router.
func NewRouter(
	svc *service.Service,
	credentials *database.CredentialRepository,
	cat *catalog.Catalog,
	broker sse.Broker,
	db Pinger,
	redisClient *redis.Client,
	log logger.Logger,
	debug bool,
) *Router {
	return &Router{
		svc:         svc,
		credentials: credentials,
		catalog:     cat,
		broker:      broker,
		db:          db,
		redisClient: redisClient,
		logger:      log,
		debug:       debug,
	}
}

// Engine builds the gin engine with all routes registered.
func (r *Router) Engine() *gin.Engine {
	if !r.debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(r.requestLogger())

	router.GET("/health", r.health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := router.Group("/api/v1")

	jobs := v1.Group("/jobs")
	jobs.POST("", r.createJob)
	jobs.GET("/:id", r.getJob)
	jobs.GET("/:id/logs", r.getJobLogs)

	v1.POST("/enrich", r.enrich)
	v1.POST("/enrich/waterfall", r.enrichWaterfall)

	credentials := v1.Group("/credentials")
	credentials.PUT("", r.upsertCredential)
	credentials.DELETE("/:provider", r.deleteCredential)

	v1.GET("/providers", r.listProviders)
	v1.GET("/events", r.streamEvents)

	return router
}

// NewServer wraps the engine in an http.Server with timeouts.
func (r *Router) NewServer(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      r.Engine(),
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}
}

func (r *Router) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		r.logger.Debug("request",
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("duration", time.Since(start)))
	}
}

func (r *Router) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := "healthy"
	dbConnected := true
	if r.db != nil {
		if err := r.db.PingContext(ctx); err != nil {
			dbConnected = false
			status = "degraded"
		}
	}

	redisConnected := true
	if r.redisClient != nil {
		if err := r.redisClient.Ping(ctx).Err(); err != nil {
			redisConnected = false
			status = "degraded"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  status,
		"service": "enrichment",
		"version": serviceVersion,
		"database": gin.H{
			"connected": dbConnected,
		},
		"redis": gin.H{
			"connected": redisConnected,
		},
	})
}
