package router

import (
	"net/http"
	"strings"
	"time"

	"radiance/backend/pkg/config"
	"radiance/backend/pkg/di"
	"radiance/backend/pkg/errors"
	"radiance/backend/pkg/logger"
	"radiance/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Track server start time for uptime calculations
var startTime = time.Now()

// Router is the main router for the application
type Router struct {
	Engine      *gin.Engine
	Container   *di.Container
	Logger      *logger.Logger
	Config      *config.Config
	rateLimiter *middleware.RateLimiter
}

// New creates a new router with the given container
func New(container *di.Container) *Router {
	logger.SetGlobal(container.Logger)
	cfg := container.Config

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Request id first so the logger and every handler share it
	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())
	engine.Use(corsMiddleware(cfg.Security.AllowedOrigins))

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Config:    cfg,
		rateLimiter: middleware.NewRateLimiter(container.Logger, middleware.RateLimiterOptions{
			Limit:          rate.Limit(cfg.Security.RateLimit),
			Burst:          cfg.Security.RateLimitBurst,
			ExpiryDuration: time.Hour,
		}),
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	jwtAuth := middleware.JWTAuthMiddleware(r.Container.JWTService, r.Logger)

	r.setupHealthRoutes()
	r.Engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.Container.MetricsRegistry, promhttp.HandlerOpts{})))

	v1 := r.Engine.Group("/api/v1")
	v1.GET("/health", r.healthHandler())

	// The limiter keys on the participant, so it runs after auth
	protected := v1.Group("")
	protected.Use(jwtAuth, r.rateLimiter.Middleware())
	r.Container.ChatHandler.RegisterRoutes(protected)

	// Sessions carry their own per-connection limiter
	r.Engine.GET("/ws/chat/:user_id", jwtAuth, r.Container.Hub.ServeChat)
}

// Close stops background work owned by the router
func (r *Router) Close() {
	r.rateLimiter.Stop()
}

// corsMiddleware allows the configured origins and the websocket upgrade
// headers
func corsMiddleware(allowed []string) gin.HandlerFunc {
	allowAll := false
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			allowAll = true
		}
		set[strings.TrimSpace(o)] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		switch {
		case origin == "":
		case allowAll:
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		default:
			if _, ok := set[origin]; ok {
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
				c.Writer.Header().Add("Vary", "Origin")
			}
		}

		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization, Origin, Upgrade, Connection, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Upgrade, Connection, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
