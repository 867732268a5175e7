package router

import (
	"os"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// healthHandler reports the checker's components plus live session and
// memory figures
func (r *Router) healthHandler() gin.HandlerFunc {
	return r.Container.Health.Handler(func() gin.H {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		breaker := r.Container.Breaker.Stats()

		return gin.H{
			"version": os.Getenv("APP_VERSION"),
			"env":     r.Config.Server.Env,
			"uptime":  time.Since(startTime).Round(time.Second).String(),
			"websocket": gin.H{
				"active_sessions": r.Container.Hub.ActiveSessions(),
			},
			"bot": gin.H{
				"breaker": breaker,
			},
			"memory": gin.H{
				"alloc_mb":  memStats.Alloc / 1024 / 1024,
				"sys_mb":    memStats.Sys / 1024 / 1024,
				"gc_cycles": memStats.NumGC,
			},
		}
	})
}

// setupHealthRoutes registers the unversioned health endpoint
func (r *Router) setupHealthRoutes() {
	r.Engine.GET("/health", r.healthHandler())
}
