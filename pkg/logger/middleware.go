package logger

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKey is the gin context key holding the request-scoped logger
const ContextKey = "logger"

// Middleware returns a Gin middleware function that logs requests
func Middleware(logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetString("requestID")
		if requestID == "" {
			if requestID = c.GetHeader("X-Request-ID"); requestID == "" {
				requestID = uuid.New().String()
			}
			c.Header("X-Request-ID", requestID)
			c.Set("requestID", requestID)
		}

		reqLogger := logger.WithRequestID(requestID)
		c.Set(ContextKey, reqLogger)

		start := time.Now()
		c.Next()

		// The auth middleware runs after this one, so the user is only known now.
		if userID, ok := c.Get("userId"); ok {
			reqLogger = reqLogger.WithUserID(fmt.Sprintf("%v", userID))
		}

		latency := time.Since(start)
		status := c.Writer.Status()
		path := c.Request.URL.Path
		method := c.Request.Method

		reqLogger.LogRequest(method, path, status, latency)

		for _, err := range c.Errors {
			reqLogger.LogError(err.Err, "request error",
				"method", method,
				"path", path,
				"error_type", err.Type,
			)
		}
	}
}

// FromContext returns the request-scoped logger, or the global one
func FromContext(c *gin.Context) *Logger {
	if l, ok := c.Get(ContextKey); ok {
		if logger, ok := l.(*Logger); ok {
			return logger
		}
	}
	return GetGlobal()
}
