package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type contextKey string

const (
	// RequestIDKey is the key for request ID values in contexts
	RequestIDKey contextKey = "requestID"
	// ParticipantKey is the key for the authenticated participant id
	ParticipantKey contextKey = "participantID"
	// TraceIDKey is the key for trace ID values in contexts
	TraceIDKey contextKey = "traceID"
)

// RequestIDMiddleware adds a unique request ID to each request and sets it in
// both the context and response headers
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(c.Request.Context(), RequestIDKey, requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)
		c.Set("requestID", requestID)

		c.Next()
	}
}

// WithRequestContext copies request-scoped values onto ctx for service calls
func WithRequestContext(parent context.Context, c *gin.Context) context.Context {
	ctx := parent

	if requestID := c.GetString("requestID"); requestID != "" {
		ctx = context.WithValue(ctx, RequestIDKey, requestID)
	}
	if id, ok := CurrentUserID(c); ok {
		ctx = context.WithValue(ctx, ParticipantKey, id)
	}

	return ctx
}

// GetRequestID extracts the request ID from a context
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	requestID, _ := ctx.Value(RequestIDKey).(string)
	return requestID
}

// GetParticipantID extracts the authenticated participant from a context
func GetParticipantID(ctx context.Context) (uint, bool) {
	if ctx == nil {
		return 0, false
	}
	id, ok := ctx.Value(ParticipantKey).(uint)
	return id, ok
}
