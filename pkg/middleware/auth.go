package middleware

import (
	"strings"

	"radiance/backend/pkg/errors"
	"radiance/backend/pkg/jwt"
	"radiance/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Context keys set by JWTAuthMiddleware
const (
	ClaimsKey = "claims"
	UserIDKey = "userId"
)

// JWTAuthMiddleware checks that the request carries a valid participant token
// and adds its claims to the context. Browsers cannot set headers on websocket
// upgrades, so the token may also come from the "token" query parameter.
func JWTAuthMiddleware(jwtService *jwt.Service, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Error(errors.NewUnauthorizedError(errors.CodeAuthRequired, "Authentication required"))
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			log.Warn("Invalid JWT token", "error", err.Error(), "path", c.Request.URL.Path)
			c.Error(errors.NewUnauthorizedError(errors.CodeInvalidToken, "Invalid or expired token"))
			c.Abort()
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(UserIDKey, claims.UserID)

		c.Next()
	}
}

// CurrentUserID returns the authenticated participant id
func CurrentUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}

func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header != "" {
		if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
			return strings.TrimSpace(header[7:])
		}
		return header
	}
	return c.Query("token")
}
