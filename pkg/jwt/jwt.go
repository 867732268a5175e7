package jwt

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrMissingUser  = errors.New("token carries no participant")
)

// devSecret signs tokens when no secret is configured. Never use it in production.
const devSecret = "devJwtSecretDoNotUseInProduction"

// Claims identifies the participant behind a chat connection or API call
type Claims struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}
