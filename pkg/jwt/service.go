package jwt

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Service issues and validates HS256 participant tokens
type Service struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewService creates a JWT service. An empty secret falls back to the
// development secret.
func NewService(secret string, expiry time.Duration) *Service {
	if secret == "" {
		secret = devSecret
	}
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &Service{
		secret: []byte(secret),
		expiry: expiry,
		now:    time.Now,
	}
}

// UsesDevSecret reports whether the service signs with the built-in secret
func (s *Service) UsesDevSecret() bool {
	return string(s.secret) == devSecret
}

// GenerateToken issues a token for a participant
func (s *Service) GenerateToken(userID uint, username string) (string, error) {
	now := s.now()
	claims := &Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken parses a token and returns its claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrInvalidToken
			}
			return s.secret, nil
		},
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == 0 {
		return nil, ErrMissingUser
	}
	return claims, nil
}
