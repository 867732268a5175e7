package secrets

import (
	"context"
	"errors"
	"fmt"

	"radiance/backend/pkg/config"
)

// Manager provides access to secrets from various sources
type Manager interface {
	// GetSecret retrieves a secret by key
	GetSecret(ctx context.Context, key string) (string, error)

	// GetSecretWithDefault retrieves a secret with a default value if not found
	GetSecretWithDefault(ctx context.Context, key, defaultValue string) string
}

// Secret keys read at startup
const (
	KeyJWTSecret   = "jwt_secret"
	KeyYandexGPT   = "yagpt_api_key"
	KeyDBPassword  = "db_password"
	KeyRedisSecret = "redis_password"
)

// Resolve overwrites the credentials in cfg with the values the manager
// knows about. Missing secrets keep what the environment already provided.
func Resolve(ctx context.Context, m Manager, cfg *config.Config) error {
	targets := map[string]*string{
		KeyJWTSecret:   &cfg.JWT.Secret,
		KeyYandexGPT:   &cfg.Bot.APIKey,
		KeyDBPassword:  &cfg.Database.Password,
		KeyRedisSecret: &cfg.Redis.Password,
	}

	for key, dst := range targets {
		value, err := m.GetSecret(ctx, key)
		if errors.Is(err, ErrSecretNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("resolve %s: %w", key, err)
		}
		*dst = value
	}
	return nil
}
