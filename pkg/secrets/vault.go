package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"radiance/backend/pkg/config"
	"radiance/backend/pkg/logger"

	vault "github.com/hashicorp/vault/api"
)

// Common errors
var (
	ErrSecretNotFound = errors.New("secret not found")
	ErrNoVaultToken   = errors.New("no vault token provided")
	ErrNoVaultAddress = errors.New("no vault address provided")
)

// VaultConfig holds configuration for Vault client
type VaultConfig struct {
	Address    string
	Token      string
	Namespace  string
	Mount      string
	Path       string
	Timeout    time.Duration
	MaxRetries int
	Enabled    bool
}

// ConfigFrom maps the application config onto a VaultConfig
func ConfigFrom(cfg *config.Config) VaultConfig {
	return VaultConfig{
		Address:    cfg.Vault.Addr,
		Token:      cfg.Vault.Token,
		Namespace:  cfg.Vault.Namespace,
		Mount:      cfg.Vault.Mount,
		Path:       cfg.Vault.Path,
		Timeout:    10 * time.Second,
		MaxRetries: 3,
		Enabled:    cfg.Vault.Enabled,
	}
}

// VaultManager reads secrets from a KV v2 engine and falls back to the
// environment for keys Vault does not hold.
type VaultManager struct {
	client *vault.Client
	config VaultConfig
	cache  map[string]string
	mu     sync.RWMutex
	log    *logger.Logger
}

// NewVaultManager creates a manager. With Vault disabled it only reads the
// environment.
func NewVaultManager(cfg VaultConfig, log *logger.Logger) (*VaultManager, error) {
	if log == nil {
		log = logger.Nop()
	}
	manager := &VaultManager{
		config: cfg,
		cache:  make(map[string]string),
		log:    log.With("component", "secrets"),
	}

	if !cfg.Enabled {
		return manager, nil
	}

	if cfg.Address == "" {
		return nil, ErrNoVaultAddress
	}
	if cfg.Token == "" {
		return nil, ErrNoVaultToken
	}
	if manager.config.Mount == "" {
		manager.config.Mount = "secret"
	}
	if manager.config.Path == "" {
		manager.config.Path = "radiance"
	}

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address
	if cfg.Timeout > 0 {
		vaultConfig.Timeout = cfg.Timeout
	}
	vaultConfig.MaxRetries = cfg.MaxRetries

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}
	manager.client = client

	return manager, nil
}

// GetSecret retrieves a secret from Vault, with fallback to environment variable
func (m *VaultManager) GetSecret(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	cachedValue, found := m.cache[key]
	m.mu.RUnlock()

	if found {
		return cachedValue, nil
	}

	if m.client == nil {
		return m.getFromEnvironment(key)
	}

	value, err := m.getFromVault(ctx, key)
	if err != nil {
		if errors.Is(err, ErrSecretNotFound) {
			m.log.Debug("Secret not in Vault, falling back to environment", "key", key)
			return m.getFromEnvironment(key)
		}
		return "", err
	}

	m.cacheSecret(key, value)

	return value, nil
}

// GetSecretWithDefault retrieves a secret with a default value if not found
func (m *VaultManager) GetSecretWithDefault(ctx context.Context, key, defaultValue string) string {
	value, err := m.GetSecret(ctx, key)
	if err != nil {
		m.log.Warn("Failed to get secret, using default value",
			"key", key,
			"error", err.Error(),
		)
		return defaultValue
	}
	return value
}

// Forget drops cached values so the next read goes back to the source
func (m *VaultManager) Forget() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = make(map[string]string)
}

func (m *VaultManager) getFromVault(ctx context.Context, key string) (string, error) {
	secret, err := m.client.KVv2(m.config.Mount).Get(ctx, m.config.Path)
	if err != nil {
		if errors.Is(err, vault.ErrSecretNotFound) {
			return "", ErrSecretNotFound
		}
		m.log.Error("Failed to read secret from Vault",
			"mount", m.config.Mount,
			"path", m.config.Path,
			"error", err.Error(),
		)
		return "", fmt.Errorf("failed to read secret: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return "", ErrSecretNotFound
	}

	value, ok := secret.Data[key].(string)
	if !ok || value == "" {
		return "", ErrSecretNotFound
	}

	return value, nil
}

// getFromEnvironment maps jwt_secret or jwt-secret to JWT_SECRET
func (m *VaultManager) getFromEnvironment(key string) (string, error) {
	envKey := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))

	value := os.Getenv(envKey)
	if value == "" {
		return "", ErrSecretNotFound
	}

	m.cacheSecret(key, value)

	return value, nil
}

func (m *VaultManager) cacheSecret(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = value
}
