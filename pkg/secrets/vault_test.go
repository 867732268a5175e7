package secrets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"radiance/backend/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeVault(t *testing.T, data map[string]any) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/secret/data/radiance" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		assert.Equal(t, "root-token", r.Header.Get("X-Vault-Token"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"data": data,
				"metadata": map[string]any{
					"created_time":    "2024-01-01T00:00:00Z",
					"custom_metadata": nil,
					"deletion_time":   "",
					"destroyed":       false,
					"version":         1,
				},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEnvironmentFallbackWhenDisabled(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")

	m, err := NewVaultManager(VaultConfig{}, nil)
	require.NoError(t, err)

	v, err := m.GetSecret(context.Background(), "jwt-secret")
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)

	_, err = m.GetSecret(context.Background(), "missing_key")
	assert.ErrorIs(t, err, ErrSecretNotFound)
	assert.Equal(t, "fallback", m.GetSecretWithDefault(context.Background(), "missing_key", "fallback"))
}

func TestEnabledRequiresAddressAndToken(t *testing.T) {
	_, err := NewVaultManager(VaultConfig{Enabled: true, Token: "t"}, nil)
	assert.ErrorIs(t, err, ErrNoVaultAddress)

	_, err = NewVaultManager(VaultConfig{Enabled: true, Address: "http://127.0.0.1:8200"}, nil)
	assert.ErrorIs(t, err, ErrNoVaultToken)
}

func TestReadsFromVaultAndFallsBack(t *testing.T) {
	srv := fakeVault(t, map[string]any{"yagpt_api_key": "from-vault"})
	t.Setenv("JWT_SECRET", "from-env")

	m, err := NewVaultManager(VaultConfig{
		Enabled: true,
		Address: srv.URL,
		Token:   "root-token",
	}, nil)
	require.NoError(t, err)

	v, err := m.GetSecret(context.Background(), KeyYandexGPT)
	require.NoError(t, err)
	assert.Equal(t, "from-vault", v)

	v, err = m.GetSecret(context.Background(), KeyJWTSecret)
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)
}

func TestResolveFillsConfig(t *testing.T) {
	t.Setenv("DB_PASSWORD", "")
	t.Setenv("REDIS_PASSWORD", "")
	srv := fakeVault(t, map[string]any{
		"jwt_secret":    "vault-jwt",
		"yagpt_api_key": "vault-llm",
	})

	m, err := NewVaultManager(VaultConfig{
		Enabled: true,
		Address: srv.URL,
		Token:   "root-token",
	}, nil)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Database.Password = "keep-me"
	require.NoError(t, Resolve(context.Background(), m, cfg))

	assert.Equal(t, "vault-jwt", cfg.JWT.Secret)
	assert.Equal(t, "vault-llm", cfg.Bot.APIKey)
	assert.Equal(t, "keep-me", cfg.Database.Password)
}
