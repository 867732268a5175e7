package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8081", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 30*time.Second, cfg.Bot.Timeout)
	assert.Equal(t, "Api-Key", cfg.Bot.AuthScheme)
	assert.Equal(t, 100, cfg.Bot.MaxTokens)
	assert.InDelta(t, 0.3, cfg.Bot.Temperature, 1e-9)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.Vault.Enabled)
	assert.Equal(t, "secret", cfg.Vault.Mount)
	assert.Equal(t, 30*time.Second, cfg.Observability.HealthInterval)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("BOT_TIMEOUT", "5s")
	t.Setenv("BOT_WORKERS", "2")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("CHAT_MESSAGE_RATE", "not-a-number")

	cfg := Load()

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 5*time.Second, cfg.Bot.Timeout)
	assert.Equal(t, 2, cfg.Bot.Workers)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.AllowedOrigins)
	// unparsable values keep the default
	assert.InDelta(t, 5.0, cfg.Chat.MessageRate, 1e-9)
}

func TestDialector(t *testing.T) {
	cfg := Load()

	cfg.Database.Driver = "sqlite"
	d, err := Dialector(cfg)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())

	cfg.Database.Driver = "postgres"
	d, err = Dialector(cfg)
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	cfg.Database.Driver = "oracle"
	_, err = Dialector(cfg)
	assert.Error(t, err)
}
