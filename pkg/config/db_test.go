package config

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDBSQLiteAndTestConnection(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Env = "test"
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = filepath.Join(t.TempDir(), "radiance.db")

	db, err := NewDB(cfg)
	require.NoError(t, err)
	require.NoError(t, TestConnection(context.Background(), db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	assert.Error(t, TestConnection(context.Background(), db))
}

func TestDialectorRejectsUnknownDriver(t *testing.T) {
	cfg := &Config{}
	cfg.Database.Driver = "oracle"

	_, err := Dialector(cfg)
	assert.ErrorContains(t, err, "unsupported database driver")
}
