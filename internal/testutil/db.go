// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"radiance/backend/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB opens a migrated sqlite database private to the test
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "chat.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.AutoMigrate()...))
	return db
}

// CreateParticipant inserts a participant with a fixed id
func CreateParticipant(t testing.TB, db *gorm.DB, id uint, username string, isBot bool, persona string) *models.Participant {
	t.Helper()

	p := &models.Participant{
		ID:             id,
		Username:       username,
		Email:          username + "@radiance.test",
		IsBot:          isBot,
		BotDescription: persona,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}
