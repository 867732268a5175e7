package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"radiance/backend/internal/models"
	"radiance/backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBots(t *testing.T) {
	bots, err := DefaultBots()
	require.NoError(t, err)
	require.Len(t, bots, 3)

	assert.Equal(t, "ava_ai_tech@bot.com", bots[0].Email)
	assert.Contains(t, bots[0].Persona, "Ава")
}

func TestLoadFileRejectsIncompleteBots(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bots.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bots:\n  - username: nobody\n"), 0o600))

	_, err := LoadFile(path)
	assert.Error(t, err)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSeedIsIdempotent(t *testing.T) {
	db := testutil.NewDB(t)
	bots := []Bot{
		{Username: "helper", Email: "helper@bot.com", Persona: "friendly assistant"},
		{Username: "critic", Email: "critic@bot.com", Persona: "grumpy reviewer"},
	}

	res, err := Seed(context.Background(), db, bots)
	require.NoError(t, err)
	assert.Equal(t, []string{"helper@bot.com", "critic@bot.com"}, res.Created)
	assert.Empty(t, res.Skipped)

	res, err = Seed(context.Background(), db, bots)
	require.NoError(t, err)
	assert.Empty(t, res.Created)
	assert.Len(t, res.Skipped, 2)

	var stored models.Participant
	require.NoError(t, db.Where("email = ?", "helper@bot.com").First(&stored).Error)
	assert.True(t, stored.IsBot)
	assert.Equal(t, "friendly assistant", stored.BotDescription)
	assert.NotEmpty(t, stored.Password)
	assert.Len(t, stored.Password, 60, "password is stored as a bcrypt hash")
}

func TestGeneratePassword(t *testing.T) {
	a, err := generatePassword(12)
	require.NoError(t, err)
	b, err := generatePassword(12)
	require.NoError(t, err)

	assert.Len(t, a, 12)
	assert.NotEqual(t, a, b)
}
