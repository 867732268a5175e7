package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"radiance/backend/internal/models"
	"radiance/backend/internal/testutil"
	"radiance/backend/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetParticipant(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.CreateParticipant(t, db, 7, "helper", true, "friendly assistant")
	svc := NewParticipantService(db, nil)

	p, err := svc.GetParticipant(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, p.IsBot)
	assert.Equal(t, "friendly assistant", p.BotDescription)

	_, err = svc.GetParticipant(context.Background(), 8)
	assert.True(t, errors.Is(err, ErrParticipantNotFound))
}

func TestGetParticipantUsesCache(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.CreateParticipant(t, db, 7, "helper", true, "friendly assistant")
	c := cache.NewCache(time.Minute, 0, 10)
	defer c.Stop()
	svc := NewParticipantService(db, c)
	ctx := context.Background()

	_, err := svc.GetParticipant(ctx, 7)
	require.NoError(t, err)

	require.NoError(t, db.Delete(&models.Participant{}, 7).Error)

	p, err := svc.GetParticipant(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "helper", p.Username)

	svc.Invalidate(7)
	_, err = svc.GetParticipant(ctx, 7)
	assert.True(t, errors.Is(err, ErrParticipantNotFound))
}
