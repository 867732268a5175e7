package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"radiance/backend/internal/models"
	"radiance/backend/pkg/cache"
	apperrors "radiance/backend/pkg/errors"

	"gorm.io/gorm"
)

// ErrParticipantNotFound is returned when a referenced participant does not exist
var ErrParticipantNotFound = apperrors.NewNotFoundError(apperrors.CodeNotFound, "participant not found")

// ParticipantService provides read-only access to participant records
type ParticipantService struct {
	db    *gorm.DB
	cache *cache.Cache
}

// NewParticipantService creates a participant lookup. cache may be nil.
func NewParticipantService(db *gorm.DB, c *cache.Cache) *ParticipantService {
	return &ParticipantService{db: db, cache: c}
}

// GetParticipant returns the participant with the given id
func (s *ParticipantService) GetParticipant(ctx context.Context, id uint) (*models.Participant, error) {
	key := cacheKey(id)
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			p := v.(models.Participant)
			return &p, nil
		}
	}

	var participant models.Participant
	err := s.db.WithContext(ctx).First(&participant, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrParticipantNotFound.Wrap(fmt.Errorf("participant %d", id))
	}
	if err != nil {
		return nil, fmt.Errorf("load participant %d: %w", id, err)
	}

	if s.cache != nil {
		s.cache.Set(key, participant)
	}
	return &participant, nil
}

// Invalidate drops a cached participant so the next lookup hits the database
func (s *ParticipantService) Invalidate(id uint) {
	if s.cache != nil {
		s.cache.Delete(cacheKey(id))
	}
}

func cacheKey(id uint) string {
	return "participant:" + strconv.FormatUint(uint64(id), 10)
}
