package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"radiance/backend/internal/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("radiance/backend/internal/service")

// MessageService persists chat messages
type MessageService struct {
	db  *gorm.DB
	now func() time.Time

	clockMu sync.Mutex
	last    time.Time
}

// NewMessageService creates a new message service
func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{db: db, now: time.Now}
}

// SaveMessage inserts one message. Both participants must exist.
// The stored timestamp never goes backwards, even if the wall clock does.
func (s *MessageService) SaveMessage(ctx context.Context, senderID, recipientID uint, content string) (*models.Message, error) {
	ctx, span := tracer.Start(ctx, "MessageService.SaveMessage")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("chat.sender_id", int64(senderID)),
		attribute.Int64("chat.recipient_id", int64(recipientID)),
	)

	message := &models.Message{
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     content,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		want := int64(2)
		if senderID == recipientID {
			want = 1
		}

		var found int64
		if err := tx.Model(&models.Participant{}).
			Where("id IN ?", []uint{senderID, recipientID}).
			Count(&found).Error; err != nil {
			return fmt.Errorf("check participants: %w", err)
		}
		if found != want {
			return ErrParticipantNotFound.Wrap(fmt.Errorf("sender %d or recipient %d", senderID, recipientID))
		}

		message.Timestamp = s.stamp()
		return tx.Create(message).Error
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		return nil, err
	}

	return message, nil
}

func (s *MessageService) stamp() time.Time {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()

	now := s.now().UTC()
	if now.Before(s.last) {
		now = s.last
	}
	s.last = now
	return now
}

// GetConversation returns the latest messages exchanged between two
// participants, oldest first. A non-positive limit returns everything.
func (s *MessageService) GetConversation(ctx context.Context, a, b uint, limit int) ([]models.Message, error) {
	query := s.db.WithContext(ctx).
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)", a, b, b, a).
		Order("timestamp DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var messages []models.Message
	if err := query.Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("load conversation %d/%d: %w", a, b, err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// GetChatPartners lists everyone the user exchanged messages with, plus the
// user itself, ordered by username
func (s *MessageService) GetChatPartners(ctx context.Context, userID uint) ([]models.Participant, error) {
	db := s.db.WithContext(ctx)
	senders := db.Model(&models.Message{}).Select("sender_id").Where("recipient_id = ?", userID)
	recipients := db.Model(&models.Message{}).Select("recipient_id").Where("sender_id = ?", userID)

	var partners []models.Participant
	err := db.Where("id = ?", userID).
		Or("id IN (?)", senders).
		Or("id IN (?)", recipients).
		Order("username").
		Find(&partners).Error
	if err != nil {
		return nil, fmt.Errorf("load chat partners of %d: %w", userID, err)
	}
	return partners, nil
}
