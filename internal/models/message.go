package models

import (
	"time"
)

// Message is a persisted direct chat message
type Message struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	SenderID    uint         `gorm:"not null;index:idx_messages_pair,priority:1" json:"sender_id"`
	RecipientID uint         `gorm:"not null;index:idx_messages_pair,priority:2" json:"recipient_id"`
	Sender      *Participant `gorm:"foreignKey:SenderID;constraint:OnDelete:CASCADE" json:"-"`
	Recipient   *Participant `gorm:"foreignKey:RecipientID;constraint:OnDelete:CASCADE" json:"-"`
	Content     string       `gorm:"type:text" json:"content"`
	Timestamp   time.Time    `gorm:"index" json:"timestamp"`
}

// AutoMigrate lists the models owned by the chat relay schema
func AutoMigrate() []any {
	return []any{&Participant{}, &Message{}}
}
