package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Participant is a user or bot account. The chat relay only reads it;
// rows are owned by the accounts subsystem (and the seedbots tool).
type Participant struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Username       string    `gorm:"index" json:"username"`
	Email          string    `gorm:"uniqueIndex" json:"email"`
	Password       string    `json:"-"`
	IsBot          bool      `gorm:"default:false" json:"is_bot"`
	BotDescription string    `gorm:"type:text" json:"bot_description,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ParticipantSummary is the public projection used by the chat API
type ParticipantSummary struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	IsBot    bool   `json:"is_bot"`
}

// Summary returns the public projection of the participant
func (p *Participant) Summary() ParticipantSummary {
	return ParticipantSummary{ID: p.ID, Username: p.Username, IsBot: p.IsBot}
}

// HashPassword hashes a password for storage
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// BeforeCreate hashes a plain-text password before the row is written
func (p *Participant) BeforeCreate(tx *gorm.DB) error {
	if p.Password == "" {
		return nil
	}
	hashed, err := HashPassword(p.Password)
	if err != nil {
		return err
	}
	p.Password = hashed
	return nil
}
