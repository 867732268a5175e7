// Package seed creates the bot accounts the chat relay answers for.
package seed

import (
	"context"
	"crypto/rand"
	_ "embed"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"radiance/backend/internal/models"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed bots.yaml
var defaultBots []byte

// Bot describes one bot account
type Bot struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Persona  string `yaml:"persona"`
}

type botFile struct {
	Bots []Bot `yaml:"bots"`
}

// Result counts what Seed did
type Result struct {
	Created []string
	Skipped []string
}

// DefaultBots returns the built-in bot roster
func DefaultBots() ([]Bot, error) {
	return parse(defaultBots)
}

// LoadFile reads a bot roster from a YAML file
func LoadFile(path string) ([]Bot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return parse(data)
}

func parse(data []byte) ([]Bot, error) {
	var f botFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse bot roster: %w", err)
	}
	for i := range f.Bots {
		b := &f.Bots[i]
		b.Username = strings.TrimSpace(b.Username)
		b.Email = strings.TrimSpace(b.Email)
		b.Persona = strings.TrimSpace(b.Persona)
		if b.Username == "" || b.Email == "" {
			return nil, fmt.Errorf("bot %d: username and email are required", i+1)
		}
	}
	return f.Bots, nil
}

// Seed creates every bot whose email is not taken yet. Bots get a random
// password since they never log in.
func Seed(ctx context.Context, db *gorm.DB, bots []Bot) (Result, error) {
	var res Result

	for _, b := range bots {
		var existing models.Participant
		err := db.WithContext(ctx).Where("email = ?", b.Email).First(&existing).Error
		if err == nil {
			res.Skipped = append(res.Skipped, b.Email)
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return res, fmt.Errorf("look up %s: %w", b.Email, err)
		}

		password, err := generatePassword(12)
		if err != nil {
			return res, err
		}

		p := &models.Participant{
			Username:       b.Username,
			Email:          b.Email,
			Password:       password,
			IsBot:          true,
			BotDescription: b.Persona,
		}
		if err := db.WithContext(ctx).Create(p).Error; err != nil {
			return res, fmt.Errorf("create %s: %w", b.Email, err)
		}
		res.Created = append(res.Created, b.Email)
	}

	return res, nil
}

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!#$%&*+-=?@^_"

func generatePassword(length int) (string, error) {
	limit := big.NewInt(int64(len(passwordAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}
