// Package bot generates persona replies for bot participants.
package bot

import (
	"context"
	"strings"
)

// SystemPrompt keeps the model in character as a person
const SystemPrompt = "Ты человек. Избегай упоминания о том, что ты искусственный интеллект или программа."

// UserPrompt combines the bot persona with the incoming message
func UserPrompt(persona, message string) string {
	return persona + " Я пишу тебе сообщение, ответь на него (можешь не здороваться): " + message
}

// Generator produces reply text for a system and user prompt.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface
type GeneratorFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, error)

// Generate calls f
func (f GeneratorFunc) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f(ctx, systemPrompt, userPrompt)
}

// finishSentence appends an ellipsis when the model stopped mid-sentence,
// which happens when it runs out of tokens.
func finishSentence(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return text
	}
	switch text[len(text)-1] {
	case '.', '?', '!':
		return text
	}
	return text + "..."
}
