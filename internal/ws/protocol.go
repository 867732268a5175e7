// Package ws relays direct messages between participants over websockets.
package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// inboundPayload is what a client sends. Pointers tell a missing field apart
// from a zero value; an empty message or time is allowed.
type inboundPayload struct {
	Message    *string `json:"message" validate:"required"`
	ReceiverID *uint   `json:"receiver_id" validate:"required,gt=0"`
	SenderID   *uint   `json:"sender_id" validate:"required,gt=0"`
	Time       *string `json:"time" validate:"required"`
}

// Event is a chat message as broadcast to every member of a room
type Event struct {
	Message    string `json:"message"`
	ReceiverID uint   `json:"receiver_id"`
	SenderID   uint   `json:"sender_id"`
	Time       string `json:"time"`
}

// ErrorFrame is sent to the originating session only, when one of its
// messages was not relayed
type ErrorFrame struct {
	Type  string      `json:"type"`
	Error ErrorDetail `json:"error"`
}

// ErrorDetail explains why a message was rejected
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newErrorFrame(code, message string) ErrorFrame {
	return ErrorFrame{Type: "error", Error: ErrorDetail{Code: code, Message: message}}
}

// decodeEvent parses and validates an inbound payload
func decodeEvent(data []byte) (Event, error) {
	var p inboundPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return Event{}, fmt.Errorf("malformed JSON: %w", err)
	}

	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, jsonName(fe.Field()))
			}
			return Event{}, fmt.Errorf("missing or invalid fields: %s", strings.Join(fields, ", "))
		}
		return Event{}, err
	}

	return Event{
		Message:    *p.Message,
		ReceiverID: *p.ReceiverID,
		SenderID:   *p.SenderID,
		Time:       *p.Time,
	}, nil
}

func jsonName(field string) string {
	switch field {
	case "ReceiverID":
		return "receiver_id"
	case "SenderID":
		return "sender_id"
	default:
		return strings.ToLower(field)
	}
}
