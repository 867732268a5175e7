// Package room tracks which chat sessions are subscribed to which
// conversation and fans events out to them.
package room

import (
	"context"
	"fmt"
	"strings"
)

const groupPrefix = "chat_"

// ID returns the canonical room for a pair of participants. The smaller id
// always comes first so both sides land in the same room.
func ID(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d_%d", a, b)
}

// GroupName is the pub/sub group a room broadcasts on
func GroupName(roomID string) string {
	return groupPrefix + roomID
}

func roomFromGroup(group string) (string, bool) {
	if !strings.HasPrefix(group, groupPrefix) {
		return "", false
	}
	return strings.TrimPrefix(group, groupPrefix), true
}

// Member is a live session that can receive room events.
type Member interface {
	// Deliver queues an event for the member without blocking. It reports
	// false when the member is closed or cannot keep up.
	Deliver(event []byte) bool
}

// Registry maps rooms to their members.
type Registry interface {
	Join(roomID string, m Member)
	Leave(roomID string, m Member)
	// Broadcast hands the event to every member of the room. Delivery is best
	// effort: a member that cannot accept the event is skipped.
	Broadcast(ctx context.Context, roomID string, event []byte) error
	// Size returns the number of members currently in the room
	Size(roomID string) int
}
