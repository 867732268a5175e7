package room

import (
	"context"
	"sync"

	"radiance/backend/pkg/logger"
	"radiance/backend/shared/observability"
)

// LocalRegistry keeps room membership in process memory.
type LocalRegistry struct {
	mu      sync.RWMutex
	rooms   map[string]map[Member]struct{}
	log     *logger.Logger
	metrics *observability.ChatMetrics
}

// NewLocalRegistry creates an empty registry. metrics may be nil.
func NewLocalRegistry(log *logger.Logger, metrics *observability.ChatMetrics) *LocalRegistry {
	if log == nil {
		log = logger.Nop()
	}
	return &LocalRegistry{
		rooms:   make(map[string]map[Member]struct{}),
		log:     log,
		metrics: metrics,
	}
}

// Join adds m to the room. Joining twice is a no-op.
func (r *LocalRegistry) Join(roomID string, m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[Member]struct{})
		r.rooms[roomID] = members
	}
	members[m] = struct{}{}
}

// Leave removes m from the room. Leaving a room m never joined is a no-op.
func (r *LocalRegistry) Leave(roomID string, m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(members, m)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
}

// Broadcast delivers the event to the members present when it is called
func (r *LocalRegistry) Broadcast(ctx context.Context, roomID string, event []byte) error {
	r.Deliver(ctx, roomID, event)
	return nil
}

// Deliver fans the event out and returns how many members accepted it
func (r *LocalRegistry) Deliver(ctx context.Context, roomID string, event []byte) int {
	members := r.snapshot(roomID)

	delivered := 0
	for _, m := range members {
		if m.Deliver(event) {
			delivered++
		}
	}

	r.metrics.Delivered(ctx, delivered)
	if dropped := len(members) - delivered; dropped > 0 {
		r.metrics.Dropped(ctx, dropped)
		r.log.Warn("Room event not delivered to every member",
			"room", roomID,
			"members", len(members),
			"dropped", dropped,
		)
	}
	return delivered
}

// Size returns the number of members in the room
func (r *LocalRegistry) Size(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms[roomID])
}

// Rooms returns the number of non-empty rooms
func (r *LocalRegistry) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms)
}

func (r *LocalRegistry) snapshot(roomID string) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[roomID]
	out := make([]Member, 0, len(members))
	for m := range members {
		out = append(out, m)
	}
	return out
}
