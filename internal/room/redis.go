package room

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"radiance/backend/pkg/logger"
)

// RedisRegistry shares room broadcasts between server processes. Membership
// stays local; events travel over Redis pub/sub on the room's group name and
// every process delivers them to its own members.
type RedisRegistry struct {
	local  *LocalRegistry
	client *redis.Client
	log    *logger.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

// NewRedisRegistry wraps local with Redis fan-out. Call Start before use.
func NewRedisRegistry(client *redis.Client, local *LocalRegistry, log *logger.Logger) *RedisRegistry {
	if log == nil {
		log = logger.Nop()
	}
	return &RedisRegistry{
		local:  local,
		client: client,
		log:    log,
	}
}

// Start subscribes to every chat group and begins relaying events
func (r *RedisRegistry) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pubsub != nil {
		return nil
	}

	pubsub := r.client.PSubscribe(ctx, groupPrefix+"*")
	// Wait for the subscription confirmation so no publish is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe to room groups: %w", err)
	}

	r.pubsub = pubsub
	r.done = make(chan struct{})
	go r.relay(pubsub.Channel(), r.done)

	r.log.Info("Room registry subscribed to Redis", "pattern", groupPrefix+"*")
	return nil
}

func (r *RedisRegistry) relay(ch <-chan *redis.Message, done chan struct{}) {
	defer close(done)

	for msg := range ch {
		roomID, ok := roomFromGroup(msg.Channel)
		if !ok {
			continue
		}
		r.local.Deliver(context.Background(), roomID, []byte(msg.Payload))
	}
}

// Join adds m to the room on this process
func (r *RedisRegistry) Join(roomID string, m Member) {
	r.local.Join(roomID, m)
}

// Leave removes m from the room on this process
func (r *RedisRegistry) Leave(roomID string, m Member) {
	r.local.Leave(roomID, m)
}

// Broadcast publishes the event to the room's group
func (r *RedisRegistry) Broadcast(ctx context.Context, roomID string, event []byte) error {
	if err := r.client.Publish(ctx, GroupName(roomID), event).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", GroupName(roomID), err)
	}
	return nil
}

// Size returns the number of members in the room on this process
func (r *RedisRegistry) Size(roomID string) int {
	return r.local.Size(roomID)
}

// Close stops the subscription and waits for the relay to finish
func (r *RedisRegistry) Close() error {
	r.mu.Lock()
	pubsub, done := r.pubsub, r.done
	r.pubsub = nil
	r.mu.Unlock()

	if pubsub == nil {
		return nil
	}
	err := pubsub.Close()
	<-done
	return err
}
