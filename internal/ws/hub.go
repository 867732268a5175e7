package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"radiance/backend/internal/bot"
	"radiance/backend/internal/models"
	"radiance/backend/internal/room"
	apperrors "radiance/backend/pkg/errors"
	"radiance/backend/pkg/logger"
	"radiance/backend/pkg/middleware"
	"radiance/backend/shared/observability"
)

// MessageStore persists chat messages
type MessageStore interface {
	SaveMessage(ctx context.Context, senderID, recipientID uint, content string) (*models.Message, error)
}

// ParticipantLookup resolves participants by id
type ParticipantLookup interface {
	GetParticipant(ctx context.Context, id uint) (*models.Participant, error)
}

// ReplyDispatcher schedules bot replies off the session's read loop
type ReplyDispatcher interface {
	Submit(req bot.Request) error
}

// Config tunes chat sessions
type Config struct {
	SendBuffer     int
	MaxMessageSize int64
	WriteWait      time.Duration
	PongWait       time.Duration
	PersistTimeout time.Duration
	// MessageRate and MessageBurst bound inbound messages per connection
	MessageRate    float64
	MessageBurst   int
	AllowedOrigins []string
}

// DefaultConfig returns the session settings used when nothing is configured
func DefaultConfig() Config {
	return Config{
		SendBuffer:     256,
		MaxMessageSize: 64 << 10,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PersistTimeout: 10 * time.Second,
		MessageRate:    5,
		MessageBurst:   10,
		AllowedOrigins: []string{"*"},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	if c.WriteWait <= 0 {
		c.WriteWait = d.WriteWait
	}
	if c.PongWait <= 0 {
		c.PongWait = d.PongWait
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = d.PersistTimeout
	}
	if c.MessageRate <= 0 {
		c.MessageRate = d.MessageRate
	}
	if c.MessageBurst <= 0 {
		c.MessageBurst = d.MessageBurst
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = d.AllowedOrigins
	}
	return c
}

// Hub accepts chat connections and wires each session to the room registry,
// the message store and the bot replier.
type Hub struct {
	registry     room.Registry
	store        MessageStore
	participants ParticipantLookup
	replies      ReplyDispatcher
	cfg          Config
	log          *logger.Logger
	metrics      *observability.ChatMetrics
	upgrader     websocket.Upgrader

	mu       sync.Mutex
	sessions map[*Session]struct{}
}

// NewHub creates a hub. replies may be nil to disable bot replies; log and
// metrics may be nil.
func NewHub(registry room.Registry, store MessageStore, participants ParticipantLookup,
	replies ReplyDispatcher, cfg Config, log *logger.Logger, metrics *observability.ChatMetrics) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	cfg = cfg.withDefaults()

	h := &Hub{
		registry:     registry,
		store:        store,
		participants: participants,
		replies:      replies,
		cfg:          cfg,
		log:          log.With("component", "chat_hub"),
		metrics:      metrics,
		sessions:     make(map[*Session]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin:      originChecker(cfg.AllowedOrigins),
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}
	return h
}

// ServeChat upgrades GET /ws/chat/:user_id. The caller is identified by the
// auth middleware and the route names the peer.
func (h *Hub) ServeChat(c *gin.Context) {
	peerID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil || peerID == 0 {
		c.Error(apperrors.NewBadRequestError(apperrors.CodeInvalidPeer, "user_id must be a positive integer"))
		c.Abort()
		return
	}

	selfID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.Error(apperrors.NewUnauthorizedError(apperrors.CodeAuthRequired, "Authentication required"))
		c.Abort()
		return
	}

	if _, err := h.participants.GetParticipant(c.Request.Context(), uint(peerID)); err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	s := newSession(h, selfID, uint(peerID))
	s.open()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already answered the client.
		logger.FromContext(c).LogError(err, "WebSocket upgrade failed", "room", s.RoomID)
		s.closeWith(websocket.CloseAbnormalClosure, "upgrade failed")
		return
	}
	s.conn = conn

	go s.WritePump()
	go s.ReadPump()
}

func (h *Hub) broadcast(ctx context.Context, roomID string, ev Event, log *logger.Logger) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.LogError(err, "Failed to encode chat event")
		return
	}
	if err := h.registry.Broadcast(ctx, roomID, data); err != nil {
		log.LogError(err, "Broadcast failed")
	}
}

// dispatchReply queues a bot reply when the receiver is a bot. It never
// waits for the reply itself, and the receiver lookup is bounded by
// PersistTimeout.
func (h *Hub) dispatchReply(ctx context.Context, roomID string, ev Event, log *logger.Logger) {
	if h.replies == nil {
		return
	}

	lookupCtx, cancel := context.WithTimeout(ctx, h.cfg.PersistTimeout)
	receiver, err := h.participants.GetParticipant(lookupCtx, ev.ReceiverID)
	cancel()
	if err != nil {
		log.LogError(err, "Receiver lookup failed, no bot reply")
		return
	}
	if !receiver.IsBot {
		return
	}

	if err := h.replies.Submit(replyRequest(roomID, ev, receiver.BotDescription)); err != nil {
		if errors.Is(err, bot.ErrQueueFull) || errors.Is(err, bot.ErrReplierClosed) {
			log.Warn("Bot reply not scheduled", "error", err.Error())
			return
		}
		log.LogError(err, "Bot reply not scheduled")
	}
}

// NewReplySink persists a bot reply as a message from the bot to the human
// and broadcasts it to the room the trigger was sent to.
func NewReplySink(store MessageStore, registry room.Registry) bot.Sink {
	return func(ctx context.Context, req bot.Request, reply string) error {
		if _, err := store.SaveMessage(ctx, req.BotID, req.HumanID, reply); err != nil {
			return err
		}

		data, err := json.Marshal(Event{
			Message:    reply,
			ReceiverID: req.HumanID,
			SenderID:   req.BotID,
			Time:       req.Time,
		})
		if err != nil {
			return err
		}
		return registry.Broadcast(ctx, req.RoomID, data)
	}
}

func (h *Hub) track(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s] = struct{}{}
}

func (h *Hub) untrack(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, s)
}

// ActiveSessions returns the number of open sessions on this process
func (h *Hub) ActiveSessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Shutdown closes every open session with a going-away frame
func (h *Hub) Shutdown() {
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.closeWith(websocket.CloseGoingAway, "server shutting down")
	}
	h.log.Info("Chat sessions closed for shutdown", "count", len(sessions))
}

func originChecker(allowed []string) func(*http.Request) bool {
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
