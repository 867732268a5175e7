package ws

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"radiance/backend/internal/bot"
	"radiance/backend/internal/room"
	apperrors "radiance/backend/pkg/errors"
	"radiance/backend/pkg/logger"
)

// State is the lifecycle position of a chat session
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is the server side of one client connection. It is a member of
// exactly one room for its whole life.
type Session struct {
	ID     string
	SelfID uint
	PeerID uint
	RoomID string

	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	limiter *rate.Limiter
	log     *logger.Logger

	state     atomic.Int32
	closeOnce sync.Once
	closeCode int
	closeText string
}

func newSession(hub *Hub, selfID, peerID uint) *Session {
	roomID := room.ID(selfID, peerID)
	id := uuid.New().String()

	return &Session{
		ID:      id,
		SelfID:  selfID,
		PeerID:  peerID,
		RoomID:  roomID,
		hub:     hub,
		send:    make(chan []byte, hub.cfg.SendBuffer),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(hub.cfg.MessageRate), hub.cfg.MessageBurst),
		log: hub.log.WithRoom(roomID).With(
			"session", id,
			"self_id", selfID,
			"peer_id", peerID,
		),
	}
}

// State returns the current lifecycle state
func (s *Session) State() State {
	return State(s.state.Load())
}

// open registers the session in its room. Events delivered before the pumps
// start wait in the send buffer.
func (s *Session) open() {
	s.state.Store(int32(StateOpen))
	s.hub.registry.Join(s.RoomID, s)
	s.hub.track(s)
	s.hub.metrics.SessionOpened(context.Background())
	s.log.Info("Chat session opened")
}

// Deliver queues an event for the client. A client that cannot keep up is
// disconnected rather than allowed to stall the room.
func (s *Session) Deliver(event []byte) bool {
	if s.State() != StateOpen {
		return false
	}

	select {
	case s.send <- event:
		return true
	default:
		s.log.Warn("Send buffer full, closing slow consumer", "buffer", cap(s.send))
		s.closeWith(websocket.ClosePolicyViolation, "slow consumer")
		return false
	}
}

// Close ends the session with a normal closure
func (s *Session) Close() {
	s.closeWith(websocket.CloseNormalClosure, "")
}

func (s *Session) closeWith(code int, text string) {
	s.closeOnce.Do(func() {
		s.closeCode = code
		s.closeText = text
		s.state.Store(int32(StateClosed))
		s.hub.registry.Leave(s.RoomID, s)
		s.hub.untrack(s)
		close(s.done)
		s.hub.metrics.SessionClosed(context.Background())
		s.log.Info("Chat session closed", "code", code, "reason", text)
	})
}

// ReadPump handles inbound messages one at a time, in the order received
func (s *Session) ReadPump() {
	defer func() {
		s.Close()
		s.conn.Close()
	}()

	s.conn.SetReadLimit(s.hub.cfg.MaxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(s.hub.cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(s.hub.cfg.PongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				s.log.Warn("Connection closed unexpectedly", "error", err.Error())
			}
			return
		}
		s.handleInbound(data)
	}
}

// WritePump writes queued events and keeps the connection alive with pings
func (s *Session) WritePump() {
	ticker := time.NewTicker(pingPeriod(s.hub.cfg.PongWait))
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.hub.cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.closeWith(websocket.CloseAbnormalClosure, "write failed")
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.hub.cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.closeWith(websocket.CloseAbnormalClosure, "ping failed")
				return
			}

		case <-s.done:
			if s.closeCode != websocket.CloseAbnormalClosure {
				msg := websocket.FormatCloseMessage(s.closeCode, s.closeText)
				_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.hub.cfg.WriteWait))
			}
			return
		}
	}
}

func (s *Session) handleInbound(data []byte) {
	ctx := context.Background()

	if !s.limiter.Allow() {
		s.reject(ctx, apperrors.CodeRateLimited, "too many messages, slow down")
		return
	}

	ev, err := decodeEvent(data)
	if err != nil {
		s.log.Warn("Dropping malformed message", "error", err.Error())
		s.reject(ctx, apperrors.CodeInvalidPayload, err.Error())
		return
	}

	log := s.log.With("sender_id", ev.SenderID, "receiver_id", ev.ReceiverID)

	saveCtx, cancel := context.WithTimeout(ctx, s.hub.cfg.PersistTimeout)
	_, err = s.hub.store.SaveMessage(saveCtx, ev.SenderID, ev.ReceiverID, ev.Message)
	cancel()
	if err != nil {
		log.LogError(err, "Message not persisted, not broadcasting")
		msg := "message could not be saved"
		if apperrors.GetErrorCode(err) == apperrors.CodeNotFound {
			msg = "unknown sender or receiver"
		}
		s.reject(ctx, apperrors.CodePersistFailed, msg)
		return
	}
	s.hub.metrics.MessageReceived(ctx)

	s.hub.broadcast(ctx, s.RoomID, ev, log)
	s.hub.dispatchReply(ctx, s.RoomID, ev, log)
}

// reject reports a dropped message to this client only
func (s *Session) reject(ctx context.Context, code, message string) {
	s.hub.metrics.MessageRejected(ctx, code)

	frame, err := json.Marshal(newErrorFrame(code, message))
	if err != nil {
		s.log.LogError(err, "Failed to encode error frame")
		return
	}
	s.Deliver(frame)
}

func pingPeriod(pongWait time.Duration) time.Duration {
	return (pongWait * 9) / 10
}

// replyRequest builds the bot task for a message addressed to a bot
func replyRequest(roomID string, ev Event, persona string) bot.Request {
	return bot.Request{
		RoomID:  roomID,
		BotID:   ev.ReceiverID,
		HumanID: ev.SenderID,
		Persona: persona,
		Message: ev.Message,
		Time:    ev.Time,
	}
}
