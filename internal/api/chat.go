package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"radiance/backend/internal/models"
	"radiance/backend/internal/room"
	apperrors "radiance/backend/pkg/errors"
	"radiance/backend/pkg/middleware"
)

// HistoryStore reads chat history
type HistoryStore interface {
	GetConversation(ctx context.Context, a, b uint, limit int) ([]models.Message, error)
	GetChatPartners(ctx context.Context, userID uint) ([]models.Participant, error)
}

// ParticipantLookup resolves participants by id
type ParticipantLookup interface {
	GetParticipant(ctx context.Context, id uint) (*models.Participant, error)
}

// ChatHandler serves chat history for the authenticated participant
type ChatHandler struct {
	history      HistoryStore
	participants ParticipantLookup
	maxLimit     int
}

// NewChatHandler creates a chat history handler. maxLimit caps the number of
// messages returned per request.
func NewChatHandler(history HistoryStore, participants ParticipantLookup, maxLimit int) *ChatHandler {
	if maxLimit <= 0 {
		maxLimit = 200
	}
	return &ChatHandler{history: history, participants: participants, maxLimit: maxLimit}
}

// RegisterRoutes mounts the handler on an authenticated group
func (h *ChatHandler) RegisterRoutes(rg *gin.RouterGroup) {
	chats := rg.Group("/chats")
	{
		chats.GET("", h.ListPartners)
		chats.GET("/:user_id/messages", h.GetConversation)
	}
}

// ListPartners returns everyone the caller has chatted with
func (h *ChatHandler) ListPartners(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.Error(apperrors.NewUnauthorizedError(apperrors.CodeAuthRequired, "Authentication required"))
		return
	}

	ctx := middleware.WithRequestContext(c.Request.Context(), c)
	partners, err := h.history.GetChatPartners(ctx, userID)
	if err != nil {
		c.Error(err)
		return
	}

	out := make([]models.ParticipantSummary, 0, len(partners))
	for i := range partners {
		out = append(out, partners[i].Summary())
	}
	c.JSON(http.StatusOK, gin.H{"partners": out})
}

// GetConversation returns the latest messages between the caller and a peer,
// oldest first
func (h *ChatHandler) GetConversation(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.Error(apperrors.NewUnauthorizedError(apperrors.CodeAuthRequired, "Authentication required"))
		return
	}

	peerID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil || peerID == 0 {
		c.Error(apperrors.NewBadRequestError(apperrors.CodeInvalidPeer, "user_id must be a positive integer"))
		return
	}

	limit := h.maxLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.Error(apperrors.NewBadRequestError(apperrors.CodeInvalidPayload, "limit must be a positive integer"))
			return
		}
		if n < limit {
			limit = n
		}
	}

	ctx := middleware.WithRequestContext(c.Request.Context(), c)
	peer, err := h.participants.GetParticipant(ctx, uint(peerID))
	if err != nil {
		c.Error(err)
		return
	}

	messages, err := h.history.GetConversation(ctx, userID, peer.ID, limit)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"peer":     peer.Summary(),
		"room":     room.ID(userID, peer.ID),
		"messages": messages,
	})
}
