package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radiance/backend/internal/service"
	"radiance/backend/internal/testutil"
	apperrors "radiance/backend/pkg/errors"
	"radiance/backend/pkg/jwt"
	"radiance/backend/pkg/logger"
	"radiance/backend/pkg/middleware"
)

type chatFixture struct {
	engine *gin.Engine
	tokens *jwt.Service
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	testutil.CreateParticipant(t, db, 3, "alice", false, "")
	testutil.CreateParticipant(t, db, 7, "bob", false, "")
	testutil.CreateParticipant(t, db, 9, "helper", true, "friendly assistant")
	testutil.CreateParticipant(t, db, 11, "zed", false, "")

	store := service.NewMessageService(db)
	ctx := context.Background()
	for _, m := range []struct {
		from, to uint
		text     string
	}{
		{3, 7, "hi"},
		{7, 3, "hey"},
		{3, 7, "how are you?"},
		{3, 9, "hello bot"},
	} {
		_, err := store.SaveMessage(ctx, m.from, m.to, m.text)
		require.NoError(t, err)
	}

	tokens := jwt.NewService("test-secret", time.Hour)
	handler := NewChatHandler(store, service.NewParticipantService(db, nil), 2)

	r := gin.New()
	r.Use(apperrors.ErrorHandler())
	v1 := r.Group("/api/v1", middleware.JWTAuthMiddleware(tokens, logger.Nop()))
	handler.RegisterRoutes(v1)

	return &chatFixture{engine: r, tokens: tokens}
}

func (f *chatFixture) get(t *testing.T, self uint, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if self != 0 {
		token, err := f.tokens.GenerateToken(self, "")
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestListPartners(t *testing.T) {
	f := newChatFixture(t)

	w := f.get(t, 3, "/api/v1/chats")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Partners []struct {
			ID       uint   `json:"id"`
			Username string `json:"username"`
			IsBot    bool   `json:"is_bot"`
		} `json:"partners"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	names := make([]string, 0, len(body.Partners))
	for _, p := range body.Partners {
		names = append(names, p.Username)
	}
	assert.Equal(t, []string{"alice", "bob", "helper"}, names)
	assert.True(t, body.Partners[2].IsBot)
}

func TestGetConversationAppliesLimit(t *testing.T) {
	f := newChatFixture(t)

	w := f.get(t, 7, "/api/v1/chats/3/messages")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Peer struct {
			ID uint `json:"id"`
		} `json:"peer"`
		Room     string `json:"room"`
		Messages []struct {
			SenderID uint   `json:"sender_id"`
			Content  string `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, uint(3), body.Peer.ID)
	assert.Equal(t, "3_7", body.Room)
	require.Len(t, body.Messages, 2)
	assert.Equal(t, "hey", body.Messages[0].Content)
	assert.Equal(t, "how are you?", body.Messages[1].Content)

	w = f.get(t, 7, "/api/v1/chats/3/messages?limit=1")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Messages, 1)
	assert.Equal(t, "how are you?", body.Messages[0].Content)
}

func TestGetConversationErrors(t *testing.T) {
	f := newChatFixture(t)

	assert.Equal(t, http.StatusUnauthorized, f.get(t, 0, "/api/v1/chats/3/messages").Code)
	assert.Equal(t, http.StatusBadRequest, f.get(t, 7, "/api/v1/chats/abc/messages").Code)
	assert.Equal(t, http.StatusBadRequest, f.get(t, 7, "/api/v1/chats/3/messages?limit=-1").Code)
	assert.Equal(t, http.StatusNotFound, f.get(t, 7, "/api/v1/chats/404/messages").Code)
}
