package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorFindsWrappedAppError(t *testing.T) {
	base := NewNotFoundError(CodeNotFound, "participant not found")
	wrapped := fmt.Errorf("lookup: %w", base)

	assert.Same(t, base, FromError(wrapped))
	assert.Equal(t, http.StatusNotFound, GetStatusCode(wrapped))
	assert.Equal(t, CodeNotFound, GetErrorCode(wrapped))
}

func TestFromErrorPlainError(t *testing.T) {
	err := stderrors.New("boom")

	appErr := FromError(err)
	assert.Equal(t, http.StatusInternalServerError, appErr.StatusCode)
	assert.Equal(t, CodeInternal, appErr.Code)
	assert.ErrorIs(t, appErr, err)
	assert.Equal(t, "UNKNOWN_ERROR", GetErrorCode(err))
	assert.Nil(t, FromError(nil))
}

func TestAppErrorIsMatchesCode(t *testing.T) {
	a := NewBadRequestError(CodeInvalidPeer, "one")
	b := NewBadRequestError(CodeInvalidPeer, "two")

	assert.ErrorIs(t, a, b)
	assert.NotErrorIs(t, a, NewBadRequestError(CodeInvalidPayload, "one"))
}

func TestErrorHandlerWritesEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler(), RecoveryWithLogger())
	r.GET("/missing", func(c *gin.Context) {
		_ = c.Error(NewNotFoundError(CodeNotFound, "nothing here"))
	})
	r.GET("/panic", func(*gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, CodeNotFound, body.Error.Code)
	assert.Equal(t, "nothing here", body.Error.Message)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "SERVER_ERROR")
}
