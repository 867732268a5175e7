package validator

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "radiance/backend/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const schemaPath = "../../api/openapi.yaml"

func newEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	v, err := NewOpenAPIValidator(schemaPath)
	require.NoError(t, err)

	r := gin.New()
	r.Use(apperrors.ErrorHandler(), v.Middleware())
	r.GET("/api/v1/chats/:user_id/messages", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/ws/chat/:user_id", func(c *gin.Context) { c.Status(http.StatusTeapot) })
	return r
}

func TestOpenAPIValidatorAcceptsValidRequest(t *testing.T) {
	r := newEngine(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/chats/7/messages?limit=20", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOpenAPIValidatorRejectsBadParameters(t *testing.T) {
	r := newEngine(t)

	for _, target := range []string{
		"/api/v1/chats/7/messages?limit=abc",
		"/api/v1/chats/7/messages?limit=0",
		"/api/v1/chats/0/messages",
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, target)

		var body struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, apperrors.CodeInvalidPayload, body.Error.Code)
	}
}

func TestOpenAPIValidatorIgnoresUndocumentedRoutes(t *testing.T) {
	r := newEngine(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws/chat/abc", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestNewOpenAPIValidatorMissingFile(t *testing.T) {
	_, err := NewOpenAPIValidator("does-not-exist.yaml")
	assert.Error(t, err)
}
