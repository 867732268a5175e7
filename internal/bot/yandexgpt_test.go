package bot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radiance/backend/pkg/resilience"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *YandexGPT {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewYandexGPT(YandexGPTConfig{
		Endpoint:    srv.URL,
		APIKey:      "secret",
		FolderID:    "folder",
		Temperature: 0.3,
		MaxTokens:   100,
		Timeout:     time.Second,
	}, nil, nil)
}

func replyWith(text string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":{"alternatives":[{"message":{"role":"assistant","text":` +
			mustJSON(text) + `},"status":"ALTERNATIVE_STATUS_FINAL"}]}}`))
	}
}

func mustJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestYandexGPTSendsCompletionRequest(t *testing.T) {
	var got completionRequest
	var auth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		replyWith("Привет!")(w, r)
	})

	reply, err := client.Generate(context.Background(), SystemPrompt, UserPrompt("friendly assistant", "hi"))
	require.NoError(t, err)

	assert.Equal(t, "Привет!", reply)
	assert.Equal(t, "Api-Key secret", auth)
	assert.Equal(t, "gpt://folder/yandexgpt/latest", got.ModelURI)
	assert.False(t, got.CompletionOptions.Stream)
	assert.Equal(t, 0.3, got.CompletionOptions.Temperature)
	assert.Equal(t, "100", got.CompletionOptions.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, SystemPrompt, got.Messages[0].Text)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "friendly assistant Я пишу тебе сообщение, ответь на него (можешь не здороваться): hi", got.Messages[1].Text)
}

func TestYandexGPTBearerScheme(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		replyWith("ok.")(w, r)
	}))
	defer srv.Close()

	client := NewYandexGPT(YandexGPTConfig{Endpoint: srv.URL, APIKey: "iam", FolderID: "folder", AuthScheme: "Bearer"}, nil, nil)
	_, err := client.Generate(context.Background(), "s", "u")
	require.NoError(t, err)
	assert.Equal(t, "Bearer iam", auth)
}

func TestYandexGPTFinishesCutOffReplies(t *testing.T) {
	cases := map[string]string{
		"hello back":   "hello back...",
		"hello back.":  "hello back.",
		"how are you?": "how are you?",
		"wow!":         "wow!",
		"  trailing ":  "trailing...",
	}
	for in, want := range cases {
		client := newTestClient(t, replyWith(in))
		reply, err := client.Generate(context.Background(), "s", "u")
		require.NoError(t, err)
		assert.Equal(t, want, reply, "input %q", in)
	}
}

func TestYandexGPTFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"non-200", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		}},
		{"malformed json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"result":`))
		}},
		{"no alternatives", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"result":{"alternatives":[]}}`))
		}},
		{"empty text", replyWith("   ")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler)
			_, err := client.Generate(context.Background(), "s", "u")
			assert.ErrorIs(t, err, ErrGeneratorFailed)
		})
	}
}

func TestYandexGPTRequiresCredentials(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		replyWith("ok.")(w, r)
	}))
	defer srv.Close()

	tests := []struct {
		name string
		cfg  YandexGPTConfig
	}{
		{"nothing set", YandexGPTConfig{Endpoint: srv.URL}},
		{"no folder", YandexGPTConfig{Endpoint: srv.URL, APIKey: "k"}},
		{"no key", YandexGPTConfig{Endpoint: srv.URL, FolderID: "folder"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewYandexGPT(tt.cfg, nil, nil).Generate(context.Background(), "s", "u")
			assert.ErrorIs(t, err, ErrNotConfigured)
		})
	}
	assert.Zero(t, calls.Load())
}

func TestYandexGPTRespectsContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.Generate(ctx, "s", "u")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestYandexGPTOpensBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	breaker := resilience.NewCircuitBreaker(resilience.Config{
		Name:             "yandexgpt",
		FailureThreshold: 2,
		SuccessThreshold: 1,
		CoolDown:         time.Minute,
	}, nil)
	client := NewYandexGPT(YandexGPTConfig{Endpoint: srv.URL, APIKey: "k", FolderID: "folder"}, breaker, nil)

	for i := 0; i < 3; i++ {
		_, _ = client.Generate(context.Background(), "s", "u")
	}
	_, err := client.Generate(context.Background(), "s", "u")

	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
}
