package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"studybot/controllers"
	"studybot/models"
	"studybot/services"
	"studybot/store"
)

type echoCompleter struct {
	last models.Prompt
}

func (e *echoCompleter) Complete(_ context.Context, p models.Prompt) (string, error) {
	e.last = p
	return "answer to " + p.Question, nil
}

func newRouter(t *testing.T, origins []string) (*gin.Engine, *echoCompleter) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.NewMemoryStore()
	history := services.NewHistoryService(st, 0)
	completer := &echoCompleter{}
	chat := services.NewChatService(history, completer, st, zap.NewNop())
	return SetupRouter(controllers.NewChatController(chat, history, zap.NewNop()), origins, zap.NewNop()), completer
}

func TestRouter_ChatRoundTrip(t *testing.T) {
	r, completer := newRouter(t, []string{"*"})

	for _, q := range []string{"What is 2+2?", "And 3+3?"} {
		req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"user_id":"u1","question":"`+q+`"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"response":"answer to `+q+`"}`, w.Body.String())
	}
	assert.Len(t, completer.last.History, 2)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/chat/conversations?user_id=u1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Conversations []models.Message `json:"conversations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Conversations, 4)
}

func TestRouter_CORS(t *testing.T) {
	r, _ := newRouter(t, []string{"*"})

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_CORSRestricted(t *testing.T) {
	r, _ := newRouter(t, []string{"https://app.example"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_Metrics(t *testing.T) {
	r, _ := newRouter(t, []string{"*"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "studybot_http_requests_total")
}
