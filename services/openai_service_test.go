package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studybot/config"
	"studybot/models"
)

func completionServer(t *testing.T, handler func(w http.ResponseWriter, req openai.ChatCompletionRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openai.ChatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		handler(w, req)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeAnswer(w http.ResponseWriter, content string) {
	json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
		ID:     "chatcmpl-1",
		Object: "chat.completion",
		Model:  "test-model",
		Choices: []openai.ChatCompletionChoice{{
			Index:        0,
			Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
			FinishReason: openai.FinishReasonStop,
		}},
	})
}

func newTestOpenAI(url string, timeout time.Duration) *OpenAIService {
	return NewOpenAIService(config.Completion{APIKey: "test-key", BaseURL: url + "/", Model: "test-model", Timeout: timeout})
}

func TestOpenAIService_Complete(t *testing.T) {
	var got openai.ChatCompletionRequest
	srv := completionServer(t, func(w http.ResponseWriter, req openai.ChatCompletionRequest) {
		got = req
		writeAnswer(w, "6")
	})

	answer, err := newTestOpenAI(srv.URL, 0).Complete(context.Background(), models.Prompt{
		System: SystemInstruction,
		History: []models.Turn{
			{Role: models.RoleUser, Text: "What is 2+2?"},
			{Role: models.RoleAssistant, Text: "4"},
		},
		Question: "And 3+3?",
	})
	require.NoError(t, err)
	assert.Equal(t, "6", answer)

	assert.Equal(t, "test-model", got.Model)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, got.Messages[0].Role)
	assert.Equal(t, SystemInstruction, got.Messages[0].Content)
	assert.Equal(t, openai.ChatMessageRoleUser, got.Messages[1].Role)
	assert.Equal(t, openai.ChatMessageRoleAssistant, got.Messages[2].Role)
	assert.Equal(t, "4", got.Messages[2].Content)
	assert.Equal(t, "And 3+3?", got.Messages[3].Content)
}

func TestOpenAIService_ProviderError(t *testing.T) {
	srv := completionServer(t, func(w http.ResponseWriter, _ openai.ChatCompletionRequest) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"message":"over capacity","type":"server_error"}}`))
	})

	_, err := newTestOpenAI(srv.URL, 0).Complete(context.Background(), models.Prompt{Question: "q"})
	require.ErrorIs(t, err, ErrCompletion)

	var apiErr *openai.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.HTTPStatusCode)
}

func TestOpenAIService_NoChoices(t *testing.T) {
	srv := completionServer(t, func(w http.ResponseWriter, _ openai.ChatCompletionRequest) {
		w.Write([]byte(`{"id":"x","choices":[]}`))
	})

	_, err := newTestOpenAI(srv.URL, 0).Complete(context.Background(), models.Prompt{Question: "q"})
	assert.ErrorIs(t, err, ErrCompletion)
}

func TestOpenAIService_EmptyContentIsAnAnswer(t *testing.T) {
	srv := completionServer(t, func(w http.ResponseWriter, _ openai.ChatCompletionRequest) {
		w.Write([]byte(`{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":""}}]}`))
	})

	answer, err := newTestOpenAI(srv.URL, 0).Complete(context.Background(), models.Prompt{Question: "q"})
	require.NoError(t, err)
	assert.Equal(t, "", answer)
}

func TestOpenAIService_Timeout(t *testing.T) {
	srv := completionServer(t, func(w http.ResponseWriter, _ openai.ChatCompletionRequest) {
		time.Sleep(200 * time.Millisecond)
		writeAnswer(w, "late")
	})

	_, err := newTestOpenAI(srv.URL, 20*time.Millisecond).Complete(context.Background(), models.Prompt{Question: "q"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrCompletion)
}
