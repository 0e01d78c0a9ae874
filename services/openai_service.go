package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"studybot/config"
	"studybot/models"
)

// Completer produces the assistant's answer for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt models.Prompt) (string, error)
}

// OpenAIService calls an OpenAI-compatible chat completions endpoint
// (Groq by default).
type OpenAIService struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func NewOpenAIService(cfg config.Completion) *OpenAIService {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &OpenAIService{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}
}

func (s *OpenAIService) Complete(ctx context.Context, prompt models.Prompt) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	turns := prompt.Turns()
	messages := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(t.Role),
			Content: t.Text,
		})
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    s.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCompletion, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in completion response", ErrCompletion)
	}

	// 空の回答もそのまま保存する
	return resp.Choices[0].Message.Content, nil
}
