package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"studybot/metrics"
	"studybot/models"
)

// SystemInstruction opens every prompt.
const SystemInstruction = "You are a study bot that helps users with study-related questions."

// ErrCompletion marks a failed completion call. No messages are written
// when it is returned.
var ErrCompletion = errors.New("completion service failure")

// MessageAppender is the write half of the conversation store.
type MessageAppender interface {
	Append(ctx context.Context, msgs ...models.Message) ([]models.Message, error)
}

// ChatService runs one question/answer exchange: read history, call the
// model, record both turns.
type ChatService struct {
	history   *HistoryService
	completer Completer
	store     MessageAppender
	log       *zap.Logger

	now   func() time.Time
	newID func() string
	locks *userLocks
}

type ChatOption func(*ChatService)

// WithClock overrides the clock used to stamp messages.
func WithClock(now func() time.Time) ChatOption {
	return func(s *ChatService) { s.now = now }
}

// WithIDGenerator overrides message id generation.
func WithIDGenerator(newID func() string) ChatOption {
	return func(s *ChatService) { s.newID = newID }
}

// WithPerUserSerialization makes concurrent exchanges for the same user
// run one at a time, so each one reads the previous one's writes.
func WithPerUserSerialization() ChatOption {
	return func(s *ChatService) { s.locks = newUserLocks() }
}

func NewChatService(history *HistoryService, completer Completer, store MessageAppender, log *zap.Logger, opts ...ChatOption) *ChatService {
	s := &ChatService{
		history:   history,
		completer: completer,
		store:     store,
		log:       log,
		now:       Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Chat answers question in the context of userID's conversation and
// records the exchange. A failed write after a successful completion
// fails the request; the answer is discarded.
func (s *ChatService) Chat(ctx context.Context, userID, question string) (string, error) {
	if s.locks != nil {
		unlock := s.locks.Lock(userID)
		defer unlock()
	}

	history, err := s.history.Turns(ctx, userID)
	if err != nil {
		metrics.ChatExchanges.WithLabelValues(metrics.OutcomeHistoryError).Inc()
		s.log.Error("load_history_failed", zap.String("user_id", userID), zap.Error(err))
		return "", err
	}

	// システム指示、過去の会話、今回の質問の順に並べる
	prompt := models.Prompt{
		System:   SystemInstruction,
		History:  history,
		Question: question,
	}

	start := time.Now()
	answer, err := s.completer.Complete(ctx, prompt)
	metrics.CompletionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ChatExchanges.WithLabelValues(metrics.OutcomeCompletionError).Inc()
		s.log.Error("completion_failed", zap.String("user_id", userID), zap.Int("history_turns", len(history)), zap.Error(err))
		if !errors.Is(err, ErrCompletion) {
			err = fmt.Errorf("%w: %w", ErrCompletion, err)
		}
		return "", err
	}

	at := s.now().UTC()
	exchange := []models.Message{
		{ID: s.newID(), UserID: userID, Role: models.RoleUser, Content: question, Timestamp: at},
		{ID: s.newID(), UserID: userID, Role: models.RoleAssistant, Content: answer, Timestamp: at},
	}

	// Writes outlive a cancelled request once the completion has succeeded.
	if _, err := s.store.Append(context.WithoutCancel(ctx), exchange...); err != nil {
		metrics.ChatExchanges.WithLabelValues(metrics.OutcomePersistError).Inc()
		s.log.Error("persist_exchange_failed", zap.String("user_id", userID), zap.Error(err))
		return "", fmt.Errorf("persist exchange: %w", err)
	}

	metrics.ChatExchanges.WithLabelValues(metrics.OutcomeOK).Inc()
	s.log.Debug("exchange_recorded", zap.String("user_id", userID), zap.Int("history_turns", len(history)))
	return answer, nil
}
