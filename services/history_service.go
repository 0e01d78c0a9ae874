package services

import (
	"context"

	"studybot/models"
)

// HistoryReader is the read half of the conversation store.
type HistoryReader interface {
	History(ctx context.Context, userID string) ([]models.Message, error)
}

// HistoryService assembles a user's prior turns for the completion prompt.
type HistoryService struct {
	store HistoryReader
	limit int
}

// NewHistoryService returns an assembler over store. limit > 0 keeps only
// the most recent limit turns; zero sends everything.
func NewHistoryService(store HistoryReader, limit int) *HistoryService {
	return &HistoryService{store: store, limit: limit}
}

// Messages returns every stored message for userID, oldest first.
func (h *HistoryService) Messages(ctx context.Context, userID string) ([]models.Message, error) {
	return h.store.History(ctx, userID)
}

// Turns returns the (role, text) pairs of userID's conversation, oldest
// first. Store errors are returned unchanged.
func (h *HistoryService) Turns(ctx context.Context, userID string) ([]models.Turn, error) {
	msgs, err := h.store.History(ctx, userID)
	if err != nil {
		return nil, err
	}
	if h.limit > 0 && len(msgs) > h.limit {
		msgs = msgs[len(msgs)-h.limit:]
	}

	turns := make([]models.Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, m.Turn())
	}
	return turns, nil
}
