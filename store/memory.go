package store

import (
	"context"
	"sync"

	"studybot/models"
)

// MemoryStore keeps conversations in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	seq   int64
	convs map[string][]models.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{convs: make(map[string][]models.Message)}
}

func (s *MemoryStore) History(_ context.Context, userID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Message, len(s.convs[userID]))
	copy(out, s.convs[userID])
	return out, nil
}

func (s *MemoryStore) Append(_ context.Context, msgs ...models.Message) ([]models.Message, error) {
	if err := validate(msgs); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		s.seq++
		m.Seq = s.seq
		s.convs[m.UserID] = append(s.convs[m.UserID], m)
		out = append(out, m)
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
