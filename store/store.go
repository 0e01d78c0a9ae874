// Package store persists conversation messages per user.
//
// Every backend keeps a user's history append-only and returns it ordered by
// Seq, which each backend assigns on Append in argument order.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"studybot/models"
)

// ErrUnavailable wraps every failure to reach or use the backing store.
var ErrUnavailable = errors.New("conversation store unavailable")

// Store is the conversation log.
type Store interface {
	// History returns every message recorded for userID, oldest first.
	// An unknown user yields an empty slice.
	History(ctx context.Context, userID string) ([]models.Message, error)
	// Append records msgs in order and returns them with Seq assigned.
	Append(ctx context.Context, msgs ...models.Message) ([]models.Message, error)
	Close() error
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}

func validate(msgs []models.Message) error {
	for _, m := range msgs {
		if !m.Role.Valid() {
			return fmt.Errorf("invalid role %q", m.Role)
		}
	}
	return nil
}

// Sequencer hands out strictly increasing sequence numbers based on the
// UTC clock in nanoseconds.
type Sequencer struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewSequencer() *Sequencer {
	return &Sequencer{now: time.Now}
}

// Observe raises the floor so later values are greater than seq. Stores
// call it with the highest Seq already persisted, which keeps order when
// the clock has stepped backwards since that write.
func (s *Sequencer) Observe(seq int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq > s.last {
		s.last = seq
	}
}

func (s *Sequencer) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.now().UTC().UnixNano()
	if n <= s.last {
		n = s.last + 1
	}
	s.last = n
	return n
}
