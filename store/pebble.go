package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"studybot/models"
)

// PebbleStore keeps conversations in an embedded Pebble database.
//
// Key format: msg/<len(userID)>/<userID>/<seq:%020d>. The length makes a
// user's prefix unique whatever bytes the id contains.
type PebbleStore struct {
	db  *pebble.DB
	seq *Sequencer
}

func OpenPebble(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, unavailable("open pebble", err)
	}
	return &PebbleStore{db: db, seq: NewSequencer()}, nil
}

func userPrefix(userID string) []byte {
	return []byte(fmt.Sprintf("msg/%d/%s/", len(userID), userID))
}

func messageKey(userID string, seq int64) []byte {
	return append(userPrefix(userID), fmt.Sprintf("%020d", seq)...)
}

// prefixEnd returns the smallest key greater than every key with prefix.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func (s *PebbleStore) userIter(userID string) (*pebble.Iterator, error) {
	prefix := userPrefix(userID)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return nil, unavailable("open iterator", err)
	}
	return iter, nil
}

func (s *PebbleStore) History(_ context.Context, userID string) ([]models.Message, error) {
	iter, err := s.userIter(userID)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	msgs := make([]models.Message, 0)
	for iter.First(); iter.Valid(); iter.Next() {
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			return nil, unavailable("decode message", err)
		}
		if m.UserID != userID {
			continue
		}
		msgs = append(msgs, m)
	}
	if err := iter.Error(); err != nil {
		return nil, unavailable("iterate history", err)
	}
	return msgs, nil
}

// lastSeq returns the highest Seq stored for userID, or 0.
func (s *PebbleStore) lastSeq(userID string) (int64, error) {
	iter, err := s.userIter(userID)
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if !iter.Last() {
		if err := iter.Error(); err != nil {
			return 0, unavailable("seek last message", err)
		}
		return 0, nil
	}
	var m models.Message
	if err := json.Unmarshal(iter.Value(), &m); err != nil {
		return 0, unavailable("decode message", err)
	}
	return m.Seq, nil
}

func (s *PebbleStore) Append(_ context.Context, msgs ...models.Message) ([]models.Message, error) {
	if err := validate(msgs); err != nil {
		return nil, err
	}

	// 時計が巻き戻っても既存の会話より後ろに並ぶようにする
	seen := make(map[string]bool)
	for _, m := range msgs {
		if seen[m.UserID] {
			continue
		}
		seen[m.UserID] = true
		last, err := s.lastSeq(m.UserID)
		if err != nil {
			return nil, err
		}
		s.seq.Observe(last)
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	out := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		m.Seq = s.seq.Next()
		data, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("marshal message: %w", err)
		}
		if err := batch.Set(messageKey(m.UserID, m.Seq), data, nil); err != nil {
			return nil, unavailable("stage message", err)
		}
		out = append(out, m)
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return nil, unavailable("commit batch", err)
	}
	return out, nil
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}
