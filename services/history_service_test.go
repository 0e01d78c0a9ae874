package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studybot/models"
	"studybot/store"
)

func seed(t *testing.T, st store.Store, userID string, texts ...string) {
	t.Helper()
	for i := 0; i+1 < len(texts); i += 2 {
		_, err := st.Append(context.Background(),
			models.Message{ID: userID + texts[i], UserID: userID, Role: models.RoleUser, Content: texts[i], Timestamp: time.Now()},
			models.Message{ID: userID + texts[i+1], UserID: userID, Role: models.RoleAssistant, Content: texts[i+1], Timestamp: time.Now()},
		)
		require.NoError(t, err)
	}
}

func TestHistoryService_UnknownUser(t *testing.T) {
	turns, err := NewHistoryService(store.NewMemoryStore(), 0).Turns(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.NotNil(t, turns)
	assert.Empty(t, turns)
}

func TestHistoryService_OldestFirst(t *testing.T) {
	st := store.NewMemoryStore()
	seed(t, st, "u1", "q1", "a1", "q2", "a2")

	turns, err := NewHistoryService(st, 0).Turns(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []models.Turn{
		{Role: models.RoleUser, Text: "q1"},
		{Role: models.RoleAssistant, Text: "a1"},
		{Role: models.RoleUser, Text: "q2"},
		{Role: models.RoleAssistant, Text: "a2"},
	}, turns)
}

func TestHistoryService_Limit(t *testing.T) {
	st := store.NewMemoryStore()
	seed(t, st, "u1", "q1", "a1", "q2", "a2", "q3", "a3")

	turns, err := NewHistoryService(st, 2).Turns(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []models.Turn{
		{Role: models.RoleUser, Text: "q3"},
		{Role: models.RoleAssistant, Text: "a3"},
	}, turns)

	msgs, err := NewHistoryService(st, 2).Messages(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, msgs, 6)
}
