package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/studygalaxy/internal/core/leveling"
	"github.com/markdave123-py/studygalaxy/internal/models"
	"github.com/markdave123-py/studygalaxy/internal/testutil"
)

func newStudyService(t *testing.T) (*StudyService, *testutil.MockDB, *testutil.MockAI) {
	t.Helper()
	db := testutil.NewMockDB()
	ai := testutil.NewMockAI()
	db.PutChatbot(models.ChatBot{ID: "bot-1", UserID: "user-1"})
	bots := NewChatbotService(db, testutil.NewMockObjectStore(), "b", nil)
	return NewStudyService(db, ai, bots, 10), db, ai
}

func TestStudyCommandsAwardXP(t *testing.T) {
	svc, db, _ := newStudyService(t)
	ctx := context.Background()

	res, err := svc.Chat(ctx, "bot-1", "user-1", " what is mitosis? ")
	require.NoError(t, err)
	assert.Equal(t, "answer", res.Content)
	assert.Equal(t, string(leveling.ActionAskQuestion), res.Award.Action)

	res, err = svc.Summarize(ctx, "bot-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "summary", res.Content)
	assert.Equal(t, 15, res.Award.Amount)

	res, err = svc.ShortNotes(ctx, "bot-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "notes", res.Content)
	assert.Equal(t, 12, res.Award.Amount)

	res, err = svc.Quiz(ctx, "bot-1", "user-1", 0)
	require.NoError(t, err)
	assert.JSONEq(t, `{"questions":[]}`, string(res.Quiz))
	assert.Equal(t, 20, res.Award.Amount)

	bot, err := db.GetChatbot(ctx, "bot-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 5+15+12+20, bot.XP)
}

func TestStudyChecksOwnershipBeforeCallingBackend(t *testing.T) {
	svc, _, ai := newStudyService(t)
	ctx := context.Background()

	_, err := svc.Chat(ctx, "bot-1", "intruder", "hi")
	assert.ErrorIs(t, err, models.ErrChatbotNotFound)
	_, err = svc.Chat(ctx, "bot-1", "user-1", "   ")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	_, err = svc.Quiz(ctx, "bot-1", "user-1", 500)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	assert.Empty(t, ai.Calls())
}

func TestStudyBackendFailureGrantsNothing(t *testing.T) {
	svc, db, ai := newStudyService(t)
	ai.StudyErr = errors.New("model overloaded")

	_, err := svc.Summarize(context.Background(), "bot-1", "user-1")
	require.EqualError(t, err, "model overloaded")

	bot, err := db.GetChatbot(context.Background(), "bot-1", "user-1")
	require.NoError(t, err)
	assert.Zero(t, bot.XP)
}
