package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/studygalaxy/internal/models"
	"github.com/markdave123-py/studygalaxy/internal/testutil"
)

func day(d int) time.Time {
	return time.Date(2024, 5, d, 0, 0, 0, 0, time.UTC)
}

func TestNextStreak(t *testing.T) {
	first := NextStreak(nil, "u", day(1).Add(15*time.Hour))
	assert.Equal(t, 1, first.CurrentStreak)
	assert.Equal(t, 1, first.LongestStreak)
	assert.Equal(t, day(1), first.LastActivityDate)

	prev := &models.UserStreak{UserID: "u", CurrentStreak: 4, LongestStreak: 6, LastActivityDate: day(10)}

	same := NextStreak(prev, "u", day(10).Add(20*time.Hour))
	assert.Equal(t, 4, same.CurrentStreak)

	next := NextStreak(prev, "u", day(11).Add(time.Hour))
	assert.Equal(t, 5, next.CurrentStreak)
	assert.Equal(t, 6, next.LongestStreak)
	assert.Equal(t, day(11), next.LastActivityDate)

	gap := NextStreak(prev, "u", day(13))
	assert.Equal(t, 1, gap.CurrentStreak)
	assert.Equal(t, 6, gap.LongestStreak)

	record := NextStreak(&models.UserStreak{CurrentStreak: 6, LongestStreak: 6, LastActivityDate: day(10)}, "u", day(11))
	assert.Equal(t, 7, record.LongestStreak)
}

func TestTouchAwardsBonusOncePerDay(t *testing.T) {
	db := testutil.NewMockDB()
	db.PutChatbot(models.ChatBot{ID: "bot-1", UserID: "user-1"})
	svc := NewStreakService(db, NewChatbotService(db, testutil.NewMockObjectStore(), "b", nil))
	ctx := context.Background()

	now := day(3).Add(9 * time.Hour)
	svc.now = func() time.Time { return now }

	empty, err := svc.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Zero(t, empty.CurrentStreak)

	res, err := svc.Touch(ctx, "user-1", "bot-1")
	require.NoError(t, err)
	assert.True(t, res.Advanced)
	assert.Equal(t, 27, res.BonusXP)
	require.NotNil(t, res.Award)
	assert.Equal(t, 27, res.Award.NewXP)

	res, err = svc.Touch(ctx, "user-1", "bot-1")
	require.NoError(t, err)
	assert.False(t, res.Advanced)
	assert.Nil(t, res.Award)

	now = day(4).Add(time.Hour)
	res, err = svc.Touch(ctx, "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Streak.CurrentStreak)
	assert.Equal(t, 29, res.BonusXP)
	assert.Nil(t, res.Award)
}

func TestTouchWithForeignBotKeepsTheDay(t *testing.T) {
	db := testutil.NewMockDB()
	db.PutChatbot(models.ChatBot{ID: "bot-1", UserID: "user-1"})
	db.PutChatbot(models.ChatBot{ID: "bot-2", UserID: "user-2"})
	svc := NewStreakService(db, NewChatbotService(db, testutil.NewMockObjectStore(), "b", nil))
	ctx := context.Background()
	svc.now = func() time.Time { return day(3).Add(9 * time.Hour) }

	_, err := svc.Touch(ctx, "user-1", "bot-2")
	require.ErrorIs(t, err, models.ErrChatbotNotFound)

	st, err := svc.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Zero(t, st.CurrentStreak)

	res, err := svc.Touch(ctx, "user-1", "bot-1")
	require.NoError(t, err)
	assert.True(t, res.Advanced)
	assert.Equal(t, 1, res.Streak.CurrentStreak)
	require.NotNil(t, res.Award)
	assert.Equal(t, 27, res.Award.NewXP)

	other, err := db.GetChatbot(ctx, "bot-2", "user-2")
	require.NoError(t, err)
	assert.Zero(t, other.XP)
}
