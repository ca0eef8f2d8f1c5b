package services

import (
	"context"
	"errors"
	"time"

	"github.com/markdave123-py/studygalaxy/internal/core"
	"github.com/markdave123-py/studygalaxy/internal/core/leveling"
	"github.com/markdave123-py/studygalaxy/internal/models"
)

type StreakService struct {
	db  core.DbClient
	xp  *ChatbotService
	now func() time.Time
}

func NewStreakService(db core.DbClient, xp *ChatbotService) *StreakService {
	return &StreakService{db: db, xp: xp, now: time.Now}
}

// TouchResult reports the streak after a study day is recorded.
type TouchResult struct {
	Streak   *models.UserStreak `json:"streak"`
	Advanced bool               `json:"advanced"`
	BonusXP  int                `json:"bonusXP"`
	Award    *models.XPAward    `json:"award,omitempty"`
}

// Get returns the user's streak; users who never studied get a zero streak.
func (s *StreakService) Get(ctx context.Context, userID string) (*models.UserStreak, error) {
	st, err := s.db.GetStreak(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return &models.UserStreak{UserID: userID}, nil
	}
	return st, err
}

// Touch records a study day. A second touch on the same day changes nothing;
// a touch the day after extends the streak; any longer gap restarts it.
// When the streak advances and botID is set, the streak bonus goes to that bot.
func (s *StreakService) Touch(ctx context.Context, userID, botID string) (*TouchResult, error) {
	today := s.now().UTC()

	prev, err := s.db.GetStreak(ctx, userID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	if prev != nil && leveling.SameDay(prev.LastActivityDate.UTC(), today) {
		return &TouchResult{Streak: prev}, nil
	}

	// Check the bot before recording the day, or a rejected award would
	// spend the day's bonus.
	if botID != "" {
		if _, err := s.db.GetChatbot(ctx, botID, userID); err != nil {
			return nil, err
		}
	}

	next := NextStreak(prev, userID, today)

	if err := s.db.UpsertStreak(ctx, next); err != nil {
		return nil, err
	}

	res := &TouchResult{Streak: next, Advanced: true, BonusXP: leveling.DailyStreakXP(next.CurrentStreak)}
	if botID != "" {
		award, err := s.xp.AwardXPAmount(ctx, botID, userID, leveling.ActionDailyStreak, res.BonusXP)
		if err != nil {
			return nil, err
		}
		res.Award = award
	}
	return res, nil
}

// NextStreak applies one study day at today to prev (nil for a first visit).
func NextStreak(prev *models.UserStreak, userID string, today time.Time) *models.UserStreak {
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	if prev == nil {
		return &models.UserStreak{UserID: userID, CurrentStreak: 1, LongestStreak: 1, LastActivityDate: day}
	}

	last := prev.LastActivityDate.UTC()
	next := *prev
	switch {
	case leveling.SameDay(last, day):
		return &next
	case leveling.AreConsecutiveDays(last, day) && day.After(last):
		next.CurrentStreak = prev.CurrentStreak + 1
	default:
		next.CurrentStreak = 1
	}
	next.LongestStreak = max(prev.LongestStreak, next.CurrentStreak)
	next.LastActivityDate = day
	return &next
}
