package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/markdave123-py/studygalaxy/internal/models"
)

func (c *DatabaseClient) GetStreak(ctx context.Context, userID string) (*models.UserStreak, error) {
	const q = `
		SELECT user_id, current_streak, longest_streak, last_activity_date, updated_at
		FROM user_streaks WHERE user_id = $1
	`
	var s models.UserStreak
	err := c.pool.QueryRow(ctx, q, userID).Scan(
		&s.UserID, &s.CurrentStreak, &s.LongestStreak, &s.LastActivityDate, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get streak: %w", err)
	}
	return &s, nil
}

func (c *DatabaseClient) UpsertStreak(ctx context.Context, s *models.UserStreak) error {
	if s == nil {
		return errors.New("nil streak")
	}
	const q = `
		INSERT INTO user_streaks (user_id, current_streak, longest_streak, last_activity_date, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id) DO UPDATE
		SET current_streak = EXCLUDED.current_streak,
		    longest_streak = EXCLUDED.longest_streak,
		    last_activity_date = EXCLUDED.last_activity_date,
		    updated_at = now()
		RETURNING updated_at
	`
	if err := c.pool.QueryRow(ctx, q, s.UserID, s.CurrentStreak, s.LongestStreak, s.LastActivityDate).Scan(&s.UpdatedAt); err != nil {
		return fmt.Errorf("upsert streak: %w", err)
	}
	return nil
}
