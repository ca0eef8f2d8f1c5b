package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/markdave123-py/studygalaxy/internal/core/leveling"
	"github.com/markdave123-py/studygalaxy/internal/models"
)

const chatbotColumns = `
	id, user_id, name, description, xp, pdf_count, last_activity,
	orbit_radius, orbit_speed, texture_type, planet_size, activity, angle_offset,
	created_at, updated_at
`

// scanChatbot reads one chatbot row; level is derived from xp, never stored.
func scanChatbot(row pgx.Row) (*models.ChatBot, error) {
	var (
		b       models.ChatBot
		texture string
	)
	err := row.Scan(
		&b.ID, &b.UserID, &b.Name, &b.Description, &b.XP, &b.PDFCount, &b.LastActivity,
		&b.PlanetData.OrbitRadius, &b.PlanetData.OrbitSpeed, &texture, &b.PlanetData.Size,
		&b.PlanetData.Activity, &b.PlanetData.AngleOffset,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.PlanetData.TextureType = models.TextureType(texture)
	b.Level = leveling.CalculateLevel(b.XP)
	return &b, nil
}

func chatbotResult(b *models.ChatBot, err error, op string) (*models.ChatBot, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrChatbotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return b, nil
}

func (c *DatabaseClient) CountChatbotsByUser(ctx context.Context, userID string) (int, error) {
	var n int
	if err := c.pool.QueryRow(ctx, `SELECT count(*) FROM chatbots WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chatbots: %w", err)
	}
	return n, nil
}

func (c *DatabaseClient) CreateChatbot(ctx context.Context, bot *models.ChatBot) error {
	if bot == nil {
		return errors.New("nil chatbot")
	}
	q := `
		INSERT INTO chatbots
			(id, user_id, name, description, xp, pdf_count, last_activity,
			 orbit_radius, orbit_speed, texture_type, planet_size, activity, angle_offset,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, now(), $6, $7, $8, $9, $10, $11, now(), now())
		RETURNING ` + chatbotColumns
	pd := bot.PlanetData
	created, err := scanChatbot(c.pool.QueryRow(ctx, q,
		bot.ID, bot.UserID, bot.Name, bot.Description, bot.XP,
		pd.OrbitRadius, pd.OrbitSpeed, string(pd.TextureType), pd.Size, pd.Activity, pd.AngleOffset,
	))
	if err != nil {
		return fmt.Errorf("insert chatbot: %w", err)
	}
	created.IsNewlyCreated = bot.IsNewlyCreated
	*bot = *created
	return nil
}

func (c *DatabaseClient) GetChatbot(ctx context.Context, id, userID string) (*models.ChatBot, error) {
	q := `SELECT ` + chatbotColumns + ` FROM chatbots WHERE id = $1 AND user_id = $2`
	b, err := scanChatbot(c.pool.QueryRow(ctx, q, id, userID))
	return chatbotResult(b, err, "get chatbot")
}

func (c *DatabaseClient) ListChatbotsByUser(ctx context.Context, userID string) ([]models.ChatBot, error) {
	q := `SELECT ` + chatbotColumns + ` FROM chatbots WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := c.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list chatbots: %w", err)
	}
	defer rows.Close()

	out := []models.ChatBot{}
	for rows.Next() {
		b, err := scanChatbot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) UpdateChatbotDetails(ctx context.Context, id, userID string, name, description *string) (*models.ChatBot, error) {
	q := `
		UPDATE chatbots
		SET name = COALESCE($3, name),
		    description = COALESCE($4, description),
		    last_activity = now(),
		    updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + chatbotColumns
	b, err := scanChatbot(c.pool.QueryRow(ctx, q, id, userID, name, description))
	return chatbotResult(b, err, "update chatbot")
}

func (c *DatabaseClient) UpdateChatbotActivity(ctx context.Context, id, userID string, activity float64) (*models.ChatBot, error) {
	q := `
		UPDATE chatbots
		SET activity = $3, last_activity = now(), updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + chatbotColumns
	b, err := scanChatbot(c.pool.QueryRow(ctx, q, id, userID, activity))
	return chatbotResult(b, err, "update chatbot activity")
}

func (c *DatabaseClient) UpdateChatbotXP(ctx context.Context, id, userID string, fromXP, toXP int, planetSize float64) (*models.ChatBot, error) {
	if toXP < 0 {
		return nil, models.ErrInvalidXP
	}
	q := `
		UPDATE chatbots
		SET xp = $4, planet_size = $5, last_activity = now(), updated_at = now()
		WHERE id = $1 AND user_id = $2 AND xp = $3
		RETURNING ` + chatbotColumns
	b, err := scanChatbot(c.pool.QueryRow(ctx, q, id, userID, fromXP, toXP, planetSize))
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the bot is gone or another award landed first.
		if _, getErr := c.GetChatbot(ctx, id, userID); getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("%w: chatbot %s xp is no longer %d", models.ErrConflict, id, fromXP)
	}
	return chatbotResult(b, err, "update chatbot xp")
}

func (c *DatabaseClient) DeleteChatbot(ctx context.Context, id, userID string) error {
	tag, err := c.pool.Exec(ctx, `DELETE FROM chatbots WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete chatbot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrChatbotNotFound
	}
	return nil
}
