package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/studygalaxy/internal/core"
	"github.com/markdave123-py/studygalaxy/internal/core/galaxy"
	"github.com/markdave123-py/studygalaxy/internal/core/leveling"
	"github.com/markdave123-py/studygalaxy/internal/models"
)

const (
	maxXPAttempts      = 3
	storageCleanupJobs = 4
)

type ChatbotService struct {
	db     core.DbClient
	obj    core.ObjectClient
	bucket string
	placer *galaxy.Placer
}

func NewChatbotService(db core.DbClient, obj core.ObjectClient, bucket string, placer *galaxy.Placer) *ChatbotService {
	if placer == nil {
		placer = galaxy.NewPlacer(nil)
	}
	return &ChatbotService{db: db, obj: obj, bucket: bucket, placer: placer}
}

// CreateResult is a freshly created chatbot and the XP its birth earned.
type CreateResult struct {
	Bot   *models.ChatBot `json:"bot"`
	Award *models.XPAward `json:"award,omitempty"`
}

// Create places a new planet on the next orbit ring and grants CREATE_BOT XP.
func (s *ChatbotService) Create(ctx context.Context, userID, name, description string) (*CreateResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", models.ErrInvalidInput)
	}

	count, err := s.db.CountChatbotsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	bot := &models.ChatBot{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        name,
		Description: strings.TrimSpace(description),
		PlanetData:  s.placer.Place(count),
	}
	if err := s.db.CreateChatbot(ctx, bot); err != nil {
		return nil, err
	}
	slog.Info("chatbot created", "chatbot_id", bot.ID, "user_id", userID, "orbit", bot.PlanetData.OrbitRadius)

	award, err := s.AwardXP(ctx, bot.ID, userID, leveling.ActionCreateBot)
	if err != nil {
		slog.Warn("create bonus not granted", "chatbot_id", bot.ID, "error", err)
		return &CreateResult{Bot: bot}, nil
	}
	return &CreateResult{Bot: award.Bot, Award: award}, nil
}

func (s *ChatbotService) List(ctx context.Context, userID string) ([]models.ChatBot, error) {
	return s.db.ListChatbotsByUser(ctx, userID)
}

func (s *ChatbotService) Get(ctx context.Context, id, userID string) (*models.ChatBot, error) {
	return s.db.GetChatbot(ctx, id, userID)
}

// Update renames or re-describes a chatbot; nil fields are left alone.
func (s *ChatbotService) Update(ctx context.Context, id, userID string, name, description *string) (*models.ChatBot, error) {
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", models.ErrInvalidInput)
		}
		name = &trimmed
	}
	return s.db.UpdateChatbotDetails(ctx, id, userID, name, description)
}

func (s *ChatbotService) UpdateActivity(ctx context.Context, id, userID string, activity float64) (*models.ChatBot, error) {
	return s.db.UpdateChatbotActivity(ctx, id, userID, galaxy.ClampActivity(activity))
}

// Delete removes the chatbot's stored PDFs and then the row; documents and
// chunks go with it through the foreign keys.
func (s *ChatbotService) Delete(ctx context.Context, id, userID string) error {
	if _, err := s.db.GetChatbot(ctx, id, userID); err != nil {
		return err
	}

	paths, err := s.db.ListDocumentPathsByChatbot(ctx, id)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(storageCleanupJobs)
	for _, key := range paths {
		g.Go(func() error {
			return s.obj.DeleteFile(gctx, s.bucket, key)
		})
	}
	// Orphaned objects are preferable to a chatbot that can never be deleted.
	if err := g.Wait(); err != nil {
		slog.Warn("storage cleanup incomplete", "chatbot_id", id, "error", err)
	}

	if err := s.db.DeleteChatbot(ctx, id, userID); err != nil {
		return err
	}
	slog.Info("chatbot deleted", "chatbot_id", id, "documents", len(paths))
	return nil
}

// AwardXP grants the fixed reward for action.
func (s *ChatbotService) AwardXP(ctx context.Context, botID, userID string, action leveling.Action) (*models.XPAward, error) {
	return s.AwardXPAmount(ctx, botID, userID, action, action.Reward())
}

// AwardXPAmount grants amount XP, recomputing level and planet size. Concurrent
// awards on the same chatbot are serialised by retrying on conflict.
func (s *ChatbotService) AwardXPAmount(ctx context.Context, botID, userID string, action leveling.Action, amount int) (*models.XPAward, error) {
	if amount <= 0 {
		return nil, models.ErrInvalidXP
	}

	var lastErr error
	for range maxXPAttempts {
		bot, err := s.db.GetChatbot(ctx, botID, userID)
		if err != nil {
			return nil, err
		}

		info := leveling.LevelUp(bot.XP, amount)
		size := leveling.PlanetScale(info.NewLevel, leveling.DefaultBaseSize)

		updated, err := s.db.UpdateChatbotXP(ctx, botID, userID, bot.XP, info.NewXP, size)
		if errors.Is(err, models.ErrConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}

		if info.LeveledUp {
			slog.Info("chatbot leveled up", "chatbot_id", botID, "from", info.OldLevel, "to", info.NewLevel)
		}
		return &models.XPAward{
			Action:    string(action),
			Amount:    amount,
			LeveledUp: info.LeveledUp,
			OldLevel:  info.OldLevel,
			NewLevel:  info.NewLevel,
			NewXP:     info.NewXP,
			Bot:       updated,
		}, nil
	}
	return nil, lastErr
}
