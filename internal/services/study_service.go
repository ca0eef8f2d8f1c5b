package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/markdave123-py/studygalaxy/internal/core"
	"github.com/markdave123-py/studygalaxy/internal/core/leveling"
	"github.com/markdave123-py/studygalaxy/internal/models"
)

const maxQuizQuestions = 50

// StudyService runs chat and study commands against the AI backend and
// rewards them with XP.
type StudyService struct {
	db        core.DbClient
	ai        core.AIBackend
	xp        *ChatbotService
	quizCount int
}

func NewStudyService(db core.DbClient, ai core.AIBackend, xp *ChatbotService, quizCount int) *StudyService {
	if quizCount < 1 {
		quizCount = 10
	}
	return &StudyService{db: db, ai: ai, xp: xp, quizCount: quizCount}
}

// StudyResult is an assistant reply plus the XP it earned.
type StudyResult struct {
	Content string          `json:"content,omitempty"`
	Quiz    json.RawMessage `json:"quiz,omitempty"`
	Award   *models.XPAward `json:"award,omitempty"`
}

func (s *StudyService) Chat(ctx context.Context, botID, userID, message string) (*StudyResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is required", models.ErrInvalidInput)
	}
	if err := s.owns(ctx, botID, userID); err != nil {
		return nil, err
	}

	reply, err := s.ai.Chat(ctx, message, botID, userID)
	if err != nil {
		return nil, err
	}
	return s.rewarded(ctx, botID, userID, leveling.ActionAskQuestion, &StudyResult{Content: reply}), nil
}

func (s *StudyService) Summarize(ctx context.Context, botID, userID string) (*StudyResult, error) {
	if err := s.owns(ctx, botID, userID); err != nil {
		return nil, err
	}
	summary, err := s.ai.Summarize(ctx, botID, userID)
	if err != nil {
		return nil, err
	}
	return s.rewarded(ctx, botID, userID, leveling.ActionSummaryCommand, &StudyResult{Content: summary}), nil
}

func (s *StudyService) ShortNotes(ctx context.Context, botID, userID string) (*StudyResult, error) {
	if err := s.owns(ctx, botID, userID); err != nil {
		return nil, err
	}
	notes, err := s.ai.ShortNotes(ctx, botID, userID)
	if err != nil {
		return nil, err
	}
	return s.rewarded(ctx, botID, userID, leveling.ActionShortNotes, &StudyResult{Content: notes}), nil
}

// Quiz asks for questionCount questions; zero means the configured default.
func (s *StudyService) Quiz(ctx context.Context, botID, userID string, questionCount int) (*StudyResult, error) {
	if questionCount == 0 {
		questionCount = s.quizCount
	}
	if questionCount < 1 || questionCount > maxQuizQuestions {
		return nil, fmt.Errorf("%w: questionCount must be between 1 and %d", models.ErrInvalidInput, maxQuizQuestions)
	}
	if err := s.owns(ctx, botID, userID); err != nil {
		return nil, err
	}
	quiz, err := s.ai.Quiz(ctx, botID, userID, questionCount)
	if err != nil {
		return nil, err
	}
	return s.rewarded(ctx, botID, userID, leveling.ActionQuizMe, &StudyResult{Quiz: quiz}), nil
}

func (s *StudyService) owns(ctx context.Context, botID, userID string) error {
	_, err := s.db.GetChatbot(ctx, botID, userID)
	return err
}

func (s *StudyService) rewarded(ctx context.Context, botID, userID string, action leveling.Action, res *StudyResult) *StudyResult {
	award, err := s.xp.AwardXP(ctx, botID, userID, action)
	if err != nil {
		slog.Warn("study xp not granted", "chatbot_id", botID, "action", action, "error", err)
		return res
	}
	res.Award = award
	return res
}
