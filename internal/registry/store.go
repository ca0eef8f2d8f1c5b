package registry

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/studygalaxy/internal/core/leveling"
	"github.com/markdave123-py/studygalaxy/internal/models"
)

// ToastTTL is how long an XP toast stays visible.
const ToastTTL = 3 * time.Second

// XPToast is a transient "+N XP" notification.
type XPToast struct {
	ID          string          `json:"id"`
	BotID       string          `json:"botId"`
	XPAmount    int             `json:"xpAmount"`
	Action      leveling.Action `json:"action"`
	PlanetName  string          `json:"planetName"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// UploadStatus mirrors the pipeline phase as seen by the client.
type UploadStatus string

const (
	UploadIdle       UploadStatus = "idle"
	UploadUploading  UploadStatus = "uploading"
	UploadExtracting UploadStatus = "extracting"
	UploadChunking   UploadStatus = "chunking"
	UploadEmbedding  UploadStatus = "embedding"
	UploadComplete   UploadStatus = "complete"
	UploadError      UploadStatus = "error"
)

// UploadState is the progress of the most recent upload.
type UploadState struct {
	Uploading  bool         `json:"uploading"`
	Progress   int          `json:"progress"`
	Status     UploadStatus `json:"status"`
	Message    string       `json:"message"`
	ChatbotID  string       `json:"chatbotId,omitempty"`
	DocumentID string       `json:"documentId,omitempty"`
}

// Store caches the signed-in user's chatbots. It is safe for concurrent use;
// API calls are made without holding the lock.
type Store struct {
	api API
	now func() time.Time

	// feed redial backoff bounds
	minBackoff time.Duration
	maxBackoff time.Duration

	mu            sync.RWMutex
	chatbots      []models.ChatBot
	loading       bool
	newPlanetID   string
	selectedBotID string
	messages      []models.Message
	toasts        []XPToast
	levelUps      []models.LevelUpEvent
	upload        UploadState
	onChange      func()
}

func NewStore(api API) *Store {
	return &Store{
		api:        api,
		now:        time.Now,
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
		upload:     UploadState{Status: UploadIdle},
	}
}

// OnChange registers fn to run after every state change. fn runs without
// the store lock held.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// update applies fn under the write lock and then fires the change hook.
func (s *Store) update(fn func()) {
	s.mu.Lock()
	fn()
	hook := s.onChange
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
}

func (s *Store) Chatbots() []models.ChatBot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.chatbots)
}

func (s *Store) Chatbot(id string) (models.ChatBot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.chatbots[i], true
	}
	return models.ChatBot{}, false
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Store) NewPlanetID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.newPlanetID
}

func (s *Store) SelectedBotID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedBotID
}

func (s *Store) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.messages)
}

func (s *Store) Upload() UploadState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.upload
}

// indexOf must be called with s.mu held.
func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.chatbots, func(b models.ChatBot) bool { return b.ID == id })
}

// replace must be called with s.mu held. The local newly-created flag survives.
func (s *Store) replace(bot models.ChatBot) bool {
	i := s.indexOf(bot.ID)
	if i < 0 {
		return false
	}
	bot.IsNewlyCreated = bot.IsNewlyCreated || s.chatbots[i].IsNewlyCreated
	s.chatbots[i] = bot
	return true
}

// Load replaces the cache with the server's list.
func (s *Store) Load(ctx context.Context) error {
	s.update(func() { s.loading = true })

	bots, err := s.api.ListChatbots(ctx)

	s.update(func() {
		s.loading = false
		if err == nil {
			s.chatbots = bots
		}
	})
	if err != nil {
		return fmt.Errorf("load chatbots: %w", err)
	}
	return nil
}

// Create asks the server for a new chatbot. If the change feed already
// delivered it, the existing entry is refreshed rather than duplicated.
func (s *Store) Create(ctx context.Context, name, description string) (*models.ChatBot, error) {
	bot, award, err := s.api.CreateChatbot(ctx, name, description)
	if err != nil {
		return nil, err
	}
	if award != nil && award.Bot != nil {
		bot = award.Bot
	}

	s.update(func() {
		if !s.replace(*bot) {
			b := *bot
			b.IsNewlyCreated = true
			s.chatbots = append(s.chatbots, b)
			s.newPlanetID = b.ID
		}
	})
	if award != nil {
		s.recordAward(bot.ID, bot.Name, award)
	}

	out, _ := s.Chatbot(bot.ID)
	return &out, nil
}

func (s *Store) Update(ctx context.Context, id string, name, description *string) (*models.ChatBot, error) {
	bot, err := s.api.UpdateChatbot(ctx, id, name, description)
	if err != nil {
		return nil, err
	}
	s.update(func() { s.replace(*bot) })
	return bot, nil
}

func (s *Store) UpdateActivity(ctx context.Context, id string, activity float64) (*models.ChatBot, error) {
	bot, err := s.api.UpdateActivity(ctx, id, activity)
	if err != nil {
		return nil, err
	}
	s.update(func() { s.replace(*bot) })
	return bot, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.api.DeleteChatbot(ctx, id); err != nil {
		return err
	}
	s.update(func() { s.remove(id) })
	return nil
}

// remove must be called with s.mu held.
func (s *Store) remove(id string) {
	s.chatbots = slices.DeleteFunc(s.chatbots, func(b models.ChatBot) bool { return b.ID == id })
	if s.selectedBotID == id {
		s.selectedBotID = ""
	}
	if s.newPlanetID == id {
		s.newPlanetID = ""
	}
}

// ApplyEvent folds one change feed event into the cache.
func (s *Store) ApplyEvent(ev models.ChangeEvent) {
	s.update(func() {
		switch ev.Type {
		case models.EventChatbotInsert:
			if ev.Chatbot == nil || s.indexOf(ev.Chatbot.ID) >= 0 {
				return
			}
			b := *ev.Chatbot
			b.IsNewlyCreated = true
			s.chatbots = append(s.chatbots, b)
			s.newPlanetID = b.ID

		case models.EventChatbotUpdate:
			if ev.Chatbot != nil {
				s.replace(*ev.Chatbot)
			}

		case models.EventChatbotDelete:
			s.remove(ev.ChatbotID)

		case models.EventUploadProgress:
			if ev.Progress != nil {
				s.applyProgress(*ev.Progress)
			}
		}
	})
}

// applyProgress must be called with s.mu held.
func (s *Store) applyProgress(p models.UploadProgress) {
	status := UploadStatus(p.Phase)
	if p.Failed {
		status = UploadError
	}
	s.upload = UploadState{
		Uploading:  status != UploadComplete && status != UploadError,
		Progress:   p.Progress,
		Status:     status,
		Message:    p.Message,
		ChatbotID:  p.ChatbotID,
		DocumentID: p.DocumentID,
	}
}

// AwardXP grants action's XP to a cached chatbot; unknown chatbots are ignored.
func (s *Store) AwardXP(ctx context.Context, botID string, action leveling.Action) error {
	bot, ok := s.Chatbot(botID)
	if !ok {
		return nil
	}
	award, err := s.api.AwardXP(ctx, botID, action)
	if err != nil {
		return err
	}
	s.recordAward(botID, bot.Name, award)
	return nil
}

// recordAward applies the server's updated bot and queues the notifications.
func (s *Store) recordAward(botID, planetName string, award *models.XPAward) {
	if award == nil {
		return
	}
	now := s.now()
	action := leveling.Action(award.Action)

	s.update(func() {
		if award.Bot != nil {
			s.replace(*award.Bot)
			planetName = award.Bot.Name
		}
		s.toasts = append(s.toasts, XPToast{
			ID:          fmt.Sprintf("%s-%d", botID, now.UnixMilli()),
			BotID:       botID,
			XPAmount:    award.Amount,
			Action:      action,
			PlanetName:  planetName,
			Description: action.Description(),
			CreatedAt:   now,
		})
		if award.LeveledUp {
			s.levelUps = append(s.levelUps, models.LevelUpEvent{
				BotID:      botID,
				OldLevel:   award.OldLevel,
				NewLevel:   award.NewLevel,
				PlanetName: planetName,
				Title:      leveling.PlanetTitle(award.NewLevel),
			})
		}
	})
}

// Toasts returns the toasts still visible at now.
func (s *Store) Toasts(now time.Time) []XPToast {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []XPToast
	for _, t := range s.toasts {
		if now.Sub(t.CreatedAt) < ToastTTL {
			out = append(out, t)
		}
	}
	return out
}

// PruneToasts drops expired toasts and reports how many were removed.
func (s *Store) PruneToasts(now time.Time) int {
	var n int
	s.update(func() {
		before := len(s.toasts)
		s.toasts = slices.DeleteFunc(s.toasts, func(t XPToast) bool { return now.Sub(t.CreatedAt) >= ToastTTL })
		n = before - len(s.toasts)
	})
	return n
}

func (s *Store) DismissToast(id string) {
	s.update(func() {
		s.toasts = slices.DeleteFunc(s.toasts, func(t XPToast) bool { return t.ID == id })
	})
}

func (s *Store) LevelUps() []models.LevelUpEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.levelUps)
}

func (s *Store) ClearLevelUps(botID string) {
	s.update(func() {
		s.levelUps = slices.DeleteFunc(s.levelUps, func(e models.LevelUpEvent) bool { return e.BotID == botID })
	})
}

func (s *Store) appendMessage(role models.Role, content string) {
	s.update(func() {
		s.messages = append(s.messages, models.Message{
			ID:        uuid.NewString(),
			Role:      role,
			Content:   content,
			Timestamp: s.now(),
		})
	})
}

// SendMessage records the user's turn, asks the chatbot and records the reply.
// The user's turn stays in the transcript even when the request fails.
func (s *Store) SendMessage(ctx context.Context, botID, content string) error {
	s.appendMessage(models.RoleUser, content)

	reply, err := s.api.Chat(ctx, botID, content)
	if err != nil {
		return err
	}
	s.appendMessage(models.RoleAssistant, reply.Content)
	s.recordAward(botID, s.planetName(botID), reply.Award)
	return nil
}

func (s *Store) Summarize(ctx context.Context, botID string) error {
	reply, err := s.api.Summarize(ctx, botID)
	if err != nil {
		return err
	}
	s.appendMessage(models.RoleAssistant, orDefault(reply.Content, "Summary generated."))
	s.recordAward(botID, s.planetName(botID), reply.Award)
	return nil
}

func (s *Store) ShortNotes(ctx context.Context, botID string) error {
	reply, err := s.api.ShortNotes(ctx, botID)
	if err != nil {
		return err
	}
	s.appendMessage(models.RoleAssistant, orDefault(reply.Content, "Notes generated."))
	s.recordAward(botID, s.planetName(botID), reply.Award)
	return nil
}

// Quiz records the quiz document as an assistant turn.
func (s *Store) Quiz(ctx context.Context, botID string, questionCount int) error {
	reply, err := s.api.Quiz(ctx, botID, questionCount)
	if err != nil {
		return err
	}
	content := string(reply.Quiz)
	if content == "null" {
		content = ""
	}
	s.appendMessage(models.RoleAssistant, orDefault(content, "Quiz generated."))
	s.recordAward(botID, s.planetName(botID), reply.Award)
	return nil
}

func (s *Store) ClearMessages() {
	s.update(func() { s.messages = nil })
}

// UploadPDF sends a PDF to botID. The remaining pipeline phases arrive as
// upload.progress events on the change feed.
func (s *Store) UploadPDF(ctx context.Context, botID, filename string, body io.Reader) (*models.PDFDocument, error) {
	s.update(func() {
		s.upload = UploadState{Uploading: true, Status: UploadUploading, ChatbotID: botID, Message: "Uploading PDF to storage..."}
	})

	res, err := s.api.UploadPDF(ctx, botID, filename, body)
	if err != nil {
		s.update(func() {
			s.upload = UploadState{Status: UploadError, ChatbotID: botID, Message: "Error: " + err.Error()}
		})
		return nil, err
	}

	s.update(func() {
		// A faster feed event may already have moved past this point.
		if s.upload.Progress < 50 && s.upload.Status == UploadUploading {
			s.upload.Progress = 50
			s.upload.Message = "PDF uploaded successfully"
		}
		s.upload.DocumentID = res.Document.ID
	})
	s.recordAward(botID, s.planetName(botID), res.Award)
	return res.Document, nil
}

func (s *Store) planetName(botID string) string {
	b, _ := s.Chatbot(botID)
	return b.Name
}

func (s *Store) SelectBot(id string) {
	s.update(func() { s.selectedBotID = id })
}

func (s *Store) ClearNewPlanetID() {
	s.update(func() {
		if i := s.indexOf(s.newPlanetID); i >= 0 {
			s.chatbots[i].IsNewlyCreated = false
		}
		s.newPlanetID = ""
	})
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
