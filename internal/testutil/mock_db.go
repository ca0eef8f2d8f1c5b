// mock_db.go - In-memory DbClient for service and handler tests
package testutil

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/markdave123-py/studygalaxy/internal/core"
	"github.com/markdave123-py/studygalaxy/internal/core/leveling"
	"github.com/markdave123-py/studygalaxy/internal/models"
)

// MockDB implements core.DbClient with maps guarded by one mutex.
type MockDB struct {
	mu      sync.RWMutex
	users   map[string]*models.User // by email
	bots    map[string]*models.ChatBot
	docs    map[string]*models.PDFDocument
	chunks  map[string][]models.DocumentChunk // by document id
	streaks map[string]*models.UserStreak

	// CreateDocumentErr, when set, is returned by CreateDocument.
	CreateDocumentErr error
	// StatusErr, when set, is consulted before every UpdateDocumentStatus.
	StatusErr func(id string, from, to models.ProcessingStatus) error
}

var _ core.DbClient = (*MockDB)(nil)

func NewMockDB() *MockDB {
	return &MockDB{
		users:   make(map[string]*models.User),
		bots:    make(map[string]*models.ChatBot),
		docs:    make(map[string]*models.PDFDocument),
		chunks:  make(map[string][]models.DocumentChunk),
		streaks: make(map[string]*models.UserStreak),
	}
}

func (m *MockDB) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Email]; ok {
		return models.ErrUserExists
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	m.users[user.Email] = &cp
	return nil
}

func (m *MockDB) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[email]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockDB) CountChatbotsByUser(_ context.Context, userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, b := range m.bots {
		if b.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *MockDB) CreateChatbot(_ context.Context, bot *models.ChatBot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	bot.CreatedAt, bot.UpdatedAt, bot.LastActivity = now, now, now
	bot.Level = leveling.CalculateLevel(bot.XP)
	cp := *bot
	cp.IsNewlyCreated = false
	m.bots[bot.ID] = &cp
	return nil
}

// PutChatbot seeds a chatbot directly.
func (m *MockDB) PutChatbot(bot models.ChatBot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bot.Level = leveling.CalculateLevel(bot.XP)
	m.bots[bot.ID] = &bot
}

func (m *MockDB) ownedBot(id, userID string) (*models.ChatBot, error) {
	b, ok := m.bots[id]
	if !ok || b.UserID != userID {
		return nil, models.ErrChatbotNotFound
	}
	return b, nil
}

func (m *MockDB) GetChatbot(_ context.Context, id, userID string) (*models.ChatBot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, err := m.ownedBot(id, userID)
	if err != nil {
		return nil, err
	}
	cp := *b
	return &cp, nil
}

func (m *MockDB) ListChatbotsByUser(_ context.Context, userID string) ([]models.ChatBot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.ChatBot{}
	for _, b := range m.bots {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	slices.SortFunc(out, func(a, b models.ChatBot) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (m *MockDB) mutateBot(id, userID string, fn func(b *models.ChatBot)) (*models.ChatBot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.ownedBot(id, userID)
	if err != nil {
		return nil, err
	}
	fn(b)
	b.UpdatedAt = time.Now()
	b.Level = leveling.CalculateLevel(b.XP)
	cp := *b
	return &cp, nil
}

func (m *MockDB) UpdateChatbotDetails(_ context.Context, id, userID string, name, description *string) (*models.ChatBot, error) {
	return m.mutateBot(id, userID, func(b *models.ChatBot) {
		if name != nil {
			b.Name = *name
		}
		if description != nil {
			b.Description = *description
		}
		b.LastActivity = time.Now()
	})
}

func (m *MockDB) UpdateChatbotActivity(_ context.Context, id, userID string, activity float64) (*models.ChatBot, error) {
	return m.mutateBot(id, userID, func(b *models.ChatBot) {
		b.PlanetData.Activity = activity
		b.LastActivity = time.Now()
	})
}

func (m *MockDB) UpdateChatbotXP(_ context.Context, id, userID string, fromXP, toXP int, planetSize float64) (*models.ChatBot, error) {
	if toXP < 0 {
		return nil, models.ErrInvalidXP
	}
	var conflict bool
	b, err := m.mutateBot(id, userID, func(b *models.ChatBot) {
		if b.XP != fromXP {
			conflict = true
			return
		}
		b.XP = toXP
		b.PlanetData.Size = planetSize
		b.LastActivity = time.Now()
	})
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, fmt.Errorf("%w: chatbot %s xp is no longer %d", models.ErrConflict, id, fromXP)
	}
	return b, nil
}

func (m *MockDB) DeleteChatbot(_ context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.ownedBot(id, userID); err != nil {
		return err
	}
	delete(m.bots, id)
	for docID, d := range m.docs {
		if d.ChatbotID == id {
			delete(m.docs, docID)
			delete(m.chunks, docID)
		}
	}
	return nil
}

func (m *MockDB) CreateDocument(_ context.Context, doc *models.PDFDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateDocumentErr != nil {
		return m.CreateDocumentErr
	}
	b, err := m.ownedBot(doc.ChatbotID, doc.UserID)
	if err != nil {
		return err
	}
	doc.CreatedAt = time.Now()
	cp := *doc
	m.docs[doc.ID] = &cp
	b.PDFCount++
	return nil
}

// PutDocument seeds a document without touching pdf_count.
func (m *MockDB) PutDocument(doc models.PDFDocument) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = &doc
}

func (m *MockDB) GetDocument(_ context.Context, id, userID string) (*models.PDFDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[id]
	if !ok || d.UserID != userID {
		return nil, models.ErrDocumentNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *MockDB) GetDocumentByID(_ context.Context, id string) (*models.PDFDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, models.ErrDocumentNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *MockDB) ListDocumentsByChatbot(_ context.Context, chatbotID, userID string) ([]models.PDFDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.PDFDocument{}
	for _, d := range m.docs {
		if d.ChatbotID == chatbotID && d.UserID == userID {
			out = append(out, *d)
		}
	}
	slices.SortFunc(out, func(a, b models.PDFDocument) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (m *MockDB) ListDocumentsByStatus(_ context.Context, status models.ProcessingStatus) ([]models.PDFDocument, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown processing status %q", models.ErrInvalidInput, status)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.PDFDocument{}
	for _, d := range m.docs {
		if d.ProcessingStatus == status {
			out = append(out, *d)
		}
	}
	slices.SortFunc(out, func(a, b models.PDFDocument) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (m *MockDB) ListDocumentPathsByChatbot(_ context.Context, chatbotID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for _, d := range m.docs {
		if d.ChatbotID == chatbotID {
			out = append(out, d.FilePath)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (m *MockDB) UpdateDocumentStatus(_ context.Context, id string, from, to models.ProcessingStatus, errMsg *string) error {
	if err := models.CheckTransition(from, to); err != nil {
		return err
	}
	if m.StatusErr != nil {
		if err := m.StatusErr(id, from, to); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return models.ErrDocumentNotFound
	}
	if d.ProcessingStatus != from {
		return fmt.Errorf("%w: document %s is no longer %s", models.ErrInvalidTransition, id, from)
	}
	d.ProcessingStatus = to
	d.ErrorMessage = errMsg
	if to == models.StatusCompleted {
		now := time.Now()
		d.ProcessedAt = &now
	}
	return nil
}

func (m *MockDB) DeleteDocument(_ context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok || d.UserID != userID {
		return models.ErrDocumentNotFound
	}
	delete(m.docs, id)
	delete(m.chunks, id)
	if b, ok := m.bots[d.ChatbotID]; ok && b.PDFCount > 0 {
		b.PDFCount--
	}
	return nil
}

// PutChunks seeds the chunks the AI backend would have written.
func (m *MockDB) PutChunks(documentID string, chunks ...models.DocumentChunk) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[documentID] = append(m.chunks[documentID], chunks...)
}

func (m *MockDB) ListDocumentChunks(_ context.Context, documentID string) ([]models.DocumentChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.chunks[documentID]), nil
}

func (m *MockDB) CountDocumentChunks(_ context.Context, documentID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks[documentID]), nil
}

func (m *MockDB) GetStreak(_ context.Context, userID string) (*models.UserStreak, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.streaks[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockDB) UpsertStreak(_ context.Context, s *models.UserStreak) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.UpdatedAt = time.Now()
	cp := *s
	m.streaks[s.UserID] = &cp
	return nil
}

func (m *MockDB) Close() error { return nil }
