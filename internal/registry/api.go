// Package registry is the client-side chatbot cache: it mirrors the user's
// chatbots from the API, keeps them current from the change feed and tracks
// transient UI state such as XP toasts, level-ups, chat turns and uploads.
package registry

import (
	"context"
	"encoding/json"
	"io"

	"github.com/markdave123-py/studygalaxy/internal/core/leveling"
	"github.com/markdave123-py/studygalaxy/internal/models"
)

// Reply is an assistant answer and the XP the request earned.
type Reply struct {
	Content string          `json:"content"`
	Quiz    json.RawMessage `json:"quiz,omitempty"`
	Award   *models.XPAward `json:"award,omitempty"`
}

// Upload is the server's answer to a stored PDF.
type Upload struct {
	Document *models.PDFDocument `json:"document"`
	Award    *models.XPAward     `json:"award,omitempty"`
}

// FeedConn is an open change feed connection.
type FeedConn interface {
	ReadJSON(v any) error
	Close() error
}

// API is the subset of the HTTP API the store drives.
type API interface {
	ListChatbots(ctx context.Context) ([]models.ChatBot, error)
	CreateChatbot(ctx context.Context, name, description string) (*models.ChatBot, *models.XPAward, error)
	UpdateChatbot(ctx context.Context, id string, name, description *string) (*models.ChatBot, error)
	UpdateActivity(ctx context.Context, id string, activity float64) (*models.ChatBot, error)
	DeleteChatbot(ctx context.Context, id string) error
	AwardXP(ctx context.Context, id string, action leveling.Action) (*models.XPAward, error)

	Chat(ctx context.Context, id, message string) (*Reply, error)
	Summarize(ctx context.Context, id string) (*Reply, error)
	ShortNotes(ctx context.Context, id string) (*Reply, error)
	Quiz(ctx context.Context, id string, questionCount int) (*Reply, error)

	UploadPDF(ctx context.Context, id, filename string, body io.Reader) (*Upload, error)
	DialFeed(ctx context.Context) (FeedConn, error)
}
