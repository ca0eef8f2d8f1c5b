package core

import (
	"context"
	"io"
	"time"

	"github.com/markdave123-py/studygalaxy/internal/models"
)

// DbClient defines all persistence operations the services need.
// It abstracts Postgres/pgvector so higher layers never depend on a specific DB.
// Lookups that miss return an error wrapping the matching models.Err*NotFound.
type DbClient interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	CountChatbotsByUser(ctx context.Context, userID string) (int, error)
	CreateChatbot(ctx context.Context, bot *models.ChatBot) error
	GetChatbot(ctx context.Context, id, userID string) (*models.ChatBot, error)
	ListChatbotsByUser(ctx context.Context, userID string) ([]models.ChatBot, error)
	UpdateChatbotDetails(ctx context.Context, id, userID string, name, description *string) (*models.ChatBot, error)
	UpdateChatbotActivity(ctx context.Context, id, userID string, activity float64) (*models.ChatBot, error)
	// UpdateChatbotXP sets xp only while the stored value still equals fromXP;
	// otherwise it returns an error wrapping models.ErrConflict.
	UpdateChatbotXP(ctx context.Context, id, userID string, fromXP, toXP int, planetSize float64) (*models.ChatBot, error)
	DeleteChatbot(ctx context.Context, id, userID string) error

	// CreateDocument inserts the record and bumps the owning chatbot's pdf_count.
	CreateDocument(ctx context.Context, doc *models.PDFDocument) error
	GetDocument(ctx context.Context, id, userID string) (*models.PDFDocument, error)
	GetDocumentByID(ctx context.Context, id string) (*models.PDFDocument, error)
	ListDocumentsByChatbot(ctx context.Context, chatbotID, userID string) ([]models.PDFDocument, error)
	ListDocumentPathsByChatbot(ctx context.Context, chatbotID string) ([]string, error)
	// ListDocumentsByStatus returns every user's documents in status, oldest first.
	ListDocumentsByStatus(ctx context.Context, status models.ProcessingStatus) ([]models.PDFDocument, error)
	// UpdateDocumentStatus moves a document from one status to another only if
	// it is still in from; errMsg nil clears the stored error.
	UpdateDocumentStatus(ctx context.Context, id string, from, to models.ProcessingStatus, errMsg *string) error
	// DeleteDocument removes the record (chunks cascade) and decrements pdf_count.
	DeleteDocument(ctx context.Context, id, userID string) error

	ListDocumentChunks(ctx context.Context, documentID string) ([]models.DocumentChunk, error)
	CountDocumentChunks(ctx context.Context, documentID string) (int, error)

	GetStreak(ctx context.Context, userID string) (*models.UserStreak, error)
	UpsertStreak(ctx context.Context, streak *models.UserStreak) error

	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data io.Reader, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	PresignGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}
