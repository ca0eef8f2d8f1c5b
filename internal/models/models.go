package models

import (
	"encoding/json"
	"time"
)

// User represents an authenticated user of the system.
type User struct {
	ID           string    `db:"id" json:"id"`
	FirstName    string    `db:"first_name" json:"first_name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// TextureType is the surface category a planet is rendered with.
type TextureType string

const (
	TextureRocky    TextureType = "rocky"
	TextureIcy      TextureType = "icy"
	TextureDesert   TextureType = "desert"
	TextureOcean    TextureType = "ocean"
	TextureVolcanic TextureType = "volcanic"
)

// PlanetData holds the orbital and visual parameters of a chatbot's planet.
type PlanetData struct {
	OrbitRadius float64     `json:"orbitRadius"`
	OrbitSpeed  float64     `json:"orbitSpeed"`
	TextureType TextureType `json:"textureType"`
	Size        float64     `json:"size"`
	Activity    float64     `json:"activity"` // 0-1
	AngleOffset float64     `json:"angleOffset"`
}

// ChatBot is a per-document study assistant, shown as a planet.
type ChatBot struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	XP             int        `json:"xp"`
	Level          int        `json:"level"`
	PDFCount       int        `json:"pdfCount"`
	LastActivity   time.Time  `json:"lastActivity"`
	PlanetData     PlanetData `json:"planetData"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	IsNewlyCreated bool       `json:"isNewlyCreated,omitempty"`
}

// ProcessingStatus tracks a document through the external pipeline.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// PDFDocument represents an uploaded PDF attached to a chatbot.
type PDFDocument struct {
	ID               string           `json:"id"`
	ChatbotID        string           `json:"chatbot_id"`
	UserID           string           `json:"user_id"`
	Filename         string           `json:"filename"`
	FilePath         string           `json:"file_path"` // object key in the documents bucket
	FileSize         int64            `json:"file_size"`
	PageCount        *int             `json:"page_count"`
	ProcessingStatus ProcessingStatus `json:"processing_status"`
	ErrorMessage     *string          `json:"error_message"`
	CreatedAt        time.Time        `json:"created_at"`
	ProcessedAt      *time.Time       `json:"processed_at"`
}

// DocumentChunk represents one text chunk written by the AI backend.
type DocumentChunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	ChatbotID  string    `json:"chatbot_id"`
	Position   int       `json:"position"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"embedding,omitempty"` // pgvector column
	CreatedAt  time.Time `json:"created_at"`
}

// Role of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is an in-memory chat turn; it is never persisted.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// UserStreak tracks consecutive study days.
type UserStreak struct {
	UserID           string    `json:"user_id"`
	CurrentStreak    int       `json:"current_streak"`
	LongestStreak    int       `json:"longest_streak"`
	LastActivityDate time.Time `json:"last_activity_date"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// UploadPhase is the stage of the upload pipeline being reported.
type UploadPhase string

const (
	PhaseUploading  UploadPhase = "uploading"
	PhaseExtracting UploadPhase = "extracting"
	PhaseChunking   UploadPhase = "chunking"
	PhaseEmbedding  UploadPhase = "embedding"
	PhaseComplete   UploadPhase = "complete"
)

// UploadProgress is one progress report from the upload pipeline.
type UploadProgress struct {
	DocumentID string      `json:"documentId,omitempty"`
	ChatbotID  string      `json:"chatbotId,omitempty"`
	Phase      UploadPhase `json:"phase"`
	Progress   int         `json:"progress"` // 0-100
	Message    string      `json:"message"`
	Failed     bool        `json:"failed,omitempty"`
}

// EventType names a change feed notification.
type EventType string

const (
	EventChatbotInsert  EventType = "chatbot.insert"
	EventChatbotUpdate  EventType = "chatbot.update"
	EventChatbotDelete  EventType = "chatbot.delete"
	EventUploadProgress EventType = "upload.progress"
)

// ChangeEvent is pushed to subscribers of the change feed.
type ChangeEvent struct {
	Type      EventType       `json:"type"`
	ChatbotID string          `json:"chatbotId,omitempty"`
	Chatbot   *ChatBot        `json:"chatbot,omitempty"`
	Progress  *UploadProgress `json:"progress,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// LevelUpEvent is queued when an XP award crosses a level boundary.
type LevelUpEvent struct {
	BotID      string `json:"botId"`
	OldLevel   int    `json:"oldLevel"`
	NewLevel   int    `json:"newLevel"`
	PlanetName string `json:"planetName"`
	Title      string `json:"title"`
}

// XPAward is the outcome of granting XP to a chatbot.
type XPAward struct {
	Action    string   `json:"action"`
	Amount    int      `json:"amount"`
	LeveledUp bool     `json:"leveledUp"`
	OldLevel  int      `json:"oldLevel"`
	NewLevel  int      `json:"newLevel"`
	NewXP     int      `json:"newXP"`
	Bot       *ChatBot `json:"bot"`
}

// Quiz is passed through from the AI backend untouched.
type Quiz = json.RawMessage
