package core

import (
	"context"
	"encoding/json"
)

// ProcessRequest asks the AI backend to extract and chunk a stored PDF.
type ProcessRequest struct {
	FileID   string `json:"fileId"`
	FilePath string `json:"filePath"`
	BotID    string `json:"botId"`
}

// ProcessResult carries the chunks produced by the AI backend. Chunks are
// opaque here and are handed back verbatim to Embed.
type ProcessResult struct {
	Chunks []json.RawMessage `json:"chunks"`
}

// EmbedRequest asks the AI backend to embed and store chunks.
type EmbedRequest struct {
	Chunks []json.RawMessage `json:"chunks"`
	FileID string            `json:"fileId"`
	BotID  string            `json:"botId"`
}

// EmbedResult reports how many embeddings were written.
type EmbedResult struct {
	InsertedCount int `json:"insertedCount"`
}

// AIBackend is the external document/LLM pipeline.
type AIBackend interface {
	ProcessPDF(ctx context.Context, req ProcessRequest) (*ProcessResult, error)
	Embed(ctx context.Context, req EmbedRequest) (*EmbedResult, error)

	Chat(ctx context.Context, message, botID, userID string) (string, error)
	Summarize(ctx context.Context, botID, userID string) (string, error)
	ShortNotes(ctx context.Context, botID, userID string) (string, error)
	Quiz(ctx context.Context, botID, userID string, questionCount int) (json.RawMessage, error)
}
