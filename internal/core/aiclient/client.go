// Package aiclient talks to the external document and LLM pipeline over HTTP.
package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/markdave123-py/studygalaxy/internal/core"
)

// DefaultMaxResponseBytes caps how much of a backend reply is read.
const DefaultMaxResponseBytes = 32 << 20

type Client struct {
	baseURL  string
	http     *http.Client
	maxReply int64
}

var _ core.AIBackend = (*Client)(nil)

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		maxReply: DefaultMaxResponseBytes,
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apiError       `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
	Details string `json:"details"`
}

// Error is returned when the backend answers with a non-2xx status or
// reports success=false.
type Error struct {
	Status int
	Msg    string
}

func (e *Error) Error() string { return e.Msg }

func (c *Client) ProcessPDF(ctx context.Context, req core.ProcessRequest) (*core.ProcessResult, error) {
	var out core.ProcessResult
	if err := c.post(ctx, "/process-pdf", req, "Failed to process PDF", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Embed(ctx context.Context, req core.EmbedRequest) (*core.EmbedResult, error) {
	var out core.EmbedResult
	if err := c.post(ctx, "/embed", req, "Failed to generate embeddings", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type studyRequest struct {
	Message       string `json:"message,omitempty"`
	BotID         string `json:"botId"`
	UserID        string `json:"userId"`
	QuestionCount int    `json:"questionCount,omitempty"`
}

func (c *Client) Chat(ctx context.Context, message, botID, userID string) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	err := c.post(ctx, "/chat", studyRequest{Message: message, BotID: botID, UserID: userID}, "Failed to get response", &out)
	return out.Message, err
}

func (c *Client) Summarize(ctx context.Context, botID, userID string) (string, error) {
	var out struct {
		Summary string `json:"summary"`
	}
	err := c.post(ctx, "/summarize", studyRequest{BotID: botID, UserID: userID}, "Failed to generate summary", &out)
	return out.Summary, err
}

func (c *Client) ShortNotes(ctx context.Context, botID, userID string) (string, error) {
	var out struct {
		Notes string `json:"notes"`
	}
	err := c.post(ctx, "/short-notes", studyRequest{BotID: botID, UserID: userID}, "Failed to generate notes", &out)
	return out.Notes, err
}

func (c *Client) Quiz(ctx context.Context, botID, userID string, questionCount int) (json.RawMessage, error) {
	var out struct {
		Quiz json.RawMessage `json:"quiz"`
	}
	req := studyRequest{BotID: botID, UserID: userID, QuestionCount: questionCount}
	if err := c.post(ctx, "/quiz", req, "Failed to generate quiz", &out); err != nil {
		return nil, err
	}
	return out.Quiz, nil
}

// post sends body as JSON and decodes the envelope's data into out.
func (c *Client) post(ctx context.Context, path string, body any, fallback string, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxReply+1))
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}
	if int64(len(raw)) > c.maxReply {
		return fmt.Errorf("%s response exceeds %d bytes", path, c.maxReply)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Status: resp.StatusCode, Msg: errorText(resp.StatusCode, raw, env, decodeErr, fallback)}
	}
	if decodeErr != nil {
		return fmt.Errorf("decode %s response: %w", path, decodeErr)
	}
	if !env.Success {
		return &Error{Status: resp.StatusCode, Msg: errorText(resp.StatusCode, raw, env, nil, fallback)}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode %s data: %w", path, err)
		}
	}
	return nil
}

// errorText prefers the backend's details, then its message, then the raw body.
func errorText(status int, raw []byte, env envelope, decodeErr error, fallback string) string {
	if decodeErr == nil && env.Error != nil {
		if env.Error.Details != "" {
			return env.Error.Details
		}
		if env.Error.Message != "" {
			return env.Error.Message
		}
	}
	if decodeErr != nil {
		if body := strings.TrimSpace(string(raw)); body != "" {
			return body
		}
	}
	return fmt.Sprintf("HTTP %d: %s", status, fallback)
}
