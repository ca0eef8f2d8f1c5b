package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/markdave123-py/studygalaxy/internal/core/leveling"
	"github.com/markdave123-py/studygalaxy/internal/models"
)

// UploadInput describes one PDF handed to the pipeline.
type UploadInput struct {
	UserID      string
	ChatbotID   string
	Filename    string
	ContentType string
	Size        int64 // declared size, -1 if unknown
	Body        io.Reader
}

// UploadResult is the stored document plus the XP its upload earned.
type UploadResult struct {
	Document *models.PDFDocument `json:"document"`
	Award    *models.XPAward     `json:"award,omitempty"`
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// SanitizeFilename replaces every character outside [A-Za-z0-9.-] with '_'.
func SanitizeFilename(name string) string {
	return unsafeKeyChars.ReplaceAllString(name, "_")
}

// ObjectKey builds "<userID>/<chatbotID>/<unixMillis>_<sanitized>".
func ObjectKey(userID, chatbotID string, unixMillis int64, filename string) string {
	return fmt.Sprintf("%s/%s/%d_%s", userID, chatbotID, unixMillis, SanitizeFilename(filename))
}

// ValidateUpload checks the declared type and size before any bytes move.
func ValidateUpload(contentType string, size, maxBytes int64) error {
	if !strings.Contains(strings.ToLower(contentType), "pdf") {
		return models.ErrNotPDF
	}
	if size == 0 {
		return models.ErrEmptyFile
	}
	if size > maxBytes {
		return fmt.Errorf("%w: %d bytes exceeds the %d MB limit", models.ErrFileTooLarge, size, maxBytes/(1024*1024))
	}
	return nil
}

// Upload stores the PDF, records it as pending and awards upload XP.
// The document is not queued for processing; callers decide that.
func (i *DocumentIngestor) Upload(ctx context.Context, in UploadInput, onProgress ProgressFunc) (*UploadResult, error) {
	if in.UserID == "" || in.ChatbotID == "" {
		return nil, fmt.Errorf("%w: user and chatbot are required", models.ErrInvalidInput)
	}
	if in.Body == nil {
		return nil, models.ErrEmptyFile
	}
	if in.Size >= 0 {
		if err := ValidateUpload(in.ContentType, in.Size, i.cfg.MaxUploadBytes); err != nil {
			return nil, err
		}
	} else if err := ValidateUpload(in.ContentType, 1, i.cfg.MaxUploadBytes); err != nil {
		return nil, err
	}

	if _, err := i.db.GetChatbot(ctx, in.ChatbotID, in.UserID); err != nil {
		return nil, err
	}

	report := func(phase models.UploadPhase, pct int, msg string) {
		i.report(in.UserID, models.UploadProgress{
			ChatbotID: in.ChatbotID,
			Phase:     phase,
			Progress:  pct,
			Message:   msg,
		}, onProgress)
	}

	report(models.PhaseUploading, 0, "Uploading PDF to storage...")

	data, err := io.ReadAll(io.LimitReader(in.Body, i.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if err := ValidateUpload(in.ContentType, int64(len(data)), i.cfg.MaxUploadBytes); err != nil {
		return nil, err
	}

	key := ObjectKey(in.UserID, in.ChatbotID, i.now().UnixMilli(), in.Filename)
	if _, err := i.obj.UploadFile(ctx, i.cfg.Bucket, key, bytes.NewReader(data), "application/pdf"); err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}

	report(models.PhaseUploading, 50, "PDF uploaded successfully")

	doc := &models.PDFDocument{
		ID:               uuid.NewString(),
		ChatbotID:        in.ChatbotID,
		UserID:           in.UserID,
		Filename:         in.Filename,
		FilePath:         key,
		FileSize:         int64(len(data)),
		ProcessingStatus: models.StatusPending,
	}
	if i.pages != nil {
		if n, err := i.pages.CountPages(ctx, data); err == nil {
			doc.PageCount = &n
		} else {
			slog.Debug("page count unavailable", "key", key, "error", err)
		}
	}

	if err := i.db.CreateDocument(ctx, doc); err != nil {
		if delErr := i.obj.DeleteFile(context.WithoutCancel(ctx), i.cfg.Bucket, key); delErr != nil {
			slog.Error("orphaned upload after failed insert", "key", key, "error", delErr)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	slog.Info("pdf stored", "document_id", doc.ID, "chatbot_id", doc.ChatbotID, "bytes", doc.FileSize)

	res := &UploadResult{Document: doc}
	res.Award = i.award(ctx, doc.ChatbotID, doc.UserID, leveling.ActionUploadPDF)
	return res, nil
}

func (i *DocumentIngestor) award(ctx context.Context, botID, userID string, action leveling.Action) *models.XPAward {
	if i.xp == nil {
		return nil
	}
	a, err := i.xp.AwardXP(ctx, botID, userID, action)
	if err != nil {
		slog.Warn("xp award failed", "chatbot_id", botID, "action", action, "error", err)
		return nil
	}
	return a
}

// report fans a progress event out to the caller and the change feed.
func (i *DocumentIngestor) report(userID string, p models.UploadProgress, onProgress ProgressFunc) {
	if onProgress != nil {
		onProgress(p)
	}
	if i.publisher != nil {
		i.publisher.PublishProgress(userID, p)
	}
}
