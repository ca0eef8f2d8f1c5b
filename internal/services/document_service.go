package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/markdave123-py/studygalaxy/internal/core"
	ingest "github.com/markdave123-py/studygalaxy/internal/core/ingestion_engine"
	"github.com/markdave123-py/studygalaxy/internal/models"
)

type DocumentService struct {
	db         core.DbClient
	storage    core.ObjectClient
	ingestor   ingest.Ingestor
	bucket     string
	presignTTL time.Duration
}

func NewDocumentService(db core.DbClient, storage core.ObjectClient, ingestor ingest.Ingestor, bucket string, presignTTL time.Duration) *DocumentService {
	if presignTTL <= 0 {
		presignTTL = time.Hour
	}
	return &DocumentService{db: db, storage: storage, ingestor: ingestor, bucket: bucket, presignTTL: presignTTL}
}

// Upload stores the PDF and queues it for processing. A queueing failure
// marks the document failed so it can be retried.
func (s *DocumentService) Upload(ctx context.Context, in ingest.UploadInput, onProgress ingest.ProgressFunc) (*ingest.UploadResult, error) {
	res, err := s.ingestor.Upload(ctx, in, onProgress)
	if err != nil {
		return nil, err
	}

	if err := s.ingestor.Enqueue(ctx, res.Document.ID); err != nil {
		msg := "Processing queue unavailable"
		if uerr := s.db.UpdateDocumentStatus(context.WithoutCancel(ctx), res.Document.ID, models.StatusPending, models.StatusFailed, &msg); uerr != nil {
			slog.Error("could not mark unqueued document failed", "document_id", res.Document.ID, "error", uerr)
		} else {
			res.Document.ProcessingStatus = models.StatusFailed
			res.Document.ErrorMessage = &msg
		}
		slog.Warn("document not queued", "document_id", res.Document.ID, "error", err)
	}
	return res, nil
}

func (s *DocumentService) ListByChatbot(ctx context.Context, chatbotID, userID string) ([]models.PDFDocument, error) {
	if _, err := s.db.GetChatbot(ctx, chatbotID, userID); err != nil {
		return nil, err
	}
	return s.db.ListDocumentsByChatbot(ctx, chatbotID, userID)
}

// DocumentDetail is a document plus the number of chunks stored for it.
type DocumentDetail struct {
	models.PDFDocument
	ChunkCount int `json:"chunk_count"`
}

func (s *DocumentService) Get(ctx context.Context, id, userID string) (*DocumentDetail, error) {
	doc, err := s.db.GetDocument(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	n, err := s.db.CountDocumentChunks(ctx, id)
	if err != nil {
		return nil, err
	}
	return &DocumentDetail{PDFDocument: *doc, ChunkCount: n}, nil
}

// Delete removes the stored object and the record.
func (s *DocumentService) Delete(ctx context.Context, id, userID string) error {
	doc, err := s.db.GetDocument(ctx, id, userID)
	if err != nil {
		return err
	}
	if err := s.storage.DeleteFile(ctx, s.bucket, doc.FilePath); err != nil {
		slog.Warn("stored pdf not removed", "document_id", id, "key", doc.FilePath, "error", err)
	}
	return s.db.DeleteDocument(ctx, id, userID)
}

// DownloadURL returns a presigned link to the original PDF.
func (s *DocumentService) DownloadURL(ctx context.Context, id, userID string) (string, time.Time, error) {
	doc, err := s.db.GetDocument(ctx, id, userID)
	if err != nil {
		return "", time.Time{}, err
	}
	url, err := s.storage.PresignGetURL(ctx, s.bucket, doc.FilePath, s.presignTTL)
	if err != nil {
		return "", time.Time{}, err
	}
	return url, time.Now().Add(s.presignTTL), nil
}

func (s *DocumentService) Retry(ctx context.Context, id, userID string) (*models.PDFDocument, error) {
	return s.ingestor.Retry(ctx, id, userID)
}

// Chunks lists what the AI backend stored for a document.
func (s *DocumentService) Chunks(ctx context.Context, id, userID string) ([]models.DocumentChunk, error) {
	if _, err := s.db.GetDocument(ctx, id, userID); err != nil {
		return nil, err
	}
	return s.db.ListDocumentChunks(ctx, id)
}
