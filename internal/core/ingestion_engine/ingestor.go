package ingestion_engine

import (
	"context"

	"github.com/markdave123-py/studygalaxy/internal/models"
)

type Ingestor interface {
	Upload(ctx context.Context, in UploadInput, onProgress ProgressFunc) (*UploadResult, error)
	Start(ctx context.Context)
	Enqueue(ctx context.Context, docID string) error
	ProcessOne(ctx context.Context, docID string) error
	Retry(ctx context.Context, docID, userID string) (*models.PDFDocument, error)
	Wait()
}

var _ Ingestor = (*DocumentIngestor)(nil)
