package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/markdave123-py/studygalaxy/internal/core"
	"github.com/markdave123-py/studygalaxy/internal/core/leveling"
	"github.com/markdave123-py/studygalaxy/internal/models"
)

// Option customises a DocumentIngestor.
type Option func(*DocumentIngestor)

func WithPublisher(p ProgressPublisher) Option {
	return func(i *DocumentIngestor) { i.publisher = p }
}

func WithXPAwarder(x XPAwarder) Option {
	return func(i *DocumentIngestor) { i.xp = x }
}

func WithPageCounter(p core.PageCounter) Option {
	return func(i *DocumentIngestor) { i.pages = p }
}

func WithClock(now func() time.Time) Option {
	return func(i *DocumentIngestor) { i.now = now }
}

// NewDocumentIngestor constructs the ingestor with a bounded job queue.
func NewDocumentIngestor(db core.DbClient, obj core.ObjectClient, ai core.AIBackend, cfg IngestConfig, opts ...Option) *DocumentIngestor {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 64
	}
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = 5 * time.Minute
	}

	i := &DocumentIngestor{
		db:   db,
		obj:  obj,
		ai:   ai,
		cfg:  cfg,
		jobs: make(chan string, cfg.QueueSize),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// errInterrupted marks documents a previous process left mid-pipeline.
var errInterrupted = errors.New("Processing was interrupted; retry to resume")

// Start runs cfg.Workers goroutines reading from the jobs channel until ctx ends.
// A job already in flight finishes under its own timeout.
//
// Documents left processing by an earlier run are failed before any worker
// starts, and documents still pending are queued again once workers run.
func (i *DocumentIngestor) Start(ctx context.Context) {
	i.failInterrupted(ctx)

	for w := 1; w <= i.cfg.Workers; w++ {
		i.wg.Add(1)
		go func(w int) {
			defer i.wg.Done()
			for {
				select {
				case <-ctx.Done():
					slog.Info("ingest worker shutting down", "worker", w)
					return
				case docID := <-i.jobs:
					slog.Info("processing document", "document_id", docID, "worker", w)

					jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), i.cfg.ProcessTimeout)
					err := i.ProcessOne(jobCtx, docID)
					switch {
					case errors.Is(err, models.ErrInvalidTransition):
						slog.Info("document already claimed", "document_id", docID, "error", err)
					case err != nil:
						slog.Error("document processing failed", "document_id", docID, "error", err)
					}
					cancel()
				}
			}
		}(w)
	}

	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		i.requeuePending(ctx)
	}()
}

// failInterrupted moves every processing document to failed. It must run
// before workers claim anything.
func (i *DocumentIngestor) failInterrupted(ctx context.Context) {
	stale, err := i.db.ListDocumentsByStatus(ctx, models.StatusProcessing)
	if err != nil {
		slog.Error("could not list interrupted documents", "error", err)
		return
	}
	for _, doc := range stale {
		slog.Warn("failing interrupted document", "document_id", doc.ID)
		_ = i.fail(&doc, errInterrupted)
	}
}

func (i *DocumentIngestor) requeuePending(ctx context.Context) {
	pending, err := i.db.ListDocumentsByStatus(ctx, models.StatusPending)
	if err != nil {
		slog.Error("could not list pending documents", "error", err)
		return
	}
	for _, doc := range pending {
		if err := i.Enqueue(ctx, doc.ID); err != nil {
			slog.Warn("pending documents not requeued", "remaining", len(pending), "error", err)
			return
		}
	}
	if len(pending) > 0 {
		slog.Info("requeued pending documents", "count", len(pending))
	}
}

// Wait blocks until every worker started by Start has returned.
func (i *DocumentIngestor) Wait() {
	i.wg.Wait()
}

// Enqueue schedules a document ID for processing, blocking while the queue is full.
func (i *DocumentIngestor) Enqueue(ctx context.Context, docID string) error {
	select {
	case i.jobs <- docID:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enqueue %s: %w", docID, ctx.Err())
	}
}

// ProcessOne drives a pending document through the external extract, chunk
// and embed stages, reporting progress on the owner's change feed.
func (i *DocumentIngestor) ProcessOne(ctx context.Context, docID string) error {
	doc, err := i.db.GetDocumentByID(ctx, docID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}

	if err := i.db.UpdateDocumentStatus(ctx, doc.ID, models.StatusPending, models.StatusProcessing, nil); err != nil {
		return err
	}

	report := func(phase models.UploadPhase, pct int, msg string) {
		i.report(doc.UserID, models.UploadProgress{
			DocumentID: doc.ID,
			ChatbotID:  doc.ChatbotID,
			Phase:      phase,
			Progress:   pct,
			Message:    msg,
		}, nil)
	}

	inserted, err := i.runStages(ctx, doc, report)
	if err != nil {
		return i.fail(doc, err)
	}

	if err := i.db.UpdateDocumentStatus(ctx, doc.ID, models.StatusProcessing, models.StatusCompleted, nil); err != nil {
		return i.fail(doc, fmt.Errorf("mark completed: %w", err))
	}

	report(models.PhaseComplete, 100, fmt.Sprintf("PDF processed successfully! %d embeddings created.", inserted))
	i.award(ctx, doc.ChatbotID, doc.UserID, leveling.ActionPDFProcessing)

	slog.Info("document processed", "document_id", doc.ID, "embeddings", inserted)
	return nil
}

func (i *DocumentIngestor) runStages(ctx context.Context, doc *models.PDFDocument, report func(models.UploadPhase, int, string)) (int, error) {
	report(models.PhaseExtracting, 60, "Extracting text from PDF...")

	processed, err := i.ai.ProcessPDF(ctx, core.ProcessRequest{
		FileID:   doc.ID,
		FilePath: doc.FilePath,
		BotID:    doc.ChatbotID,
	})
	if err != nil {
		return 0, err
	}
	if len(processed.Chunks) == 0 {
		return 0, models.ErrNoChunks
	}

	report(models.PhaseChunking, 75, fmt.Sprintf("Created %d chunks...", len(processed.Chunks)))
	report(models.PhaseEmbedding, 85, "Generating embeddings...")

	embedded, err := i.ai.Embed(ctx, core.EmbedRequest{
		Chunks: processed.Chunks,
		FileID: doc.ID,
		BotID:  doc.ChatbotID,
	})
	if err != nil {
		return 0, err
	}
	return embedded.InsertedCount, nil
}

// fail records cause on the document and reports it; cause is returned.
func (i *DocumentIngestor) fail(doc *models.PDFDocument, cause error) error {
	msg := cause.Error()
	if errors.Is(cause, models.ErrNoChunks) {
		msg = "No text could be extracted from the PDF"
	}

	// The caller's context may be the reason we are failing.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := i.db.UpdateDocumentStatus(ctx, doc.ID, models.StatusProcessing, models.StatusFailed, &msg); err != nil {
		slog.Error("could not mark document failed", "document_id", doc.ID, "error", err)
	}

	i.report(doc.UserID, models.UploadProgress{
		DocumentID: doc.ID,
		ChatbotID:  doc.ChatbotID,
		Phase:      models.PhaseExtracting,
		Progress:   0,
		Message:    "Error: " + msg,
		Failed:     true,
	}, nil)

	return fmt.Errorf("process document %s: %w", doc.ID, cause)
}

// Retry moves a failed document back to pending and queues it again.
func (i *DocumentIngestor) Retry(ctx context.Context, docID, userID string) (*models.PDFDocument, error) {
	doc, err := i.db.GetDocument(ctx, docID, userID)
	if err != nil {
		return nil, err
	}
	if err := models.CheckTransition(doc.ProcessingStatus, models.StatusPending); err != nil {
		return nil, err
	}
	if err := i.db.UpdateDocumentStatus(ctx, doc.ID, doc.ProcessingStatus, models.StatusPending, nil); err != nil {
		return nil, err
	}
	doc.ProcessingStatus = models.StatusPending
	doc.ErrorMessage = nil

	if err := i.Enqueue(ctx, doc.ID); err != nil {
		return nil, err
	}
	return doc, nil
}
