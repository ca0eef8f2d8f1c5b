package ingestion_engine

import (
	"context"
	"sync"
	"time"

	"github.com/markdave123-py/studygalaxy/internal/core"
	"github.com/markdave123-py/studygalaxy/internal/core/leveling"
	"github.com/markdave123-py/studygalaxy/internal/models"
)

// IngestConfig tunes the upload pipeline.
//
// Bucket:         object storage bucket that receives the PDFs.
// MaxUploadBytes: hard size limit for one upload (50 MiB by default).
// Workers:        number of goroutines draining the job queue.
// QueueSize:      capacity of the in-memory job queue.
// ProcessTimeout: upper bound for one extract/chunk/embed run.
type IngestConfig struct {
	Bucket         string
	MaxUploadBytes int64
	Workers        int
	QueueSize      int
	ProcessTimeout time.Duration
}

const DefaultMaxUploadBytes = 50 * 1024 * 1024

// ProgressFunc receives progress reports for a single upload call.
type ProgressFunc func(models.UploadProgress)

// ProgressPublisher pushes progress onto the owning user's change feed.
type ProgressPublisher interface {
	PublishProgress(userID string, p models.UploadProgress)
}

// XPAwarder grants XP for pipeline milestones.
type XPAwarder interface {
	AwardXP(ctx context.Context, botID, userID string, action leveling.Action) (*models.XPAward, error)
}

// DocumentIngestor orchestrates uploads and the background processing pipeline:
//
// db:        persistence for documents and chatbot counters.
// obj:       object storage holding the raw PDFs.
// ai:        external backend that extracts, chunks and embeds.
// pages:     best-effort page counter.
// publisher: change feed for progress events (optional).
// xp:        XP awarder for upload/processing milestones (optional).
// jobs:      in-memory queue of document IDs to process.
type DocumentIngestor struct {
	db        core.DbClient
	obj       core.ObjectClient
	ai        core.AIBackend
	pages     core.PageCounter
	publisher ProgressPublisher
	xp        XPAwarder
	cfg       IngestConfig
	jobs      chan string
	wg        sync.WaitGroup
	now       func() time.Time
}
