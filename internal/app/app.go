package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/markdave123-py/studygalaxy/internal/config"
	"github.com/markdave123-py/studygalaxy/internal/core/aiclient"
	db "github.com/markdave123-py/studygalaxy/internal/core/database"
	"github.com/markdave123-py/studygalaxy/internal/core/galaxy"
	ingest "github.com/markdave123-py/studygalaxy/internal/core/ingestion_engine"
	objectclient "github.com/markdave123-py/studygalaxy/internal/core/object-client"
	"github.com/markdave123-py/studygalaxy/internal/realtime"
	"github.com/markdave123-py/studygalaxy/internal/services"
)

type App struct {
	DBClient     *db.DatabaseClient
	ObjectClient *objectclient.S3Client
	Ingestor     *ingest.DocumentIngestor
	Hub          *realtime.Hub
	Listener     *realtime.Listener
	Server       *Server

	bg sync.WaitGroup
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	slog.Info("database initialized and ready")

	objClient, err := objectclient.NewS3Client(appCtx, cfg)
	if err != nil {
		dbClient.Close()
		return nil, fmt.Errorf("object storage: %w", err)
	}
	slog.Info("object client initialized and ready", "bucket", cfg.BucketName)

	ai := aiclient.New(cfg.AIBackendURL, cfg.AIBackendTimeout)
	hub := realtime.NewHub(cfg.AllowedOrigins)

	chatbots := services.NewChatbotService(dbClient, objClient, cfg.BucketName, galaxy.NewPlacer(nil))

	ingestor := ingest.NewDocumentIngestor(dbClient, objClient, ai,
		ingest.IngestConfig{
			Bucket:         cfg.BucketName,
			MaxUploadBytes: cfg.MaxUploadBytes,
			Workers:        cfg.IngestWorkers,
			QueueSize:      cfg.IngestQueueSize,
			ProcessTimeout: cfg.AIBackendTimeout * 3,
		},
		ingest.WithPublisher(hub),
		ingest.WithXPAwarder(chatbots),
		ingest.WithPageCounter(ingest.NewDocconvPageCounter()),
	)

	router := NewRouter(cfg, Services{
		Users:     services.NewUserService(dbClient, cfg.JWTSecret, cfg.JWTTTL),
		Chatbots:  chatbots,
		Documents: services.NewDocumentService(dbClient, objClient, ingestor, cfg.BucketName, cfg.PresignTTL),
		Study:     services.NewStudyService(dbClient, ai, chatbots, cfg.QuizQuestionCount),
		Streaks:   services.NewStreakService(dbClient, chatbots),
		Hub:       hub,
	})

	return &App{
		DBClient:     dbClient,
		ObjectClient: objClient,
		Ingestor:     ingestor,
		Hub:          hub,
		Listener:     realtime.NewListener(cfg.DatabaseURL, hub, dbClient.GetChatbot),
		Server:       NewServer(cfg, router),
	}, nil
}

// Start launches the background components: the change feed hub, the
// database listener and the ingestion workers. They stop when ctx ends.
func (a *App) Start(ctx context.Context) {
	a.bg.Add(2)
	go func() {
		defer a.bg.Done()
		a.Hub.Run(ctx)
	}()
	go func() {
		defer a.bg.Done()
		if err := a.Listener.Run(ctx); err != nil {
			slog.Error("change listener stopped", "error", err)
		}
	}()
	a.Ingestor.Start(ctx)
}

// Wait blocks until the background components have drained.
func (a *App) Wait() {
	a.Ingestor.Wait()
	a.bg.Wait()
}

func (a *App) Close() {
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
