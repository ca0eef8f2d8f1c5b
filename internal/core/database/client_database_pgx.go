package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/markdave123-py/studygalaxy/internal/config"
	"github.com/markdave123-py/studygalaxy/internal/core"
	"github.com/markdave123-py/studygalaxy/internal/models"
)

type DatabaseClient struct {
	pool *pgxpool.Pool
}

var _ core.DbClient = (*DatabaseClient)(nil)

// NewDatabaseClient migrates the schema and opens a connection pool.
func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	// The vector type must exist before connections register it.
	if err := RunMigrations(cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	pcfg.MaxConns = 20
	pcfg.MinConns = 2
	pcfg.MaxConnLifetime = 30 * time.Minute
	pcfg.MaxConnIdleTime = 10 * time.Minute
	pcfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return &DatabaseClient{pool: pool}, nil
}

func (c *DatabaseClient) Close() error {
	if c.pool != nil {
		c.pool.Close()
	}
	return nil
}

// Implementing the db interface for user

func (c *DatabaseClient) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	const q = `
		INSERT INTO users (id, first_name, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (email) DO NOTHING
	`
	tag, err := c.pool.Exec(ctx, q, user.ID, user.FirstName, user.Email, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrUserExists
	}
	return nil
}

func (c *DatabaseClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `
		SELECT id, first_name, email, password_hash, created_at, updated_at
		FROM users WHERE email = $1
	`
	var u models.User
	err := c.pool.QueryRow(ctx, q, email).Scan(
		&u.ID, &u.FirstName, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// Implementing the db interface for PDF documents

const documentColumns = `
	id, chatbot_id, user_id, filename, file_path, file_size, page_count,
	processing_status, error_message, created_at, processed_at
`

func scanDocument(row pgx.Row) (*models.PDFDocument, error) {
	var (
		d      models.PDFDocument
		status string
	)
	err := row.Scan(
		&d.ID, &d.ChatbotID, &d.UserID, &d.Filename, &d.FilePath, &d.FileSize, &d.PageCount,
		&status, &d.ErrorMessage, &d.CreatedAt, &d.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	d.ProcessingStatus = models.ProcessingStatus(status)
	if !d.ProcessingStatus.Valid() {
		return nil, fmt.Errorf("document %s: unknown processing status %q", d.ID, status)
	}
	return &d, nil
}

func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.PDFDocument) error {
	if doc == nil {
		return errors.New("nil document")
	}
	return pgx.BeginFunc(ctx, c.pool, func(tx pgx.Tx) error {
		const insert = `
			INSERT INTO pdf_documents
				(id, chatbot_id, user_id, filename, file_path, file_size, page_count, processing_status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
			RETURNING created_at
		`
		err := tx.QueryRow(ctx, insert,
			doc.ID, doc.ChatbotID, doc.UserID, doc.Filename, doc.FilePath, doc.FileSize, doc.PageCount, string(doc.ProcessingStatus),
		).Scan(&doc.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert document: %w", err)
		}

		const bump = `
			UPDATE chatbots
			SET pdf_count = pdf_count + 1, last_activity = now(), updated_at = now()
			WHERE id = $1 AND user_id = $2
		`
		tag, err := tx.Exec(ctx, bump, doc.ChatbotID, doc.UserID)
		if err != nil {
			return fmt.Errorf("bump pdf count: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return models.ErrChatbotNotFound
		}
		return nil
	})
}

func (c *DatabaseClient) GetDocument(ctx context.Context, id, userID string) (*models.PDFDocument, error) {
	q := `SELECT ` + documentColumns + ` FROM pdf_documents WHERE id = $1 AND user_id = $2`
	d, err := scanDocument(c.pool.QueryRow(ctx, q, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.PDFDocument, error) {
	q := `SELECT ` + documentColumns + ` FROM pdf_documents WHERE id = $1`
	d, err := scanDocument(c.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

func (c *DatabaseClient) ListDocumentsByChatbot(ctx context.Context, chatbotID, userID string) ([]models.PDFDocument, error) {
	q := `SELECT ` + documentColumns + `
		FROM pdf_documents
		WHERE chatbot_id = $1 AND user_id = $2
		ORDER BY created_at DESC
	`
	rows, err := c.pool.Query(ctx, q, chatbotID, userID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := []models.PDFDocument{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) ListDocumentsByStatus(ctx context.Context, status models.ProcessingStatus) ([]models.PDFDocument, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown processing status %q", models.ErrInvalidInput, status)
	}
	q := `SELECT ` + documentColumns + `
		FROM pdf_documents
		WHERE processing_status = $1
		ORDER BY created_at ASC
	`
	rows, err := c.pool.Query(ctx, q, string(status))
	if err != nil {
		return nil, fmt.Errorf("list %s documents: %w", status, err)
	}
	defer rows.Close()

	out := []models.PDFDocument{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) ListDocumentPathsByChatbot(ctx context.Context, chatbotID string) ([]string, error) {
	rows, err := c.pool.Query(ctx, `SELECT file_path FROM pdf_documents WHERE chatbot_id = $1`, chatbotID)
	if err != nil {
		return nil, fmt.Errorf("list document paths: %w", err)
	}
	paths, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect document paths: %w", err)
	}
	return paths, nil
}

func (c *DatabaseClient) UpdateDocumentStatus(ctx context.Context, id string, from, to models.ProcessingStatus, errMsg *string) error {
	if err := models.CheckTransition(from, to); err != nil {
		return err
	}
	const q = `
		UPDATE pdf_documents
		SET processing_status = $3,
		    error_message = $4,
		    processed_at = CASE WHEN $3 = 'completed' THEN now() ELSE processed_at END
		WHERE id = $1 AND processing_status = $2
	`
	tag, err := c.pool.Exec(ctx, q, id, string(from), string(to), errMsg)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := c.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pdf_documents WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check document: %w", err)
		}
		if !exists {
			return models.ErrDocumentNotFound
		}
		return fmt.Errorf("%w: document %s is no longer %s", models.ErrInvalidTransition, id, from)
	}
	return nil
}

func (c *DatabaseClient) DeleteDocument(ctx context.Context, id, userID string) error {
	return pgx.BeginFunc(ctx, c.pool, func(tx pgx.Tx) error {
		var chatbotID string
		err := tx.QueryRow(ctx,
			`DELETE FROM pdf_documents WHERE id = $1 AND user_id = $2 RETURNING chatbot_id`, id, userID,
		).Scan(&chatbotID)
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrDocumentNotFound
		}
		if err != nil {
			return fmt.Errorf("delete document: %w", err)
		}

		const drop = `
			UPDATE chatbots
			SET pdf_count = GREATEST(pdf_count - 1, 0), last_activity = now(), updated_at = now()
			WHERE id = $1
		`
		if _, err := tx.Exec(ctx, drop, chatbotID); err != nil {
			return fmt.Errorf("drop pdf count: %w", err)
		}
		return nil
	})
}

// Implementing the db interface for document chunks

func (c *DatabaseClient) ListDocumentChunks(ctx context.Context, documentID string) ([]models.DocumentChunk, error) {
	const q = `
		SELECT id, document_id, chatbot_id, position, content, embedding, created_at
		FROM document_chunks
		WHERE document_id = $1
		ORDER BY position ASC
	`
	rows, err := c.pool.Query(ctx, q, documentID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	out := []models.DocumentChunk{}
	for rows.Next() {
		var (
			ch  models.DocumentChunk
			emb *pgvector.Vector
		)
		if err := rows.Scan(&ch.ID, &ch.DocumentID, &ch.ChatbotID, &ch.Position, &ch.Content, &emb, &ch.CreatedAt); err != nil {
			return nil, err
		}
		if emb != nil {
			ch.Embedding = emb.Slice()
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) CountDocumentChunks(ctx context.Context, documentID string) (int, error) {
	var n int
	err := c.pool.QueryRow(ctx, `SELECT count(*) FROM document_chunks WHERE document_id = $1`, documentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}
