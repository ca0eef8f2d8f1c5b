package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/markdave123-py/studygalaxy/internal/core/galaxy"
	"github.com/markdave123-py/studygalaxy/internal/core/leveling"
	"github.com/markdave123-py/studygalaxy/internal/models"
)

// ChangeChannel is the NOTIFY channel the chatbots trigger writes to.
const ChangeChannel = "chatbot_changes"

// ChatbotLookup refetches a row whose notification was too large to carry it.
type ChatbotLookup func(ctx context.Context, id, userID string) (*models.ChatBot, error)

// notifyConn is the part of *pgx.Conn the listener uses.
type notifyConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// Listener turns Postgres notifications into change events on a Publisher.
type Listener struct {
	publisher  Publisher
	lookup     ChatbotLookup
	connect    func(ctx context.Context) (notifyConn, error)
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewListener(dsn string, publisher Publisher, lookup ChatbotLookup) *Listener {
	return &Listener{
		publisher: publisher,
		lookup:    lookup,
		connect: func(ctx context.Context) (notifyConn, error) {
			conn, err := pgx.Connect(ctx, dsn)
			if err != nil {
				return nil, err
			}
			return conn, nil
		},
		minBackoff: time.Second,
		maxBackoff: 30 * time.Second,
	}
}

// Run holds a dedicated connection in LISTEN mode until ctx ends,
// reconnecting with exponential backoff when the connection drops.
func (l *Listener) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.minBackoff
	b.MaxInterval = l.maxBackoff
	b.MaxElapsedTime = 0
	b.Reset()

	for {
		listening, err := l.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if listening {
			b.Reset()
		}
		wait := b.NextBackOff()
		slog.Warn("change listener disconnected", "error", err, "retry_in", wait)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// listen serves one connection until it fails. listening reports whether
// LISTEN was issued on it.
func (l *Listener) listen(ctx context.Context) (listening bool, err error) {
	conn, err := l.connect(ctx)
	if err != nil {
		return false, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.WithoutCancel(ctx))

	if _, err := conn.Exec(ctx, "LISTEN "+ChangeChannel); err != nil {
		return false, fmt.Errorf("listen: %w", err)
	}
	slog.Info("listening for chatbot changes", "channel", ChangeChannel)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return true, err
		}
		l.handle(ctx, n.Payload)
	}
}

func (l *Listener) handle(ctx context.Context, payload string) {
	userID, ev, err := DecodeNotification(payload)
	if err != nil {
		slog.Warn("bad change notification", "error", err)
		return
	}

	if ev.Type != models.EventChatbotDelete && ev.Chatbot == nil {
		if l.lookup == nil {
			return
		}
		bot, err := l.lookup(ctx, ev.ChatbotID, userID)
		if err != nil {
			slog.Warn("refetch changed chatbot", "chatbot_id", ev.ChatbotID, "error", err)
			return
		}
		ev.Chatbot = bot
	}
	l.publisher.Publish(userID, ev)
}

type notification struct {
	Op     string          `json:"op"`
	ID     string          `json:"id"`
	UserID string          `json:"user_id"`
	Record json.RawMessage `json:"record"`
}

// chatbotRecord mirrors row_to_json output for the chatbots table.
type chatbotRecord struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	XP           int       `json:"xp"`
	PDFCount     int       `json:"pdf_count"`
	LastActivity time.Time `json:"last_activity"`
	OrbitRadius  float64   `json:"orbit_radius"`
	OrbitSpeed   float64   `json:"orbit_speed"`
	TextureType  string    `json:"texture_type"`
	PlanetSize   float64   `json:"planet_size"`
	Activity     float64   `json:"activity"`
	AngleOffset  float64   `json:"angle_offset"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (r chatbotRecord) toChatBot() *models.ChatBot {
	return &models.ChatBot{
		ID:           r.ID,
		UserID:       r.UserID,
		Name:         r.Name,
		Description:  r.Description,
		XP:           r.XP,
		Level:        leveling.CalculateLevel(r.XP),
		PDFCount:     r.PDFCount,
		LastActivity: r.LastActivity,
		PlanetData: models.PlanetData{
			OrbitRadius: r.OrbitRadius,
			OrbitSpeed:  r.OrbitSpeed,
			TextureType: models.TextureType(r.TextureType),
			Size:        r.PlanetSize,
			Activity:    r.Activity,
			AngleOffset: r.AngleOffset,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// DecodeNotification parses a trigger payload into the owning user and event.
// Chatbot is nil for deletes and for oversized rows sent without a record.
func DecodeNotification(payload string) (string, models.ChangeEvent, error) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return "", models.ChangeEvent{}, fmt.Errorf("decode notification: %w", err)
	}
	if n.ID == "" || n.UserID == "" {
		return "", models.ChangeEvent{}, errors.New("notification missing id or user_id")
	}

	ev := models.ChangeEvent{ChatbotID: n.ID, Timestamp: time.Now().UnixMilli()}
	switch n.Op {
	case "INSERT":
		ev.Type = models.EventChatbotInsert
	case "UPDATE":
		ev.Type = models.EventChatbotUpdate
	case "DELETE":
		ev.Type = models.EventChatbotDelete
		return n.UserID, ev, nil
	default:
		return "", models.ChangeEvent{}, fmt.Errorf("unknown notification op %q", n.Op)
	}

	if len(n.Record) > 0 && string(n.Record) != "null" {
		var rec chatbotRecord
		if err := json.Unmarshal(n.Record, &rec); err != nil {
			return "", models.ChangeEvent{}, fmt.Errorf("decode chatbot record: %w", err)
		}
		if !galaxy.ValidTexture(models.TextureType(rec.TextureType)) {
			return "", models.ChangeEvent{}, fmt.Errorf("chatbot %s: unknown texture %q", n.ID, rec.TextureType)
		}
		ev.Chatbot = rec.toChatBot()
	}
	return n.UserID, ev, nil
}
