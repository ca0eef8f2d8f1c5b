package realtime

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/studygalaxy/internal/models"
)

const insertPayload = `{
	"op": "INSERT",
	"id": "bot-1",
	"user_id": "user-1",
	"record": {
		"id": "bot-1", "user_id": "user-1", "name": "Biology", "description": "cells",
		"xp": 330, "pdf_count": 2, "last_activity": "2024-05-01T10:00:00.123456+00:00",
		"orbit_radius": 8, "orbit_speed": 0.0625, "texture_type": "icy",
		"planet_size": 0.8, "activity": 0.3, "angle_offset": 1.2,
		"created_at": "2024-05-01T09:00:00+00:00", "updated_at": "2024-05-01T10:00:00+00:00"
	}
}`

func TestDecodeInsert(t *testing.T) {
	userID, ev, err := DecodeNotification(insertPayload)
	require.NoError(t, err)

	assert.Equal(t, "user-1", userID)
	assert.Equal(t, models.EventChatbotInsert, ev.Type)
	assert.Equal(t, "bot-1", ev.ChatbotID)
	require.NotNil(t, ev.Chatbot)
	assert.Equal(t, "Biology", ev.Chatbot.Name)
	assert.Equal(t, 2, ev.Chatbot.Level)
	assert.Equal(t, 2, ev.Chatbot.PDFCount)
	assert.Equal(t, models.TextureIcy, ev.Chatbot.PlanetData.TextureType)
	assert.Equal(t, 8.0, ev.Chatbot.PlanetData.OrbitRadius)
	assert.Equal(t, 2024, ev.Chatbot.LastActivity.Year())
	assert.NotZero(t, ev.Timestamp)
}

func TestDecodeDeleteAndErrors(t *testing.T) {
	userID, ev, err := DecodeNotification(`{"op":"DELETE","id":"bot-1","user_id":"user-1"}`)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	assert.Equal(t, models.EventChatbotDelete, ev.Type)
	assert.Nil(t, ev.Chatbot)

	_, _, err = DecodeNotification(`{"op":"TRUNCATE","id":"bot-1","user_id":"user-1"}`)
	assert.Error(t, err)
	_, _, err = DecodeNotification(`{"op":"INSERT"}`)
	assert.Error(t, err)
	_, _, err = DecodeNotification(`not json`)
	assert.Error(t, err)
}

type capturePublisher struct {
	mu     sync.Mutex
	users  []string
	events []models.ChangeEvent
}

func (c *capturePublisher) Publish(userID string, ev models.ChangeEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users = append(c.users, userID)
	c.events = append(c.events, ev)
}

func (c *capturePublisher) ids() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, ev := range c.events {
		out = append(out, ev.ChatbotID)
	}
	return out
}

// scriptedConn delivers payloads then fails, or blocks once they run out
// when hold is set.
type scriptedConn struct {
	payloads []string
	hold     bool
	listened atomic.Bool
}

func (c *scriptedConn) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	c.listened.Store(true)
	return pgconn.NewCommandTag("LISTEN"), nil
}

func (c *scriptedConn) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	if len(c.payloads) == 0 {
		if c.hold {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return nil, errors.New("connection reset by peer")
	}
	p := c.payloads[0]
	c.payloads = c.payloads[1:]
	return &pgconn.Notification{Channel: ChangeChannel, Payload: p}, nil
}

func (c *scriptedConn) Close(context.Context) error { return nil }

func TestHandleRefetchesOversizedRows(t *testing.T) {
	pub := &capturePublisher{}
	var looked []string
	l := NewListener("", pub, func(_ context.Context, id, userID string) (*models.ChatBot, error) {
		looked = append(looked, id+"/"+userID)
		return &models.ChatBot{ID: id, UserID: userID, Name: "refetched"}, nil
	})

	l.handle(context.Background(), `{"op":"UPDATE","id":"bot-9","user_id":"user-1"}`)
	l.handle(context.Background(), `{"op":"DELETE","id":"bot-9","user_id":"user-1"}`)
	l.handle(context.Background(), `garbage`)

	assert.Equal(t, []string{"bot-9/user-1"}, looked)
	require.Len(t, pub.events, 2)
	assert.Equal(t, "refetched", pub.events[0].Chatbot.Name)
	assert.Equal(t, models.EventChatbotDelete, pub.events[1].Type)
	assert.Equal(t, []string{"user-1", "user-1"}, pub.users)
}

func TestRunReconnectsAfterDrop(t *testing.T) {
	pub := &capturePublisher{}
	l := NewListener("", pub, nil)
	l.minBackoff = time.Millisecond
	l.maxBackoff = 5 * time.Millisecond

	deleteOf := func(id string) string {
		return `{"op":"DELETE","id":"` + id + `","user_id":"user-1"}`
	}
	last := &scriptedConn{payloads: []string{deleteOf("bot-3")}, hold: true}
	var dials atomic.Int32
	l.connect = func(context.Context) (notifyConn, error) {
		switch dials.Add(1) {
		case 1:
			return &scriptedConn{payloads: []string{deleteOf("bot-1")}}, nil
		case 2:
			return nil, errors.New("dial tcp: connection refused")
		case 3:
			return &scriptedConn{payloads: []string{deleteOf("bot-2")}}, nil
		default:
			return last, nil
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	assert.Eventually(t, func() bool {
		return strings.Join(pub.ids(), ",") == "bot-1,bot-2,bot-3"
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, last.listened.Load())
	assert.EqualValues(t, 4, dials.Load())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestDecodeRejectsUnknownTexture(t *testing.T) {
	payload := strings.Replace(insertPayload, `"icy"`, `"plasma"`, 1)
	_, _, err := DecodeNotification(payload)
	assert.ErrorContains(t, err, "unknown texture")
}
