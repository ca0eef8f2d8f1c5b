package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/studygalaxy/internal/models"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub([]string{"http://localhost:5173"})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("user"))
	}))
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) models.ChangeEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev models.ChangeEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestHubDeliversOnlyToOwner(t *testing.T) {
	hub, url := startHub(t)

	alice := dial(t, url+"?user=alice")
	bob := dial(t, url+"?user=bob")
	require.Eventually(t, func() bool {
		return hub.ClientCount("alice") == 1 && hub.ClientCount("bob") == 1
	}, time.Second, 10*time.Millisecond)

	hub.Publish("alice", models.ChangeEvent{
		Type:      models.EventChatbotUpdate,
		ChatbotID: "bot-1",
		Chatbot:   &models.ChatBot{ID: "bot-1", Name: "Biology"},
	})
	ev := readEvent(t, alice)
	assert.Equal(t, models.EventChatbotUpdate, ev.Type)
	assert.Equal(t, "Biology", ev.Chatbot.Name)
	assert.NotZero(t, ev.Timestamp)

	hub.PublishProgress("bob", models.UploadProgress{ChatbotID: "bot-2", Phase: models.PhaseChunking, Progress: 75})
	ev = readEvent(t, bob)
	assert.Equal(t, models.EventUploadProgress, ev.Type)
	assert.Equal(t, "bot-2", ev.ChatbotID)
	require.NotNil(t, ev.Progress)
	assert.Equal(t, 75, ev.Progress.Progress)
}

func TestHubUnregistersClosedClients(t *testing.T) {
	hub, url := startHub(t)

	conn := dial(t, url+"?user=alice")
	require.Eventually(t, func() bool { return hub.ClientCount("alice") == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount("alice") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubRejectsForeignOrigin(t *testing.T) {
	_, url := startHub(t)

	header := http.Header{"Origin": []string{"http://evil.test"}}
	_, resp, err := websocket.DefaultDialer.Dial(url+"?user=alice", header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
