package registry

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/studygalaxy/internal/core/leveling"
	"github.com/markdave123-py/studygalaxy/internal/models"
)

func TestHTTPClient_SendsTokenAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/chatbots", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]models.ChatBot{{ID: "a", Name: "Venus"}})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/api/", "tok")
	bots, err := c.ListChatbots(context.Background())
	require.NoError(t, err)
	require.Len(t, bots, 1)
	assert.Equal(t, "Venus", bots[0].Name)
}

func TestHTTPClient_ErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"chatbot not found"}`)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	err := c.DeleteChatbot(context.Background(), "gone")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "chatbot not found", apiErr.Message)
}

func TestHTTPClient_AwardXP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chatbots/b1/xp", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "QUIZ_ME", body["action"])
		_ = json.NewEncoder(w).Encode(models.XPAward{Action: body["action"], Amount: 15})
	}))
	defer srv.Close()

	award, err := NewHTTPClient(srv.URL, "t").AwardXP(context.Background(), "b1", leveling.ActionQuizMe)
	require.NoError(t, err)
	assert.Equal(t, 15, award.Amount)
}

func TestHTTPClient_QuizOmitsZeroCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		assert.Empty(t, raw)
		_, _ = io.WriteString(w, `{"content":"","quiz":{"questions":[]}}`)
	}))
	defer srv.Close()

	reply, err := NewHTTPClient(srv.URL, "t").Quiz(context.Background(), "b1", 0)
	require.NoError(t, err)
	assert.JSONEq(t, `{"questions":[]}`, string(reply.Quiz))
}

func TestHTTPClient_UploadPDFStreamsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chatbots/b1/documents", r.URL.Path)
		mt, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)
		assert.Equal(t, "multipart/form-data", mt)

		part, err := multipart.NewReader(r.Body, params["boundary"]).NextPart()
		require.NoError(t, err)
		assert.Equal(t, "file", part.FormName())
		assert.Equal(t, "lecture.pdf", part.FileName())
		assert.Equal(t, "application/pdf", part.Header.Get("Content-Type"))
		data, _ := io.ReadAll(part)
		assert.Equal(t, "%PDF-1.7 body", string(data))

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Upload{Document: &models.PDFDocument{ID: "d1", Filename: part.FileName()}})
	}))
	defer srv.Close()

	res, err := NewHTTPClient(srv.URL, "t").UploadPDF(context.Background(), "b1", "lecture.pdf", strings.NewReader("%PDF-1.7 body"))
	require.NoError(t, err)
	assert.Equal(t, "d1", res.Document.ID)
}

func TestHTTPClient_DialFeed(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/feed", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(models.ChangeEvent{Type: models.EventChatbotDelete, ChatbotID: "x"})
	}))
	defer srv.Close()

	conn, err := NewHTTPClient(srv.URL+"/api", "tok").DialFeed(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	var ev models.ChangeEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, models.EventChatbotDelete, ev.Type)
	assert.Equal(t, "x", ev.ChatbotID)
}
