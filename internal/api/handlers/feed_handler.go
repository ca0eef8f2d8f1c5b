package handlers

import (
	"net/http"

	"github.com/markdave123-py/studygalaxy/internal/realtime"
)

type FeedHandler struct {
	hub *realtime.Hub
}

func NewFeedHandler(hub *realtime.Hub) *FeedHandler {
	return &FeedHandler{hub: hub}
}

// Subscribe upgrades to a WebSocket that streams the caller's change events.
func (h *FeedHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	h.hub.ServeWS(w, r, userID)
}

// Health reports liveness.
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
