package handlers

import (
	"net/http"

	"github.com/markdave123-py/studygalaxy/internal/services"
)

type StreakHandler struct {
	streaks *services.StreakService
}

func NewStreakHandler(streaks *services.StreakService) *StreakHandler {
	return &StreakHandler{streaks: streaks}
}

func (h *StreakHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	st, err := h.streaks.Get(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Touch records today as a study day. botId, when given, receives the
// streak bonus.
func (h *StreakHandler) Touch(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		BotID string `json:"botId"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.streaks.Touch(r.Context(), userID, req.BotID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
