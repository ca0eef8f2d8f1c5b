package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/studygalaxy/internal/core/leveling"
	"github.com/markdave123-py/studygalaxy/internal/models"
	"github.com/markdave123-py/studygalaxy/internal/services"
)

type ChatbotHandler struct {
	bots *services.ChatbotService
}

func NewChatbotHandler(bots *services.ChatbotService) *ChatbotHandler {
	return &ChatbotHandler{bots: bots}
}

// chatbotView is a chatbot plus its derived level attributes.
type chatbotView struct {
	*models.ChatBot
	Leveling leveling.Snapshot `json:"leveling"`
}

func (h *ChatbotHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	bots, err := h.bots.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bots)
}

func (h *ChatbotHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.bots.Create(r.Context(), userID, req.Name, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *ChatbotHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	bot, err := h.bots.Get(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chatbotView{ChatBot: bot, Leveling: leveling.SnapshotFor(bot.XP)})
}

func (h *ChatbotHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	bot, err := h.bots.Update(r.Context(), chi.URLParam(r, "id"), userID, req.Name, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bot)
}

func (h *ChatbotHandler) UpdateActivity(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Activity *float64 `json:"activity"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Activity == nil {
		writeError(w, r, fmt.Errorf("%w: activity is required", models.ErrInvalidInput))
		return
	}

	bot, err := h.bots.UpdateActivity(r.Context(), chi.URLParam(r, "id"), userID, *req.Activity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bot)
}

func (h *ChatbotHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.bots.Delete(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AwardXP grants the reward for a client-observed action, such as a
// correct quiz answer or a long study session.
func (h *ChatbotHandler) AwardXP(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Action string `json:"action"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	action, err := leveling.ParseAction(req.Action)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
		return
	}

	award, err := h.bots.AwardXP(r.Context(), chi.URLParam(r, "id"), userID, action)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, award)
}
