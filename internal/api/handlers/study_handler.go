package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/studygalaxy/internal/services"
)

type StudyHandler struct {
	study *services.StudyService
}

func NewStudyHandler(study *services.StudyService) *StudyHandler {
	return &StudyHandler{study: study}
}

func (h *StudyHandler) Chat(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.reply(w, r)(h.study.Chat(r.Context(), chi.URLParam(r, "id"), userID, req.Message))
}

func (h *StudyHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	h.reply(w, r)(h.study.Summarize(r.Context(), chi.URLParam(r, "id"), userID))
}

func (h *StudyHandler) ShortNotes(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	h.reply(w, r)(h.study.ShortNotes(r.Context(), chi.URLParam(r, "id"), userID))
}

func (h *StudyHandler) Quiz(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		QuestionCount int `json:"questionCount"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.reply(w, r)(h.study.Quiz(r.Context(), chi.URLParam(r, "id"), userID, req.QuestionCount))
}

func (h *StudyHandler) reply(w http.ResponseWriter, r *http.Request) func(*services.StudyResult, error) {
	return func(res *services.StudyResult, err error) {
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
