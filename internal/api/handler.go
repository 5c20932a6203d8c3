package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/studymode/tutor/internal/registry"
	"github.com/studymode/tutor/internal/tutor"
)

type Handler struct {
	tutor  *tutor.Service
	logger *zap.Logger
}

func NewHandler(svc *tutor.Service, logger *zap.Logger) *Handler {
	return &Handler{tutor: svc, logger: logger}
}

type ChatRequest struct {
	Question string `json:"question"`
	UserName string `json:"userName"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// Routes registers the tutoring endpoints on a mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/tutor/start/{userId}", h.StartConversation)
	mux.HandleFunc("POST /api/tutor/ask/{userId}/{conversationId}", h.Ask)
	mux.HandleFunc("GET /api/tutor/list/{userId}", h.ListConversations)
	mux.HandleFunc("GET /api/tutor/history/{userId}/{conversationId}", h.GetHistory)
	mux.HandleFunc("DELETE /api/tutor/clear/{userId}/{conversationId}", h.DeleteConversation)
	mux.HandleFunc("DELETE /api/tutor/clearAll/{userId}", h.DeleteAllConversations)
	mux.HandleFunc("GET /api/tutor/health", h.Health)
}

func (h *Handler) StartConversation(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	title := r.URL.Query().Get("title")

	conv, err := h.tutor.Start(r.Context(), userID, title)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, conv)
}

func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	conversationID := r.PathValue("conversationId")

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.tutor.Ask(r.Context(), userID, conversationID, req.Question, req.UserName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.tutor.List(r.Context(), r.PathValue("userId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, conversations)
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	messages, err := h.tutor.History(r.Context(), r.PathValue("userId"), r.PathValue("conversationId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, messages)
}

func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	conversationID := r.PathValue("conversationId")

	if err := h.tutor.Delete(r.Context(), userID, conversationID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, statusResponse{Status: "deleted"})
}

func (h *Handler) DeleteAllConversations(w http.ResponseWriter, r *http.Request) {
	if err := h.tutor.DeleteAll(r.Context(), r.PathValue("userId")); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, statusResponse{Status: "deleted"})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

// writeError maps the error taxonomy to HTTP statuses. Ownership mismatches
// and unknown conversations share one 404 so existence is never leaked.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tutor.ErrEmptyQuestion), errors.Is(err, registry.ErrUserIDRequired):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, registry.ErrNotFoundOrForbidden):
		http.Error(w, "Conversation not found", http.StatusNotFound)
	case r.Context().Err() != nil:
		// Client is gone; nothing useful to write.
	default:
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
