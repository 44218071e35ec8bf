package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"omnichat-backend/internal/history"
	"omnichat-backend/internal/llm"
	"omnichat-backend/internal/models"
	"omnichat-backend/internal/repository"
)

type ConversationHandler struct {
	conversations *repository.ConversationRepo
	manager       *history.Manager
}

func NewConversationHandler(conversations *repository.ConversationRepo, manager *history.Manager) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, manager: manager}
}

func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateConversationRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
			return
		}
	}

	if req.Model != "" {
		if _, ok := llm.Lookup(req.Model); !ok {
			writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
				map[string]string{"model": "unknown model: " + req.Model}, r))
			return
		}
	}

	conv := &models.Conversation{ModelName: req.Model}
	if err := h.conversations.Create(r.Context(), conv); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, conv)
}

func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	convs, err := h.conversations.List(r.Context(), 0)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if convs == nil {
		convs = []*models.Conversation{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"conversations": convs})
}

func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid conversation id", r))
		return
	}

	detail, err := h.manager.Detail(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid conversation id", r))
		return
	}

	deleted, err := h.conversations.Delete(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Conversation not found", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Conversation deleted"})
}

// Export streams a conversation as a downloadable file in the requested
// format: json, text or markdown (the default is json).
func (h *ConversationHandler) Export(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid conversation id", r))
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}

	contentType, extension := "", ""
	switch format {
	case "json":
		contentType, extension = "application/json", "json"
	case "text":
		contentType, extension = "text/plain; charset=utf-8", "txt"
	case "markdown":
		contentType, extension = "text/markdown; charset=utf-8", "md"
	default:
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"format": "must be one of json, text, markdown"}, r))
		return
	}

	out, err := h.manager.Export(r.Context(), id, format)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="conversation-%s.%s"`, id, extension))
	w.Write([]byte(out))
}
