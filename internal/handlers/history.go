package handlers

import (
	"net/http"
	"strconv"

	"omnichat-backend/internal/history"
	"omnichat-backend/internal/models"
	"omnichat-backend/internal/repository"
)

type HistoryHandler struct {
	manager  *history.Manager
	messages *repository.MessageRepo
}

func NewHistoryHandler(manager *history.Manager, messages *repository.MessageRepo) *HistoryHandler {
	return &HistoryHandler{manager: manager, messages: messages}
}

// Search finds messages across all conversations by substring match.
func (h *HistoryHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"q": "a search query is required"}, r))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	results, err := h.messages.Search(r.Context(), query, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if results == nil {
		results = []models.SearchResult{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

func (h *HistoryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.manager.Stats(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *HistoryHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.ClearAll(r.Context()); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "History cleared"})
}
