package handlers

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"omnichat-backend/internal/llm"
	"omnichat-backend/internal/models"
)

type ModelHandler struct{}

func NewModelHandler() *ModelHandler {
	return &ModelHandler{}
}

// List returns every catalog model with its availability, so the UI can show
// unavailable models greyed out instead of hiding them.
func (h *ModelHandler) List(w http.ResponseWriter, r *http.Request) {
	specs := llm.All()
	out := make([]models.ModelInfo, 0, len(specs))
	for i := range specs {
		s := &specs[i]
		out = append(out, models.ModelInfo{
			Name:           s.Name,
			Provider:       s.Provider,
			ModelID:        s.ModelID,
			Description:    s.Description,
			SupportsVision: s.SupportsVision,
			Available:      s.Available(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"models": out})
}

// Get returns a single catalog model by display name. Display names contain
// spaces, so the path segment arrives escaped.
func (h *ModelHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	spec, ok := llm.Lookup(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Unknown model: "+name, r))
		return
	}
	writeJSON(w, http.StatusOK, models.ModelInfo{
		Name:           spec.Name,
		Provider:       spec.Provider,
		ModelID:        spec.ModelID,
		Description:    spec.Description,
		SupportsVision: spec.SupportsVision,
		Available:      spec.Available(),
	})
}
