package handlers

import (
	"PresetHub/internal/service"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// PresetHandler — публичный каталог.
type PresetHandler struct {
	responder
	Presets *service.PresetService
}

func (h *PresetHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Presets.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *PresetHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		h.writeError(w, r, service.ErrPresetNotFound)
		return
	}
	p, err := h.Presets.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PresetHandler) ListByCategory(w http.ResponseWriter, r *http.Request) {
	list, err := h.Presets.ListByCategory(r.Context(), chi.URLParam(r, "category"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
