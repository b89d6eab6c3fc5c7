package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"chatbridge/internal/catalog"
)

// ModelCookie remembers the model picked in the browser.
const ModelCookie = "chat-model"

type ModelsHandler struct {
	catalog *catalog.Catalog
}

func NewModelsHandler(cat *catalog.Catalog) *ModelsHandler {
	return &ModelsHandler{catalog: cat}
}

func (h *ModelsHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"models":    h.catalog.Search(r.URL.Query().Get("q")),
		"providers": h.catalog.Providers(),
		"default":   h.catalog.Default().ID,
		"selected":  h.selected(r),
	})
}

// selected is the cookie's model when the catalog still offers it.
func (h *ModelsHandler) selected(r *http.Request) string {
	c, err := r.Cookie(ModelCookie)
	if err == nil && h.catalog.Has(c.Value) {
		return c.Value
	}
	return h.catalog.Default().ID
}

func (h *ModelsHandler) SetSelection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if !h.catalog.Has(req.Model) {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"model": "Unknown model"}, r))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     ModelCookie,
		Value:    req.Model,
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"selected": req.Model})
}
