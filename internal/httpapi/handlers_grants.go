// internal/httpapi/handlers_grants.go
package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"grant-backend/internal/common/logger"
	"grant-backend/internal/grants"
	"grant-backend/internal/models"
)

type GrantHandler struct {
	service *grants.Service
	logger  logger.Logger
}

func NewGrantHandler(service *grants.Service, log logger.Logger) *GrantHandler {
	return &GrantHandler{
		service: service,
		logger:  log.WithFields(map[string]interface{}{"handler": "grants"}),
	}
}

// List handles GET /api/grants.
func (h *GrantHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	pageSize, _ := strconv.Atoi(query.Get("pageSize"))

	result, err := h.service.List(r.Context(),
		models.GrantStatus(query.Get("status")), query.Get("category"), page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListByCategory handles GET /api/grants/category/{category}.
func (h *GrantHandler) ListByCategory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	pageSize, _ := strconv.Atoi(query.Get("pageSize"))

	result, err := h.service.List(r.Context(),
		models.GrantStatus(query.Get("status")), mux.Vars(r)["category"], page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Search handles GET /api/grants/search?q=...
func (h *GrantHandler) Search(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	results, err := h.service.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"grants": results})
}

// Get handles GET /api/grants/{id}.
func (h *GrantHandler) Get(w http.ResponseWriter, r *http.Request) {
	g, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// Create handles POST /api/grants (admin).
func (h *GrantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input grants.GrantInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, err)
		return
	}

	g, err := h.service.Create(r.Context(), &input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

// Update handles PUT /api/grants/{id} (admin).
func (h *GrantHandler) Update(w http.ResponseWriter, r *http.Request) {
	var input grants.GrantInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, err)
		return
	}

	g, err := h.service.Update(r.Context(), mux.Vars(r)["id"], &input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// Delete handles DELETE /api/grants/{id} (admin).
func (h *GrantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
