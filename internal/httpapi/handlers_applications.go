// internal/httpapi/handlers_applications.go
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"grant-backend/internal/applications"
	apperrors "grant-backend/internal/common/errors"
	"grant-backend/internal/common/logger"
	"grant-backend/internal/models"
)

type ApplicationHandler struct {
	service *applications.Service
	logger  logger.Logger
}

func NewApplicationHandler(service *applications.Service, log logger.Logger) *ApplicationHandler {
	return &ApplicationHandler{
		service: service,
		logger:  log.WithFields(map[string]interface{}{"handler": "applications"}),
	}
}

// Submit handles POST /api/applications.
func (h *ApplicationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var input applications.SubmissionInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, err)
		return
	}
	if input.Source == "" {
		input.Source = models.SourceGrant
	}

	rec, err := h.service.Submit(r.Context(), &input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// Get handles GET /api/applications/{id}. The SSN never leaves the
// service boundary.
func (h *ApplicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	redacted := *rec
	redacted.PersonalInfo.SSN = ""
	writeJSON(w, http.StatusOK, &redacted)
}

// GetStatus handles GET /api/applications/{id}/status.
func (h *ApplicationHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	projection, err := h.service.GetStatus(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projection)
}

// ListByEmail handles GET /api/applications?email=...
func (h *ApplicationHandler) ListByEmail(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeError(w, apperrors.NewValidationFailedError("email query parameter is required"))
		return
	}

	summaries, err := h.service.ListByEmail(r.Context(), email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"applications": summaries})
}
