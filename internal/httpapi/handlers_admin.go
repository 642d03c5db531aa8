// internal/httpapi/handlers_admin.go
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"grant-backend/internal/admin"
	apperrors "grant-backend/internal/common/errors"
	"grant-backend/internal/common/logger"
	"grant-backend/internal/models"
	"grant-backend/internal/notifications"
	"grant-backend/internal/workflow"
)

// StatusNotifier informs applicants about decisions. Dispatch is
// best effort and happens outside the request path.
type StatusNotifier interface {
	SendStatusChange(ctx context.Context, rec *models.ApplicationRecord) *notifications.Result
}

type AdminHandler struct {
	aggregator   *admin.Aggregator
	queryService *admin.QueryService
	engine       *workflow.Engine
	notifier     StatusNotifier
	logger       logger.Logger
}

func NewAdminHandler(aggregator *admin.Aggregator, queryService *admin.QueryService, engine *workflow.Engine, notifier StatusNotifier, log logger.Logger) *AdminHandler {
	return &AdminHandler{
		aggregator:   aggregator,
		queryService: queryService,
		engine:       engine,
		notifier:     notifier,
		logger:       log.WithFields(map[string]interface{}{"handler": "admin"}),
	}
}

// Dashboard handles GET /api/admin/dashboard.
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := h.aggregator.ComputeDashboard(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// List handles GET /api/admin/applications.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := models.ListFilter{
		Status:      models.Status(query.Get("status")),
		FundingType: query.Get("fundingType"),
		Search:      query.Get("search"),
	}
	sortSpec := models.SortSpec{
		Field:     query.Get("sortField"),
		Direction: models.SortDirection(query.Get("sortDir")),
	}
	page, _ := strconv.Atoi(query.Get("page"))
	pageSize, _ := strconv.Atoi(query.Get("pageSize"))

	result, err := h.queryService.List(r.Context(), filter, sortSpec, page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type statusUpdateRequest struct {
	Status models.Status `json:"status"`
	Notes  *string       `json:"notes,omitempty"`
}

// UpdateStatus handles PUT /api/admin/applications/{id}/status.
func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, apperrors.NewUnauthorizedError("no authenticated actor"))
		return
	}

	var request statusUpdateRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, err)
		return
	}

	updated, err := h.engine.Transition(r.Context(), workflow.TransitionInput{
		RecordID:  mux.Vars(r)["id"],
		NewStatus: request.Status,
		ActorID:   actor.ID,
		Notes:     request.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if h.notifier != nil {
		notified := *updated
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			result := h.notifier.SendStatusChange(ctx, &notified)
			h.logger.Info("Status change notification dispatched", map[string]interface{}{
				"recordId": notified.ID,
				"status":   result.Status,
			})
		}()
	}

	writeJSON(w, http.StatusOK, updated)
}
