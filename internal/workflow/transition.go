// internal/workflow/transition.go
package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "grant-backend/internal/common/errors"
	"grant-backend/internal/common/logger"
	"grant-backend/internal/common/metrics"
	"grant-backend/internal/models"
	"grant-backend/internal/store"
)

// RecordStore is the persistence surface the engine needs. The store's
// ApplyTransition must be atomic: status update and history append
// commit together or not at all.
type RecordStore interface {
	GetByID(ctx context.Context, id string) (*models.ApplicationRecord, error)
	ApplyTransition(ctx context.Context, source models.Source, id string, newStatus models.Status, actorID string, notes *string, at time.Time) (*models.ApplicationRecord, error)
}

// TransitionInput carries one status change request.
type TransitionInput struct {
	RecordID  string
	NewStatus models.Status
	ActorID   string
	// Notes, when set, replaces the record's review notes in the same
	// transaction as the status change.
	Notes *string
}

// Engine validates and applies status transitions.
type Engine struct {
	store  RecordStore
	policy *Policy
	logger logger.Logger
	now    func() time.Time
}

func NewEngine(recordStore RecordStore, policy *Policy, log logger.Logger) *Engine {
	return &Engine{
		store:  recordStore,
		policy: policy,
		logger: log.WithFields(map[string]interface{}{"component": "workflow-engine"}),
		now:    time.Now,
	}
}

// Transition moves a record to a new status and appends the audit entry.
// The returned record reflects the committed state. On any error the
// record is unchanged and no history entry exists.
func (e *Engine) Transition(ctx context.Context, input TransitionInput) (*models.ApplicationRecord, error) {
	if err := e.validateInput(input); err != nil {
		metrics.StatusTransitionsFailed.WithLabelValues(string(apperrors.ErrCodeValidationFailed)).Inc()
		return nil, err
	}

	rec, err := e.store.GetByID(ctx, input.RecordID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.StatusTransitionsFailed.WithLabelValues(string(apperrors.ErrCodeApplicationNotFound)).Inc()
			return nil, apperrors.NewApplicationNotFoundError(input.RecordID)
		}
		metrics.StatusTransitionsFailed.WithLabelValues(string(apperrors.ErrCodePersistenceFailed)).Inc()
		return nil, apperrors.NewPersistenceFailedError(err)
	}

	if !e.policy.IsAllowed(rec.Source, input.NewStatus) {
		metrics.StatusTransitionsFailed.WithLabelValues(string(apperrors.ErrCodeInvalidStatus)).Inc()
		return nil, apperrors.NewInvalidStatusError(string(input.NewStatus), e.policy.AllowedStatuses(rec.Source))
	}
	if !e.policy.CanTransition(rec.Source, rec.Status, input.NewStatus) {
		metrics.StatusTransitionsFailed.WithLabelValues(string(apperrors.ErrCodeInvalidStatus)).Inc()
		return nil, apperrors.NewInvalidStatusError(string(input.NewStatus), e.policy.AllowedStatuses(rec.Source))
	}

	updated, err := e.store.ApplyTransition(ctx, rec.Source, rec.ID, input.NewStatus, input.ActorID, input.Notes, e.now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.StatusTransitionsFailed.WithLabelValues(string(apperrors.ErrCodeApplicationNotFound)).Inc()
			return nil, apperrors.NewApplicationNotFoundError(input.RecordID)
		}
		metrics.StatusTransitionsFailed.WithLabelValues(string(apperrors.ErrCodePersistenceFailed)).Inc()
		return nil, apperrors.NewPersistenceFailedError(err)
	}

	metrics.StatusTransitionsTotal.WithLabelValues(string(updated.Source), string(updated.Status)).Inc()
	e.logger.Info("Status transition applied", map[string]interface{}{
		"recordId":  updated.ID,
		"source":    string(updated.Source),
		"newStatus": string(updated.Status),
		"actorId":   input.ActorID,
	})
	return updated, nil
}

func (e *Engine) validateInput(input TransitionInput) error {
	var missing []string
	if strings.TrimSpace(input.RecordID) == "" {
		missing = append(missing, "recordId")
	}
	if strings.TrimSpace(string(input.NewStatus)) == "" {
		missing = append(missing, "newStatus")
	}
	if strings.TrimSpace(input.ActorID) == "" {
		missing = append(missing, "actorId")
	}
	if len(missing) > 0 {
		return apperrors.NewValidationFailedError("missing required fields: " + strings.Join(missing, ", "))
	}
	return nil
}
