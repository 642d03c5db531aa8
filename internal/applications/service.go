// internal/applications/service.go

// Package applications handles applicant-facing operations: submitting
// a new funding application and reading back its state.
package applications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "grant-backend/internal/common/errors"
	"grant-backend/internal/common/logger"
	"grant-backend/internal/common/metrics"
	"grant-backend/internal/common/validation"
	"grant-backend/internal/models"
	"grant-backend/internal/notifications"
	"grant-backend/internal/store"
	"grant-backend/internal/workflow"
)

// SubmissionStore is the persistence surface for submissions and reads.
type SubmissionStore interface {
	Insert(ctx context.Context, rec *models.ApplicationRecord) error
	HasPendingByEmailAndType(ctx context.Context, source models.Source, email, fundingType string) (bool, error)
	GetByID(ctx context.Context, id string) (*models.ApplicationRecord, error)
	FindByEmail(ctx context.Context, email string) ([]models.ApplicationRecord, error)
}

// Notifier dispatches submission messages. Results are informational;
// delivery failures never fail a submission.
type Notifier interface {
	SendSubmissionConfirmation(ctx context.Context, rec *models.ApplicationRecord) *notifications.Result
	SendAdminAlert(ctx context.Context, rec *models.ApplicationRecord) *notifications.Result
}

// SubmissionInput is one application submission request.
type SubmissionInput struct {
	Source         models.Source         `json:"source"`
	PersonalInfo   models.PersonalInfo   `json:"personalInfo"`
	EmploymentInfo models.EmploymentInfo `json:"employmentInfo"`
	AddressInfo    models.AddressInfo    `json:"addressInfo"`
	FundingInfo    models.FundingInfo    `json:"fundingInfo"`
	Documents      models.Documents      `json:"documents"`
	SubmittedBy    string                `json:"submittedBy,omitempty"`
	AgreeToComms   bool                  `json:"agreeToCommunication"`
	TermsAccepted  bool                  `json:"termsAccepted"`
}

type Service struct {
	store       SubmissionStore
	policy      *workflow.Policy
	notifier    Notifier
	seedHistory bool
	logger      logger.Logger
	now         func() time.Time
	newID       func() string
}

func NewService(submissionStore SubmissionStore, policy *workflow.Policy, notifier Notifier, seedHistory bool, log logger.Logger) *Service {
	return &Service{
		store:       submissionStore,
		policy:      policy,
		notifier:    notifier,
		seedHistory: seedHistory,
		logger:      log.WithFields(map[string]interface{}{"component": "application-service"}),
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
	}
}

// Submit validates the input, rejects duplicates, persists a new PENDING
// record and fires confirmation messages. Notification delivery runs in
// the background and cannot fail the submission.
func (s *Service) Submit(ctx context.Context, input *SubmissionInput) (*models.ApplicationRecord, error) {
	variant := string(input.Source)
	if !s.policy.Knows(input.Source) {
		metrics.ApplicationsSubmitted.WithLabelValues(variant, "rejected").Inc()
		return nil, apperrors.NewValidationFailedError(fmt.Sprintf("unknown application variant: %s", variant))
	}

	if result := s.validate(input); !result.Valid {
		metrics.ApplicationsSubmitted.WithLabelValues(variant, "rejected").Inc()
		return nil, apperrors.NewValidationFailedError(strings.Join(result.GetErrorMessages(), "; "))
	}

	duplicate, err := s.store.HasPendingByEmailAndType(ctx, input.Source, input.PersonalInfo.Email, input.FundingInfo.FundingType)
	if err != nil {
		metrics.ApplicationsSubmitted.WithLabelValues(variant, "failure").Inc()
		return nil, apperrors.NewPersistenceFailedError(err)
	}
	if duplicate {
		metrics.ApplicationsSubmitted.WithLabelValues(variant, "duplicate").Inc()
		return nil, apperrors.NewDuplicateApplicationError(
			fmt.Sprintf("a pending %s application already exists for this applicant", input.FundingInfo.FundingType))
	}

	now := s.now().UTC()
	rec := &models.ApplicationRecord{
		ID:             s.newID(),
		Source:         input.Source,
		PersonalInfo:   input.PersonalInfo,
		EmploymentInfo: input.EmploymentInfo,
		AddressInfo:    input.AddressInfo,
		FundingInfo:    input.FundingInfo,
		Documents:      input.Documents,
		Status:         models.StatusPending,
		SubmittedBy:    input.SubmittedBy,
		AgreeToComms:   input.AgreeToComms,
		TermsAccepted:  input.TermsAccepted,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if s.seedHistory {
		rec.StatusHistory = []models.StatusChange{
			{Status: models.StatusPending, ChangedBy: "system", ChangedAt: now},
		}
	}

	if err := s.store.Insert(ctx, rec); err != nil {
		metrics.ApplicationsSubmitted.WithLabelValues(variant, "failure").Inc()
		return nil, apperrors.NewPersistenceFailedError(err)
	}

	metrics.ApplicationsSubmitted.WithLabelValues(variant, "success").Inc()
	s.logger.Info("Application submitted", map[string]interface{}{
		"recordId":    rec.ID,
		"source":      variant,
		"fundingType": rec.FundingInfo.FundingType,
	})

	if s.notifier != nil {
		notified := *rec
		go s.notifySubmission(&notified)
	}
	return rec, nil
}

func (s *Service) notifySubmission(rec *models.ApplicationRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	confirmation := s.notifier.SendSubmissionConfirmation(ctx, rec)
	alert := s.notifier.SendAdminAlert(ctx, rec)
	s.logger.Info("Submission notifications dispatched", map[string]interface{}{
		"recordId":     rec.ID,
		"confirmation": confirmation.Status,
		"adminAlert":   alert.Status,
	})
}

func (s *Service) validate(input *SubmissionInput) *validation.ValidationResult {
	var errs []validation.ValidationError

	errs = validation.RequireString(errs, "personalInfo.firstName", input.PersonalInfo.FirstName)
	errs = validation.RequireString(errs, "personalInfo.lastName", input.PersonalInfo.LastName)
	errs = validation.RequireString(errs, "personalInfo.email", input.PersonalInfo.Email)
	errs = validation.RequireString(errs, "personalInfo.phoneNumber", input.PersonalInfo.PhoneNumber)
	errs = validation.RequireString(errs, "addressInfo.streetAddress", input.AddressInfo.StreetAddress)
	errs = validation.RequireString(errs, "addressInfo.city", input.AddressInfo.City)
	errs = validation.RequireString(errs, "addressInfo.state", input.AddressInfo.State)
	errs = validation.RequireString(errs, "addressInfo.zip", input.AddressInfo.Zip)
	errs = validation.RequireString(errs, "fundingInfo.fundingType", input.FundingInfo.FundingType)
	errs = validation.RequireString(errs, "fundingInfo.fundingPurpose", input.FundingInfo.FundingPurpose)
	errs = validation.RequireString(errs, "documents.idCardFront", input.Documents.IDCardFront)
	errs = validation.RequireString(errs, "documents.idCardBack", input.Documents.IDCardBack)

	if input.PersonalInfo.Email != "" && !validation.ValidateEmail(input.PersonalInfo.Email) {
		errs = append(errs, validation.ValidationError{
			Field: "personalInfo.email", Message: "invalid email format", Code: "INVALID_FORMAT",
		})
	}
	if input.PersonalInfo.PhoneNumber != "" && !validation.ValidatePhone(input.PersonalInfo.PhoneNumber) {
		errs = append(errs, validation.ValidationError{
			Field: "personalInfo.phoneNumber", Message: "invalid phone format", Code: "INVALID_FORMAT",
		})
	}
	if input.PersonalInfo.SSN != "" && !validation.ValidateSSN(input.PersonalInfo.SSN) {
		errs = append(errs, validation.ValidationError{
			Field: "personalInfo.ssn", Message: "invalid SSN format", Code: "INVALID_FORMAT",
		})
	}
	if input.AddressInfo.Zip != "" && !validation.ValidateZIP(input.AddressInfo.Zip) {
		errs = append(errs, validation.ValidationError{
			Field: "addressInfo.zip", Message: "invalid ZIP code", Code: "INVALID_FORMAT",
		})
	}
	if !input.TermsAccepted {
		errs = append(errs, validation.ValidationError{
			Field: "termsAccepted", Message: "terms must be accepted", Code: "TERMS_NOT_ACCEPTED",
		})
	}

	errs = s.validateFundingAmount(input, errs)

	return validation.NewResult(errs)
}

func (s *Service) validateFundingAmount(input *SubmissionInput, errs []validation.ValidationError) []validation.ValidationError {
	amount := input.FundingInfo.FundingAmount
	min, max, _ := s.policy.FundingBounds(input.Source)

	if amount <= 0 {
		return append(errs, validation.ValidationError{
			Field: "fundingInfo.fundingAmount", Message: "funding amount must be positive", Code: "INVALID_AMOUNT",
		})
	}
	if min > 0 && amount < min {
		errs = append(errs, validation.ValidationError{
			Field:   "fundingInfo.fundingAmount",
			Message: fmt.Sprintf("funding amount below minimum of %.0f", min),
			Code:    "AMOUNT_OUT_OF_RANGE",
		})
	}
	if max > 0 && amount > max {
		errs = append(errs, validation.ValidationError{
			Field:   "fundingInfo.fundingAmount",
			Message: fmt.Sprintf("funding amount above maximum of %.0f", max),
			Code:    "AMOUNT_OUT_OF_RANGE",
		})
	}
	return errs
}

// GetByID returns the full record, status history included.
func (s *Service) GetByID(ctx context.Context, id string) (*models.ApplicationRecord, error) {
	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NewApplicationNotFoundError(id)
		}
		return nil, apperrors.NewQueryExecutionFailedError("get application", err)
	}
	return rec, nil
}

// StatusProjection is the lightweight status view for applicants polling
// their application.
type StatusProjection struct {
	RecordID      string                `json:"recordId"`
	Status        models.Status         `json:"status"`
	StatusHistory []models.StatusChange `json:"statusHistory"`
	UpdatedAt     time.Time             `json:"updatedAt"`
}

// GetStatus returns the status projection of one record.
func (s *Service) GetStatus(ctx context.Context, id string) (*StatusProjection, error) {
	rec, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &StatusProjection{
		RecordID:      rec.ID,
		Status:        rec.Status,
		StatusHistory: rec.StatusHistory,
		UpdatedAt:     rec.UpdatedAt,
	}, nil
}

// Summary is the slim per-application row for an applicant's own list.
type Summary struct {
	ID            string        `json:"id"`
	Source        models.Source `json:"source"`
	Status        models.Status `json:"status"`
	FundingType   string        `json:"fundingType"`
	FundingAmount float64       `json:"fundingAmount"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// ListByEmail returns summaries of all applications submitted with the
// given email, newest first.
func (s *Service) ListByEmail(ctx context.Context, email string) ([]Summary, error) {
	if !validation.ValidateEmail(email) {
		return nil, apperrors.NewValidationFailedError("invalid email format")
	}

	records, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("find by email", err)
	}

	summaries := make([]Summary, 0, len(records))
	for _, rec := range records {
		summaries = append(summaries, Summary{
			ID:            rec.ID,
			Source:        rec.Source,
			Status:        rec.Status,
			FundingType:   rec.FundingInfo.FundingType,
			FundingAmount: rec.FundingInfo.FundingAmount,
			CreatedAt:     rec.CreatedAt,
			UpdatedAt:     rec.UpdatedAt,
		})
	}
	return summaries, nil
}
