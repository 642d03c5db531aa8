// internal/grants/service.go

// Package grants manages published grant listings: CRUD, browsing and
// full-text search with a SQL fallback when the search cluster is
// unavailable.
package grants

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "grant-backend/internal/common/errors"
	"grant-backend/internal/common/logger"
	"grant-backend/internal/common/validation"
	"grant-backend/internal/models"
	"grant-backend/internal/store"
)

// ListingStore is the SQL persistence surface for grant listings.
type ListingStore interface {
	Insert(ctx context.Context, g *models.GrantListing) error
	Update(ctx context.Context, g *models.GrantListing) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*models.GrantListing, error)
	List(ctx context.Context, filter store.GrantFilter, page, pageSize int) ([]models.GrantListing, error)
	Count(ctx context.Context, filter store.GrantFilter) (int, error)
}

// GrantInput carries the writable fields of a listing.
type GrantInput struct {
	Title        string             `json:"title"`
	Description  string             `json:"description"`
	Category     string             `json:"category"`
	Amount       float64            `json:"amount"`
	Deadline     *time.Time         `json:"deadline,omitempty"`
	Eligibility  map[string]string  `json:"eligibility,omitempty"`
	Requirements []string           `json:"requirements,omitempty"`
	Status       models.GrantStatus `json:"status"`
	Featured     bool               `json:"featured"`
}

type Service struct {
	store       ListingStore
	searchIndex SearchIndex
	pageSize    int
	maxPageSize int
	logger      logger.Logger
	now         func() time.Time
	newID       func() string
}

// NewService builds the grant service. searchIndex may be nil, in which
// case search always uses the SQL fallback.
func NewService(listingStore ListingStore, searchIndex SearchIndex, defaultPageSize, maxPageSize int, log logger.Logger) *Service {
	if defaultPageSize <= 0 {
		defaultPageSize = 10
	}
	if maxPageSize <= 0 {
		maxPageSize = 100
	}
	return &Service{
		store:       listingStore,
		searchIndex: searchIndex,
		pageSize:    defaultPageSize,
		maxPageSize: maxPageSize,
		logger:      log.WithFields(map[string]interface{}{"component": "grant-service"}),
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
	}
}

func (s *Service) validate(input *GrantInput) error {
	var errs []validation.ValidationError
	errs = validation.RequireString(errs, "title", input.Title)
	errs = validation.RequireString(errs, "description", input.Description)

	if input.Amount < models.MinGrantAmount {
		errs = append(errs, validation.ValidationError{
			Field:   "amount",
			Message: fmt.Sprintf("amount must be at least %d", models.MinGrantAmount),
			Code:    "AMOUNT_TOO_LOW",
		})
	}
	if !models.ValidGrantStatus(input.Status) {
		errs = append(errs, validation.ValidationError{
			Field: "status", Message: "unknown grant status", Code: "INVALID_STATUS",
		})
	}

	result := validation.NewResult(errs)
	if !result.Valid {
		return apperrors.NewValidationFailedError(strings.Join(result.GetErrorMessages(), "; "))
	}
	return nil
}

func applyInput(g *models.GrantListing, input *GrantInput) {
	g.Title = input.Title
	g.Description = input.Description
	g.Category = input.Category
	g.Amount = input.Amount
	g.Deadline = input.Deadline
	g.Eligibility = input.Eligibility
	g.Requirements = input.Requirements
	g.Status = input.Status
	g.Featured = input.Featured
}

// Create validates and persists a new listing, then indexes it.
func (s *Service) Create(ctx context.Context, input *GrantInput) (*models.GrantListing, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	g := &models.GrantListing{
		ID:        s.newID(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyInput(g, input)

	if err := s.store.Insert(ctx, g); err != nil {
		return nil, apperrors.NewPersistenceFailedError(err)
	}
	s.index(ctx, g)

	s.logger.Info("Grant listing created", map[string]interface{}{
		"grantId": g.ID,
		"status":  string(g.Status),
	})
	return g, nil
}

// Update replaces the writable fields of an existing listing.
func (s *Service) Update(ctx context.Context, id string, input *GrantInput) (*models.GrantListing, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}

	g, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	applyInput(g, input)
	g.UpdatedAt = s.now().UTC()

	if err := s.store.Update(ctx, g); err != nil {
		if errors.Is(err, store.ErrGrantNotFound) {
			return nil, apperrors.NewGrantNotFoundError(id)
		}
		return nil, apperrors.NewPersistenceFailedError(err)
	}
	s.index(ctx, g)
	return g, nil
}

// Delete removes a listing and its index document.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrGrantNotFound) {
			return apperrors.NewGrantNotFoundError(id)
		}
		return apperrors.NewPersistenceFailedError(err)
	}

	if s.searchIndex != nil {
		if err := s.searchIndex.DeleteGrant(ctx, id); err != nil {
			s.logger.WithError(err).Warn("grant index cleanup failed", map[string]interface{}{
				"grantId": id,
			})
		}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.GrantListing, error) {
	g, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrGrantNotFound) {
			return nil, apperrors.NewGrantNotFoundError(id)
		}
		return nil, apperrors.NewQueryExecutionFailedError("get grant", err)
	}
	return g, nil
}

// List returns one page of listings, optionally narrowed by status and
// category. Featured listings sort first, then newest.
func (s *Service) List(ctx context.Context, status models.GrantStatus, category string, page, pageSize int) (*models.GrantListResult, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = s.pageSize
	}
	if pageSize > s.maxPageSize {
		pageSize = s.maxPageSize
	}

	filter := store.GrantFilter{Status: status, Category: category}
	total, err := s.store.Count(ctx, filter)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("count grants", err)
	}
	grants, err := s.store.List(ctx, filter, page, pageSize)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list grants", err)
	}
	if grants == nil {
		grants = []models.GrantListing{}
	}

	return &models.GrantListResult{
		Grants:     grants,
		TotalCount: total,
		PageCount:  (total + pageSize - 1) / pageSize,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// Search finds listings matching a free-text query. The search cluster
// is preferred; when it is absent or failing, a SQL substring match over
// title, description and category answers instead.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]models.GrantListing, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.NewValidationFailedError("search query must not be empty")
	}
	if limit <= 0 || limit > s.maxPageSize {
		limit = s.pageSize
	}

	if s.searchIndex != nil {
		grants, err := s.searchIndex.Search(ctx, query, limit)
		if err == nil {
			return grants, nil
		}
		s.logger.WithError(err).Warn("search index unavailable, falling back to SQL", map[string]interface{}{
			"query": query,
		})
	}

	grants, err := s.store.List(ctx, store.GrantFilter{Search: query}, 1, limit)
	if err != nil {
		return nil, apperrors.NewSearchQueryFailedError(err)
	}
	if grants == nil {
		grants = []models.GrantListing{}
	}
	return grants, nil
}

func (s *Service) index(ctx context.Context, g *models.GrantListing) {
	if s.searchIndex == nil {
		return
	}
	if err := s.searchIndex.IndexGrant(ctx, g); err != nil {
		s.logger.WithError(err).Warn("grant indexing failed", map[string]interface{}{
			"grantId": g.ID,
		})
	}
}
