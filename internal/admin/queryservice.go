// internal/admin/queryservice.go
package admin

import (
	"context"
	"errors"
	"time"

	"grant-backend/internal/common/config"
	apperrors "grant-backend/internal/common/errors"
	"grant-backend/internal/common/logger"
	"grant-backend/internal/common/metrics"
	"grant-backend/internal/models"
	"grant-backend/internal/store"
)

// ListStore provides the per-collection primitives the query service
// merges. FetchMatching must return records already ordered by the sort
// spec with id ascending on ties.
type ListStore interface {
	Sources() []models.Source
	CountMatching(ctx context.Context, source models.Source, filter models.ListFilter) (int, error)
	FetchMatching(ctx context.Context, source models.Source, filter models.ListFilter, sortSpec models.SortSpec, limit int) ([]models.ApplicationRecord, error)
}

// QueryService serves filtered, sorted, paginated application listings.
// Pagination is global: records from both collections are merged into
// one ordered sequence before the page window is cut, so a page can mix
// sources and no record is duplicated or skipped across pages.
type QueryService struct {
	store      ListStore
	pagination config.PaginationConfig
	logger     logger.Logger
}

func NewQueryService(listStore ListStore, pagination config.PaginationConfig, log logger.Logger) *QueryService {
	if pagination.DefaultPageSize <= 0 {
		pagination.DefaultPageSize = 10
	}
	if pagination.MaxPageSize <= 0 {
		pagination.MaxPageSize = 100
	}
	return &QueryService{
		store:      listStore,
		pagination: pagination,
		logger:     log.WithFields(map[string]interface{}{"component": "admin-query-service"}),
	}
}

// List returns one page of the merged listing. TotalCount always counts
// the full filtered set across collections, independent of the page
// requested; a page beyond the end yields empty items with the real
// counts intact.
func (q *QueryService) List(ctx context.Context, filter models.ListFilter, sortSpec models.SortSpec, page, pageSize int) (*models.ListResult, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = q.pagination.DefaultPageSize
	}
	if pageSize > q.pagination.MaxPageSize {
		pageSize = q.pagination.MaxPageSize
	}

	totalCount := 0
	slices := make([][]models.ApplicationRecord, 0, 2)
	// Each collection contributes at most the records that could land in
	// the requested window, so the merge stays bounded by page depth.
	perSourceLimit := page * pageSize

	for _, source := range q.store.Sources() {
		count, err := q.store.CountMatching(ctx, source, filter)
		if err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("count", err)
		}
		totalCount += count

		started := time.Now()
		records, err := q.store.FetchMatching(ctx, source, filter, sortSpec, perSourceLimit)
		metrics.ListQueryDuration.WithLabelValues(string(source)).Observe(time.Since(started).Seconds())
		if err != nil {
			if errors.Is(err, store.ErrUnsupportedSortField) {
				return nil, apperrors.NewValidationFailedError(err.Error())
			}
			return nil, apperrors.NewQueryExecutionFailedError("fetch", err)
		}
		slices = append(slices, records)
	}

	merged := store.MergeSorted(sortSpec, slices...)

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(merged) {
		start = len(merged)
	}
	if end > len(merged) {
		end = len(merged)
	}
	items := merged[start:end]
	if items == nil {
		items = []models.ApplicationRecord{}
	}

	return &models.ListResult{
		Items:      items,
		TotalCount: totalCount,
		PageCount:  (totalCount + pageSize - 1) / pageSize,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}
