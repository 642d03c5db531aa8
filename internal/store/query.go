// internal/store/query.go
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"grant-backend/internal/models"
)

// sortColumns whitelists client-facing sort fields against SQL columns.
var sortColumns = map[string]string{
	"createdAt":     "created_at",
	"updatedAt":     "updated_at",
	"status":        "status",
	"fundingAmount": "funding_amount",
	"lastName":      "last_name",
	"email":         "email",
}

func resolveSort(spec models.SortSpec) (column string, desc bool, err error) {
	field := spec.Field
	if field == "" {
		field = "createdAt"
	}
	column, ok := sortColumns[field]
	if !ok {
		return "", false, fmt.Errorf("%w: %s", ErrUnsupportedSortField, spec.Field)
	}
	switch spec.Direction {
	case models.SortAsc:
		return column, false, nil
	case models.SortDesc, "":
		return column, true, nil
	}
	return "", false, fmt.Errorf("%w: direction %s", ErrUnsupportedSortField, spec.Direction)
}

// buildFilter renders the WHERE clause for a ListFilter. Args are
// positional starting at $1.
func buildFilter(filter models.ListFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.FundingType != "" {
		args = append(args, filter.FundingType)
		clauses = append(clauses, fmt.Sprintf("funding_type = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(
			"(LOWER(first_name) LIKE $%d OR LOWER(last_name) LIKE $%d OR LOWER(email) LIKE $%d OR LOWER(city) LIKE $%d OR LOWER(funding_purpose) LIKE $%d)",
			n, n, n, n, n))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// CountMatching counts records in one collection matching the filter.
func (s *ApplicationStore) CountMatching(ctx context.Context, source models.Source, filter models.ListFilter) (int, error) {
	table, err := tableFor(source)
	if err != nil {
		return 0, err
	}

	where, args := buildFilter(filter)
	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", table, where)
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: count matching: %v", ErrQueryFailed, err)
	}
	return count, nil
}

// FetchMatching returns up to limit records from one collection matching
// the filter, ordered by the sort spec with id ascending as tiebreak.
// History is not loaded.
func (s *ApplicationStore) FetchMatching(ctx context.Context, source models.Source, filter models.ListFilter, sortSpec models.SortSpec, limit int) ([]models.ApplicationRecord, error) {
	table, err := tableFor(source)
	if err != nil {
		return nil, err
	}
	column, desc, err := resolveSort(sortSpec)
	if err != nil {
		return nil, err
	}
	direction := "ASC"
	if desc {
		direction = "DESC"
	}

	where, args := buildFilter(filter)
	args = append(args, limit)
	query := fmt.Sprintf(
		"SELECT %s FROM %s%s ORDER BY %s %s, id ASC LIMIT $%d",
		applicationColumns, table, where, column, direction, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch matching: %v", ErrQueryFailed, err)
	}
	defer rows.Close()

	var records []models.ApplicationRecord
	for rows.Next() {
		rec, err := scanApplication(rows, source)
		if err != nil {
			return nil, fmt.Errorf("%w: scan application: %v", ErrQueryFailed, err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", ErrQueryFailed, err)
	}
	return records, nil
}

// CountByStatus returns per-status counts for one collection.
func (s *ApplicationStore) CountByStatus(ctx context.Context, source models.Source) (map[models.Status]int, error) {
	table, err := tableFor(source)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT status, COUNT(*) FROM %s GROUP BY status", table))
	if err != nil {
		return nil, fmt.Errorf("%w: count by status: %v", ErrQueryFailed, err)
	}
	defer rows.Close()

	counts := make(map[models.Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("%w: scan count: %v", ErrQueryFailed, err)
		}
		counts[models.Status(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", ErrQueryFailed, err)
	}
	return counts, nil
}

// FundingSummary holds one collection's share of the approved funding
// aggregates. The combined average must be recomputed from summed totals
// and counts, never averaged across collections.
type FundingSummary struct {
	TotalApproved float64
	ApprovedCount int
	MaxAmount     float64
}

// ApprovedFundingSummary aggregates funding amounts of APPROVED records
// in one collection.
func (s *ApplicationStore) ApprovedFundingSummary(ctx context.Context, source models.Source) (FundingSummary, error) {
	table, err := tableFor(source)
	if err != nil {
		return FundingSummary{}, err
	}

	var summary FundingSummary
	query := fmt.Sprintf(`
		SELECT COALESCE(SUM(funding_amount), 0), COUNT(*), COALESCE(MAX(funding_amount), 0)
		FROM %s WHERE status = 'APPROVED'`, table)
	err = s.db.QueryRowContext(ctx, query).Scan(
		&summary.TotalApproved, &summary.ApprovedCount, &summary.MaxAmount)
	if err != nil {
		return FundingSummary{}, fmt.Errorf("%w: funding summary: %v", ErrQueryFailed, err)
	}
	return summary, nil
}

// FundingTypeCounts returns the funding-type histogram for one collection.
func (s *ApplicationStore) FundingTypeCounts(ctx context.Context, source models.Source) (map[string]int, error) {
	table, err := tableFor(source)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT funding_type, COUNT(*) FROM %s GROUP BY funding_type", table))
	if err != nil {
		return nil, fmt.Errorf("%w: funding type counts: %v", ErrQueryFailed, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var fundingType string
		var count int
		if err := rows.Scan(&fundingType, &count); err != nil {
			return nil, fmt.Errorf("%w: scan count: %v", ErrQueryFailed, err)
		}
		counts[fundingType] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", ErrQueryFailed, err)
	}
	return counts, nil
}

// RecentBySource returns the n newest records of one collection.
func (s *ApplicationStore) RecentBySource(ctx context.Context, source models.Source, n int) ([]models.ApplicationRecord, error) {
	return s.FetchMatching(ctx, source, models.ListFilter{},
		models.SortSpec{Field: "createdAt", Direction: models.SortDesc}, n)
}

// sortRecords orders records in place by the sort spec, with id ascending
// as the deterministic tiebreak. Callers must pass a spec that resolveSort
// accepts; unknown fields fall back to createdAt.
func sortRecords(records []models.ApplicationRecord, spec models.SortSpec) {
	desc := spec.Direction != models.SortAsc
	field := spec.Field
	if _, ok := sortColumns[field]; !ok {
		field = "createdAt"
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := &records[i], &records[j]
		var less, equal bool
		switch field {
		case "createdAt":
			less, equal = a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.Equal(b.CreatedAt)
		case "updatedAt":
			less, equal = a.UpdatedAt.Before(b.UpdatedAt), a.UpdatedAt.Equal(b.UpdatedAt)
		case "status":
			less, equal = a.Status < b.Status, a.Status == b.Status
		case "fundingAmount":
			less, equal = a.FundingInfo.FundingAmount < b.FundingInfo.FundingAmount,
				a.FundingInfo.FundingAmount == b.FundingInfo.FundingAmount
		case "lastName":
			less, equal = a.PersonalInfo.LastName < b.PersonalInfo.LastName,
				a.PersonalInfo.LastName == b.PersonalInfo.LastName
		case "email":
			less, equal = a.PersonalInfo.Email < b.PersonalInfo.Email,
				a.PersonalInfo.Email == b.PersonalInfo.Email
		}
		if equal {
			return a.ID < b.ID
		}
		if desc {
			return !less
		}
		return less
	})
}

// MergeSorted merges per-collection slices that are each already ordered
// by the sort spec into one globally ordered slice.
func MergeSorted(spec models.SortSpec, slices ...[]models.ApplicationRecord) []models.ApplicationRecord {
	var total int
	for _, s := range slices {
		total += len(s)
	}
	merged := make([]models.ApplicationRecord, 0, total)
	for _, s := range slices {
		merged = append(merged, s...)
	}
	sortRecords(merged, spec)
	return merged
}
