// internal/store/grants.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"grant-backend/internal/common/logger"
	"grant-backend/internal/models"
)

var ErrGrantNotFound = errors.New("GRANT_NOT_FOUND")

// GrantStore owns the grants table. Listings are independent of
// application records and never touch the status history.
type GrantStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewGrantStore(db *sql.DB, log logger.Logger) *GrantStore {
	return &GrantStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "grant-store"}),
	}
}

const grantColumns = `id, title, description, COALESCE(category, ''), amount, deadline,
	COALESCE(eligibility, '{}'), COALESCE(requirements, '[]'),
	status, featured, created_at, updated_at`

func scanGrant(row rowScanner) (*models.GrantListing, error) {
	var g models.GrantListing
	var status string
	var deadline sql.NullTime
	var eligibilityJSON, requirementsJSON []byte

	err := row.Scan(
		&g.ID, &g.Title, &g.Description, &g.Category, &g.Amount, &deadline,
		&eligibilityJSON, &requirementsJSON,
		&status, &g.Featured, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if deadline.Valid {
		t := deadline.Time
		g.Deadline = &t
	}
	if err := json.Unmarshal(eligibilityJSON, &g.Eligibility); err != nil {
		return nil, fmt.Errorf("%w: decode eligibility: %v", ErrQueryFailed, err)
	}
	if err := json.Unmarshal(requirementsJSON, &g.Requirements); err != nil {
		return nil, fmt.Errorf("%w: decode requirements: %v", ErrQueryFailed, err)
	}
	g.Status = models.GrantStatus(status)
	return &g, nil
}

func grantJSONFields(g *models.GrantListing) ([]byte, []byte, error) {
	eligibility := g.Eligibility
	if eligibility == nil {
		eligibility = map[string]string{}
	}
	requirements := g.Requirements
	if requirements == nil {
		requirements = []string{}
	}
	eligibilityJSON, err := json.Marshal(eligibility)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: encode eligibility: %v", ErrInsertFailed, err)
	}
	requirementsJSON, err := json.Marshal(requirements)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: encode requirements: %v", ErrInsertFailed, err)
	}
	return eligibilityJSON, requirementsJSON, nil
}

func (s *GrantStore) Insert(ctx context.Context, g *models.GrantListing) error {
	eligibilityJSON, requirementsJSON, err := grantJSONFields(g)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO grants (
			id, title, description, category, amount, deadline,
			eligibility, requirements, status, featured, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		g.ID, g.Title, g.Description, g.Category, g.Amount, g.Deadline,
		eligibilityJSON, requirementsJSON, string(g.Status), g.Featured,
		g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert grant: %v", ErrInsertFailed, err)
	}
	return nil
}

func (s *GrantStore) Update(ctx context.Context, g *models.GrantListing) error {
	eligibilityJSON, requirementsJSON, err := grantJSONFields(g)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE grants SET
			title = $1, description = $2, category = $3, amount = $4, deadline = $5,
			eligibility = $6, requirements = $7, status = $8, featured = $9, updated_at = $10
		WHERE id = $11`,
		g.Title, g.Description, g.Category, g.Amount, g.Deadline,
		eligibilityJSON, requirementsJSON, string(g.Status), g.Featured,
		g.UpdatedAt, g.ID,
	)
	if err != nil {
		return fmt.Errorf("%w: update grant: %v", ErrQueryFailed, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %v", ErrQueryFailed, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrGrantNotFound, g.ID)
	}
	return nil
}

func (s *GrantStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM grants WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("%w: delete grant: %v", ErrQueryFailed, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %v", ErrQueryFailed, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrGrantNotFound, id)
	}
	return nil
}

func (s *GrantStore) GetByID(ctx context.Context, id string) (*models.GrantListing, error) {
	query := fmt.Sprintf("SELECT %s FROM grants WHERE id = $1", grantColumns)
	g, err := scanGrant(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrGrantNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get grant: %v", ErrQueryFailed, err)
	}
	return g, nil
}

// GrantFilter narrows grant listing queries.
type GrantFilter struct {
	Status   models.GrantStatus
	Category string
	Search   string
}

func buildGrantFilter(filter GrantFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, strings.ToLower(filter.Category))
		clauses = append(clauses, fmt.Sprintf("LOWER(category) = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(
			"(LOWER(title) LIKE $%d OR LOWER(description) LIKE $%d OR LOWER(category) LIKE $%d)",
			n, n, n))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// Count returns the number of grants matching the filter.
func (s *GrantStore) Count(ctx context.Context, filter GrantFilter) (int, error) {
	where, args := buildGrantFilter(filter)
	var count int
	query := "SELECT COUNT(*) FROM grants" + where
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: count grants: %v", ErrQueryFailed, err)
	}
	return count, nil
}

// List returns one page of grants matching the filter, featured listings
// first, then newest first.
func (s *GrantStore) List(ctx context.Context, filter GrantFilter, page, pageSize int) ([]models.GrantListing, error) {
	where, args := buildGrantFilter(filter)
	args = append(args, pageSize, (page-1)*pageSize)
	query := fmt.Sprintf(
		"SELECT %s FROM grants%s ORDER BY featured DESC, created_at DESC, id ASC LIMIT $%d OFFSET $%d",
		grantColumns, where, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list grants: %v", ErrQueryFailed, err)
	}
	defer rows.Close()

	var grants []models.GrantListing
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan grant: %v", ErrQueryFailed, err)
		}
		grants = append(grants, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", ErrQueryFailed, err)
	}
	return grants, nil
}
