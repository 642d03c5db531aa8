// internal/store/applications.go

// Package store persists application records and grant listings in
// PostgreSQL. Two application collections exist (the generic and the
// grant-specific schema); both are normalized into the canonical
// models.ApplicationRecord shape here, tagged with their source.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"grant-backend/internal/common/logger"
	"grant-backend/internal/models"
)

var (
	ErrNotFound            = errors.New("APPLICATION_NOT_FOUND")
	ErrQueryFailed         = errors.New("QUERY_EXECUTION_FAILED")
	ErrInsertFailed        = errors.New("DATABASE_INSERT_FAILED")
	ErrTransitionConflict  = errors.New("TRANSITION_CONFLICT")
	ErrUnknownSource       = errors.New("UNKNOWN_SOURCE")
	ErrUnsupportedSortField = errors.New("UNSUPPORTED_SORT_FIELD")
)

// ApplicationStore is the sole owner of application rows. Callers get
// value copies; mutation happens only through Insert and ApplyTransition.
type ApplicationStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewApplicationStore(db *sql.DB, log logger.Logger) *ApplicationStore {
	return &ApplicationStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "application-store"}),
	}
}

// Sources lists the collections this store spans, in merge order.
func (s *ApplicationStore) Sources() []models.Source {
	return []models.Source{models.SourceGeneric, models.SourceGrant}
}

func tableFor(source models.Source) (string, error) {
	switch source {
	case models.SourceGeneric:
		return "applications", nil
	case models.SourceGrant:
		return "grant_applications", nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownSource, source)
}

const applicationColumns = `id, first_name, last_name, email, phone_number, ssn, date_of_birth,
	COALESCE(gender, ''), COALESCE(ethnicity, ''),
	COALESCE(employment_status, ''), COALESCE(income_level, ''),
	COALESCE(education_level, ''), COALESCE(citizenship_status, ''),
	street_address, city, state, zip,
	funding_type, funding_amount, funding_purpose, COALESCE(timeframe, ''),
	id_card_front, id_card_back,
	status, COALESCE(notes, ''), COALESCE(submitted_by, ''),
	agree_to_communication, terms_accepted, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(row rowScanner, source models.Source) (*models.ApplicationRecord, error) {
	var rec models.ApplicationRecord
	var status string
	err := row.Scan(
		&rec.ID,
		&rec.PersonalInfo.FirstName,
		&rec.PersonalInfo.LastName,
		&rec.PersonalInfo.Email,
		&rec.PersonalInfo.PhoneNumber,
		&rec.PersonalInfo.SSN,
		&rec.PersonalInfo.DateOfBirth,
		&rec.PersonalInfo.Gender,
		&rec.PersonalInfo.Ethnicity,
		&rec.EmploymentInfo.EmploymentStatus,
		&rec.EmploymentInfo.IncomeLevel,
		&rec.EmploymentInfo.EducationLevel,
		&rec.EmploymentInfo.CitizenshipStatus,
		&rec.AddressInfo.StreetAddress,
		&rec.AddressInfo.City,
		&rec.AddressInfo.State,
		&rec.AddressInfo.Zip,
		&rec.FundingInfo.FundingType,
		&rec.FundingInfo.FundingAmount,
		&rec.FundingInfo.FundingPurpose,
		&rec.FundingInfo.Timeframe,
		&rec.Documents.IDCardFront,
		&rec.Documents.IDCardBack,
		&status,
		&rec.Notes,
		&rec.SubmittedBy,
		&rec.AgreeToComms,
		&rec.TermsAccepted,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Source = source
	rec.Status = models.Status(status)
	return &rec, nil
}

// GetByID fetches a record from either collection, history included.
func (s *ApplicationStore) GetByID(ctx context.Context, id string) (*models.ApplicationRecord, error) {
	for _, source := range s.Sources() {
		table, err := tableFor(source)
		if err != nil {
			return nil, err
		}

		query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", applicationColumns, table)
		rec, err := scanApplication(s.db.QueryRowContext(ctx, query, id), source)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: get by id: %v", ErrQueryFailed, err)
		}

		rec.StatusHistory, err = s.loadHistory(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		return rec, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func (s *ApplicationStore) loadHistory(ctx context.Context, q querier, id string) ([]models.StatusChange, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT status, changed_by, changed_at
		FROM application_status_history
		WHERE application_id = $1
		ORDER BY changed_at ASC, id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("%w: load history: %v", ErrQueryFailed, err)
	}
	defer rows.Close()

	var history []models.StatusChange
	for rows.Next() {
		var change models.StatusChange
		var status string
		if err := rows.Scan(&status, &change.ChangedBy, &change.ChangedAt); err != nil {
			return nil, fmt.Errorf("%w: scan history: %v", ErrQueryFailed, err)
		}
		change.Status = models.Status(status)
		history = append(history, change)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: history rows: %v", ErrQueryFailed, err)
	}
	return history, nil
}

// Insert persists a new record into its source collection and seeds any
// pre-populated history entries.
func (s *ApplicationStore) Insert(ctx context.Context, rec *models.ApplicationRecord) error {
	table, err := tableFor(rec.Source)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrInsertFailed, err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s (
			id, first_name, last_name, email, phone_number, ssn, date_of_birth,
			gender, ethnicity,
			employment_status, income_level, education_level, citizenship_status,
			street_address, city, state, zip,
			funding_type, funding_amount, funding_purpose, timeframe,
			id_card_front, id_card_back,
			status, notes, submitted_by, agree_to_communication, terms_accepted,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30)`, table)

	_, err = tx.ExecContext(ctx, query,
		rec.ID,
		rec.PersonalInfo.FirstName,
		rec.PersonalInfo.LastName,
		rec.PersonalInfo.Email,
		rec.PersonalInfo.PhoneNumber,
		rec.PersonalInfo.SSN,
		rec.PersonalInfo.DateOfBirth,
		rec.PersonalInfo.Gender,
		rec.PersonalInfo.Ethnicity,
		rec.EmploymentInfo.EmploymentStatus,
		rec.EmploymentInfo.IncomeLevel,
		rec.EmploymentInfo.EducationLevel,
		rec.EmploymentInfo.CitizenshipStatus,
		rec.AddressInfo.StreetAddress,
		rec.AddressInfo.City,
		rec.AddressInfo.State,
		rec.AddressInfo.Zip,
		rec.FundingInfo.FundingType,
		rec.FundingInfo.FundingAmount,
		rec.FundingInfo.FundingPurpose,
		rec.FundingInfo.Timeframe,
		rec.Documents.IDCardFront,
		rec.Documents.IDCardBack,
		string(rec.Status),
		rec.Notes,
		rec.SubmittedBy,
		rec.AgreeToComms,
		rec.TermsAccepted,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert application: %v", ErrInsertFailed, err)
	}

	for _, change := range rec.StatusHistory {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO application_status_history (application_id, source, status, changed_by, changed_at)
			VALUES ($1, $2, $3, $4, $5)`,
			rec.ID, string(rec.Source), string(change.Status), change.ChangedBy, change.ChangedAt)
		if err != nil {
			return fmt.Errorf("%w: seed history: %v", ErrInsertFailed, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrInsertFailed, err)
	}
	return nil
}

// ApplyTransition atomically sets the new status, appends the history
// entry and refreshes updated_at. The row is locked for the duration of
// the transaction, so concurrent transitions on the same record
// serialize; on any failure the record is left untouched.
func (s *ApplicationStore) ApplyTransition(ctx context.Context, source models.Source, id string, newStatus models.Status, actorID string, notes *string, at time.Time) (*models.ApplicationRecord, error) {
	table, err := tableFor(source)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", ErrQueryFailed, err)
	}
	defer tx.Rollback()

	lockQuery := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1 FOR UPDATE", applicationColumns, table)
	rec, err := scanApplication(tx.QueryRowContext(ctx, lockQuery, id), source)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lock row: %v", ErrQueryFailed, err)
	}

	if notes != nil {
		rec.Notes = *notes
	}

	updateQuery := fmt.Sprintf("UPDATE %s SET status = $1, notes = $2, updated_at = $3 WHERE id = $4", table)
	if _, err := tx.ExecContext(ctx, updateQuery, string(newStatus), rec.Notes, at, id); err != nil {
		return nil, fmt.Errorf("%w: update status: %v", ErrQueryFailed, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO application_status_history (application_id, source, status, changed_by, changed_at)
		VALUES ($1, $2, $3, $4, $5)`,
		id, string(source), string(newStatus), actorID, at); err != nil {
		return nil, fmt.Errorf("%w: append history: %v", ErrQueryFailed, err)
	}

	history, err := s.loadHistory(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrQueryFailed, err)
	}

	rec.Status = newStatus
	rec.UpdatedAt = at
	rec.StatusHistory = history
	return rec, nil
}

// HasPendingByEmailAndType reports whether a pending application with the
// same applicant email and funding type already exists in the collection.
func (s *ApplicationStore) HasPendingByEmailAndType(ctx context.Context, source models.Source, email, fundingType string) (bool, error) {
	table, err := tableFor(source)
	if err != nil {
		return false, err
	}

	var exists bool
	query := fmt.Sprintf(`
		SELECT EXISTS(
			SELECT 1 FROM %s
			WHERE LOWER(email) = LOWER($1) AND funding_type = $2 AND status = 'PENDING'
		)`, table)
	if err := s.db.QueryRowContext(ctx, query, email, fundingType).Scan(&exists); err != nil {
		return false, fmt.Errorf("%w: duplicate check: %v", ErrQueryFailed, err)
	}
	return exists, nil
}

// FindByEmail returns an applicant's own applications across both
// collections, newest first. History is not loaded for these slim views.
func (s *ApplicationStore) FindByEmail(ctx context.Context, email string) ([]models.ApplicationRecord, error) {
	var results []models.ApplicationRecord
	for _, source := range s.Sources() {
		table, err := tableFor(source)
		if err != nil {
			return nil, err
		}

		query := fmt.Sprintf(
			"SELECT %s FROM %s WHERE LOWER(email) = LOWER($1) ORDER BY created_at DESC, id ASC",
			applicationColumns, table)
		rows, err := s.db.QueryContext(ctx, query, email)
		if err != nil {
			return nil, fmt.Errorf("%w: find by email: %v", ErrQueryFailed, err)
		}

		for rows.Next() {
			rec, err := scanApplication(rows, source)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("%w: scan application: %v", ErrQueryFailed, err)
			}
			results = append(results, *rec)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: rows: %v", ErrQueryFailed, err)
		}
		rows.Close()
	}

	sortRecords(results, models.SortSpec{Field: "createdAt", Direction: models.SortDesc})
	return results, nil
}
