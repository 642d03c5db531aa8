// internal/store/grants_test.go
package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grant-backend/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func newTestGrantStore(t *testing.T) (*GrantStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewGrantStore(db, createTestLogger(t)), mock
}

var grantColumnNames = []string{
	"id", "title", "description", "category", "amount", "deadline",
	"eligibility", "requirements", "status", "featured", "created_at", "updated_at",
}

func addGrantRow(rows *sqlmock.Rows, id, title string, featured bool, createdAt time.Time) *sqlmock.Rows {
	return rows.AddRow(
		id, title, "Support for small businesses", "business", 50000.0, nil,
		[]byte(`{"region":"midwest"}`), []byte(`["business plan"]`),
		"OPEN", featured, createdAt, createdAt,
	)
}

// ==========================
// CRUD Tests
// ==========================

func TestGrantStore_Insert(t *testing.T) {
	s, mock := newTestGrantStore(t)
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO grants`).
		WithArgs("grant-1", "Small Business Boost", "Support for small businesses",
			"business", 50000.0, nil,
			[]byte(`{"region":"midwest"}`), []byte(`["business plan"]`),
			"OPEN", false, now, now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.Insert(context.Background(), &models.GrantListing{
		ID:           "grant-1",
		Title:        "Small Business Boost",
		Description:  "Support for small businesses",
		Category:     "business",
		Amount:       50000,
		Eligibility:  map[string]string{"region": "midwest"},
		Requirements: []string{"business plan"},
		Status:       models.GrantStatusOpen,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantStore_GetByID_NotFound(t *testing.T) {
	s, mock := newTestGrantStore(t)

	mock.ExpectQuery(`SELECT (.+) FROM grants WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(grantColumnNames))

	_, err := s.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrGrantNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantStore_GetByID_DecodesJSONFields(t *testing.T) {
	s, mock := newTestGrantStore(t)
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT (.+) FROM grants WHERE id = \$1`).
		WithArgs("grant-1").
		WillReturnRows(addGrantRow(sqlmock.NewRows(grantColumnNames), "grant-1", "Small Business Boost", true, now))

	g, err := s.GetByID(context.Background(), "grant-1")
	require.NoError(t, err)
	assert.Equal(t, "midwest", g.Eligibility["region"])
	assert.Equal(t, []string{"business plan"}, g.Requirements)
	assert.True(t, g.Featured)
	assert.Nil(t, g.Deadline)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantStore_Update_NotFound(t *testing.T) {
	s, mock := newTestGrantStore(t)

	mock.ExpectExec(`UPDATE grants SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Update(context.Background(), &models.GrantListing{
		ID:     "missing",
		Title:  "Renamed",
		Status: models.GrantStatusOpen,
	})
	assert.ErrorIs(t, err, ErrGrantNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantStore_Delete(t *testing.T) {
	s, mock := newTestGrantStore(t)

	mock.ExpectExec(`DELETE FROM grants WHERE id = \$1`).
		WithArgs("grant-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.Delete(context.Background(), "grant-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Listing Tests
// ==========================

func TestGrantStore_List_FeaturedFirstOrder(t *testing.T) {
	s, mock := newTestGrantStore(t)
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(grantColumnNames)
	addGrantRow(rows, "grant-2", "Featured Grant", true, now)
	addGrantRow(rows, "grant-1", "Plain Grant", false, now.Add(time.Hour))

	mock.ExpectQuery(`SELECT (.+) FROM grants WHERE status = \$1 ORDER BY featured DESC, created_at DESC, id ASC LIMIT \$2 OFFSET \$3`).
		WithArgs("OPEN", 10, 0).
		WillReturnRows(rows)

	grants, err := s.List(context.Background(), GrantFilter{Status: models.GrantStatusOpen}, 1, 10)
	require.NoError(t, err)
	require.Len(t, grants, 2)
	assert.Equal(t, "grant-2", grants[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantStore_Count_WithSearch(t *testing.T) {
	s, mock := newTestGrantStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM grants WHERE \(LOWER\(title\) LIKE \$1 (.+)\)`).
		WithArgs("%business%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := s.Count(context.Background(), GrantFilter{Search: "Business"})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
