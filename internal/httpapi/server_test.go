// internal/httpapi/server_test.go
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"grant-backend/internal/admin"
	"grant-backend/internal/applications"
	"grant-backend/internal/common/config"
	"grant-backend/internal/common/logger"
	"grant-backend/internal/common/ratelimit"
	"grant-backend/internal/grants"
	"grant-backend/internal/models"
	"grant-backend/internal/notifications"
	"grant-backend/internal/store"
	"grant-backend/internal/workflow"
)

// ==========================
// Test Helper Functions
// ==========================

const (
	testJWTSecret = "test-secret"
	testIssuer    = "grant-backend-test"
)

func createTestLogger(t *testing.T) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}

// memStore is an in-memory double for every store surface the services
// consume, so the full HTTP stack runs without a database.
type memStore struct {
	mu      sync.Mutex
	records map[string]*models.ApplicationRecord
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*models.ApplicationRecord)}
}

func (m *memStore) Sources() []models.Source {
	return []models.Source{models.SourceGeneric, models.SourceGrant}
}

func (m *memStore) Insert(ctx context.Context, rec *models.ApplicationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *rec
	m.records[rec.ID] = &copied
	return nil
}

func (m *memStore) HasPendingByEmailAndType(ctx context.Context, source models.Source, email, fundingType string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.Source == source && rec.PersonalInfo.Email == email &&
			rec.FundingInfo.FundingType == fundingType && rec.Status == models.StatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) GetByID(ctx context.Context, id string) (*models.ApplicationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	copied := *rec
	return &copied, nil
}

func (m *memStore) FindByEmail(ctx context.Context, email string) ([]models.ApplicationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []models.ApplicationRecord
	for _, rec := range m.records {
		if rec.PersonalInfo.Email == email {
			matched = append(matched, *rec)
		}
	}
	return matched, nil
}

func (m *memStore) ApplyTransition(ctx context.Context, source models.Source, id string, newStatus models.Status, actorID string, notes *string, at time.Time) (*models.ApplicationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	rec.Status = newStatus
	rec.UpdatedAt = at
	if notes != nil {
		rec.Notes = *notes
	}
	rec.StatusHistory = append(rec.StatusHistory, models.StatusChange{
		Status: newStatus, ChangedBy: actorID, ChangedAt: at,
	})
	copied := *rec
	return &copied, nil
}

func (m *memStore) CountByStatus(ctx context.Context, source models.Source) (map[models.Status]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[models.Status]int)
	for _, rec := range m.records {
		if rec.Source == source {
			counts[rec.Status]++
		}
	}
	return counts, nil
}

func (m *memStore) ApprovedFundingSummary(ctx context.Context, source models.Source) (store.FundingSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var summary store.FundingSummary
	for _, rec := range m.records {
		if rec.Source == source && rec.Status == models.StatusApproved {
			summary.TotalApproved += rec.FundingInfo.FundingAmount
			summary.ApprovedCount++
			if rec.FundingInfo.FundingAmount > summary.MaxAmount {
				summary.MaxAmount = rec.FundingInfo.FundingAmount
			}
		}
	}
	return summary, nil
}

func (m *memStore) FundingTypeCounts(ctx context.Context, source models.Source) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int)
	for _, rec := range m.records {
		if rec.Source == source {
			counts[rec.FundingInfo.FundingType]++
		}
	}
	return counts, nil
}

func (m *memStore) RecentBySource(ctx context.Context, source models.Source, n int) ([]models.ApplicationRecord, error) {
	records, err := m.FetchMatching(ctx, source, models.ListFilter{},
		models.SortSpec{Field: "createdAt", Direction: models.SortDesc}, n)
	return records, err
}

func (m *memStore) CountMatching(ctx context.Context, source models.Source, filter models.ListFilter) (int, error) {
	records, err := m.FetchMatching(ctx, source, filter, models.SortSpec{}, 1<<30)
	return len(records), err
}

func (m *memStore) FetchMatching(ctx context.Context, source models.Source, filter models.ListFilter, sortSpec models.SortSpec, limit int) ([]models.ApplicationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []models.ApplicationRecord
	for _, rec := range m.records {
		if rec.Source != source {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		matched = append(matched, *rec)
	}
	desc := sortSpec.Direction != models.SortAsc
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			if desc {
				return matched[i].CreatedAt.After(matched[j].CreatedAt)
			}
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

type noopNotifier struct{}

func (noopNotifier) SendSubmissionConfirmation(ctx context.Context, rec *models.ApplicationRecord) *notifications.Result {
	return &notifications.Result{Status: notifications.StatusDisabled}
}

func (noopNotifier) SendAdminAlert(ctx context.Context, rec *models.ApplicationRecord) *notifications.Result {
	return &notifications.Result{Status: notifications.StatusDisabled}
}

func (noopNotifier) SendStatusChange(ctx context.Context, rec *models.ApplicationRecord) *notifications.Result {
	return &notifications.Result{Status: notifications.StatusDisabled}
}

type testEnv struct {
	server *Server
	store  *memStore
}

func newTestEnv(t *testing.T, limiter ratelimit.Limiter, rateCfg config.RateLimitConfig) *testEnv {
	log := createTestLogger(t)
	mem := newMemStore()

	policy, err := workflow.NewPolicy(config.WorkflowConfig{
		Variants: map[string]config.VariantConfig{
			"generic": {AllowedStatuses: []string{"PENDING", "APPROVED", "REJECTED"}},
			"grant": {
				AllowedStatuses:  []string{"PENDING", "APPROVED", "REJECTED", "UNDER_REVIEW"},
				MinFundingAmount: 75000,
				MaxFundingAmount: 750000,
			},
		},
	})
	require.NoError(t, err)

	appService := applications.NewService(mem, policy, noopNotifier{}, true, log)
	engine := workflow.NewEngine(mem, policy, log)
	aggregator := admin.NewAggregator(mem, 5, log)
	queryService := admin.NewQueryService(mem, config.PaginationConfig{DefaultPageSize: 10, MaxPageSize: 100}, log)

	grantService := grants.NewService(newFakeGrantStore(), nil, 10, 100, log)

	server := NewServer(config.ServerConfig{Host: "127.0.0.1", Port: 0}, Deps{
		Applications: NewApplicationHandler(appService, log),
		Admin:        NewAdminHandler(aggregator, queryService, engine, noopNotifier{}, log),
		Grants:       NewGrantHandler(grantService, log),
		Limiter:      limiter,
		Auth:         config.AuthConfig{JWTSecret: testJWTSecret, Issuer: testIssuer},
		RateLimit:    rateCfg,
		Health:       map[string]func() error{"self": func() error { return nil }},
	}, log)

	return &testEnv{server: server, store: mem}
}

// fakeGrantStore backs the grant service in route tests.
type fakeGrantStore struct {
	mu     sync.Mutex
	grants map[string]*models.GrantListing
}

func newFakeGrantStore() *fakeGrantStore {
	return &fakeGrantStore{grants: make(map[string]*models.GrantListing)}
}

func (f *fakeGrantStore) Insert(ctx context.Context, g *models.GrantListing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *g
	f.grants[g.ID] = &copied
	return nil
}

func (f *fakeGrantStore) Update(ctx context.Context, g *models.GrantListing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.grants[g.ID]; !ok {
		return fmt.Errorf("%w: %s", store.ErrGrantNotFound, g.ID)
	}
	copied := *g
	f.grants[g.ID] = &copied
	return nil
}

func (f *fakeGrantStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.grants[id]; !ok {
		return fmt.Errorf("%w: %s", store.ErrGrantNotFound, id)
	}
	delete(f.grants, id)
	return nil
}

func (f *fakeGrantStore) GetByID(ctx context.Context, id string) (*models.GrantListing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.grants[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrGrantNotFound, id)
	}
	copied := *g
	return &copied, nil
}

func (f *fakeGrantStore) matches(g *models.GrantListing, filter store.GrantFilter) bool {
	if filter.Status != "" && g.Status != filter.Status {
		return false
	}
	if filter.Category != "" && !strings.EqualFold(g.Category, filter.Category) {
		return false
	}
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		haystack := strings.ToLower(g.Title + " " + g.Description + " " + g.Category)
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}

func (f *fakeGrantStore) List(ctx context.Context, filter store.GrantFilter, page, pageSize int) ([]models.GrantListing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	matched := []models.GrantListing{}
	for _, g := range f.grants {
		if f.matches(g, filter) {
			matched = append(matched, *g)
		}
	}
	return matched, nil
}

func (f *fakeGrantStore) Count(ctx context.Context, filter store.GrantFilter) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, g := range f.grants {
		if f.matches(g, filter) {
			count++
		}
	}
	return count, nil
}

func adminToken(t *testing.T, role string) string {
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin-7",
			Issuer:    testIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return token
}

func submissionBody() []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"source": "grant",
		"personalInfo": map[string]interface{}{
			"firstName":   "Jane",
			"lastName":    "Doe",
			"email":       "jane.doe@example.com",
			"phoneNumber": "555-123-4567",
			"dateOfBirth": "1990-04-12T00:00:00Z",
		},
		"employmentInfo": map[string]interface{}{},
		"addressInfo": map[string]interface{}{
			"streetAddress": "12 Elm St",
			"city":          "Springfield",
			"state":         "IL",
			"zip":           "62704",
		},
		"fundingInfo": map[string]interface{}{
			"fundingType":    "business",
			"fundingAmount":  100000,
			"fundingPurpose": "equipment purchase",
		},
		"documents": map[string]interface{}{
			"idCardFront": "front.png",
			"idCardBack":  "back.png",
		},
		"agreeToCommunication": true,
		"termsAccepted":        true,
	})
	return body
}

func doRequest(t *testing.T, handler http.Handler, method, path, token string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

// ==========================
// Application Route Tests
// ==========================

func TestServer_SubmitAndFetchApplication(t *testing.T) {
	env := newTestEnv(t, ratelimit.NoopLimiter{}, config.RateLimitConfig{})
	handler := env.server.Handler()

	res := doRequest(t, handler, http.MethodPost, "/api/applications", "", submissionBody())
	require.Equal(t, http.StatusCreated, res.Code)

	var created models.ApplicationRecord
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &created))
	assert.Equal(t, models.StatusPending, created.Status)

	res = doRequest(t, handler, http.MethodGet, "/api/applications/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, res.Code)

	res = doRequest(t, handler, http.MethodGet, "/api/applications/"+created.ID+"/status", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var projection applications.StatusProjection
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &projection))
	assert.Equal(t, models.StatusPending, projection.Status)
	assert.Len(t, projection.StatusHistory, 1)
}

func TestServer_FetchRedactsSSN(t *testing.T) {
	env := newTestEnv(t, ratelimit.NoopLimiter{}, config.RateLimitConfig{})
	handler := env.server.Handler()

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(submissionBody(), &body))
	body["personalInfo"].(map[string]interface{})["ssn"] = "123-45-6789"
	raw, _ := json.Marshal(body)

	res := doRequest(t, handler, http.MethodPost, "/api/applications", "", raw)
	require.Equal(t, http.StatusCreated, res.Code)
	var created models.ApplicationRecord
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &created))

	res = doRequest(t, handler, http.MethodGet, "/api/applications/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.NotContains(t, res.Body.String(), "123-45-6789")
}

func TestServer_SubmitValidationErrorIs400(t *testing.T) {
	env := newTestEnv(t, ratelimit.NoopLimiter{}, config.RateLimitConfig{})

	body, _ := json.Marshal(map[string]interface{}{"source": "grant"})
	res := doRequest(t, env.server.Handler(), http.MethodPost, "/api/applications", "", body)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	var errBody errorResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &errBody))
	assert.Equal(t, "VALIDATION_FAILED", string(errBody.Error.Code))
}

func TestServer_DuplicateSubmissionIs409(t *testing.T) {
	env := newTestEnv(t, ratelimit.NoopLimiter{}, config.RateLimitConfig{})
	handler := env.server.Handler()

	res := doRequest(t, handler, http.MethodPost, "/api/applications", "", submissionBody())
	require.Equal(t, http.StatusCreated, res.Code)

	res = doRequest(t, handler, http.MethodPost, "/api/applications", "", submissionBody())
	assert.Equal(t, http.StatusConflict, res.Code)
}

func TestServer_UnknownApplicationIs404(t *testing.T) {
	env := newTestEnv(t, ratelimit.NoopLimiter{}, config.RateLimitConfig{})

	res := doRequest(t, env.server.Handler(), http.MethodGet, "/api/applications/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

// ==========================
// Admin Route Tests
// ==========================

func TestServer_AdminRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t, ratelimit.NoopLimiter{}, config.RateLimitConfig{})
	handler := env.server.Handler()

	res := doRequest(t, handler, http.MethodGet, "/api/admin/dashboard", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = doRequest(t, handler, http.MethodGet, "/api/admin/dashboard", adminToken(t, "USER"), nil)
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = doRequest(t, handler, http.MethodGet, "/api/admin/dashboard", adminToken(t, "ADMIN"), nil)
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestServer_AdminStatusUpdateAppendsHistory(t *testing.T) {
	env := newTestEnv(t, ratelimit.NoopLimiter{}, config.RateLimitConfig{})
	handler := env.server.Handler()

	res := doRequest(t, handler, http.MethodPost, "/api/applications", "", submissionBody())
	require.Equal(t, http.StatusCreated, res.Code)
	var created models.ApplicationRecord
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &created))

	body, _ := json.Marshal(map[string]interface{}{"status": "UNDER_REVIEW", "notes": "checking documents"})
	res = doRequest(t, handler, http.MethodPut,
		"/api/admin/applications/"+created.ID+"/status", adminToken(t, "ADMIN"), body)
	require.Equal(t, http.StatusOK, res.Code)

	var updated models.ApplicationRecord
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &updated))
	assert.Equal(t, models.StatusUnderReview, updated.Status)
	assert.Equal(t, "checking documents", updated.Notes)
	require.Len(t, updated.StatusHistory, 2)
	assert.Equal(t, "admin-7", updated.StatusHistory[1].ChangedBy)
}

func TestServer_AdminStatusUpdateInvalidStatusIs400(t *testing.T) {
	env := newTestEnv(t, ratelimit.NoopLimiter{}, config.RateLimitConfig{})
	handler := env.server.Handler()

	res := doRequest(t, handler, http.MethodPost, "/api/applications", "", submissionBody())
	require.Equal(t, http.StatusCreated, res.Code)
	var created models.ApplicationRecord
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &created))

	body, _ := json.Marshal(map[string]interface{}{"status": "ARCHIVED"})
	res = doRequest(t, handler, http.MethodPut,
		"/api/admin/applications/"+created.ID+"/status", adminToken(t, "ADMIN"), body)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestServer_AdminListServesMergedPage(t *testing.T) {
	env := newTestEnv(t, ratelimit.NoopLimiter{}, config.RateLimitConfig{})
	handler := env.server.Handler()

	res := doRequest(t, handler, http.MethodPost, "/api/applications", "", submissionBody())
	require.Equal(t, http.StatusCreated, res.Code)

	res = doRequest(t, handler, http.MethodGet,
		"/api/admin/applications?page=1&pageSize=10", adminToken(t, "ADMIN"), nil)
	require.Equal(t, http.StatusOK, res.Code)

	var result models.ListResult
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &result))
	assert.Equal(t, 1, result.TotalCount)
	assert.Len(t, result.Items, 1)
}

// ==========================
// Grant Route Tests
// ==========================

func TestServer_GrantCRUDRequiresAdminForWrites(t *testing.T) {
	env := newTestEnv(t, ratelimit.NoopLimiter{}, config.RateLimitConfig{})
	handler := env.server.Handler()

	grantBody, _ := json.Marshal(map[string]interface{}{
		"title":       "Small Business Boost",
		"description": "Support for small businesses",
		"category":    "business",
		"amount":      50000,
		"status":      "OPEN",
	})

	res := doRequest(t, handler, http.MethodPost, "/api/grants", "", grantBody)
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = doRequest(t, handler, http.MethodPost, "/api/grants", adminToken(t, "ADMIN"), grantBody)
	require.Equal(t, http.StatusCreated, res.Code)
	var created models.GrantListing
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &created))

	// public read works without a token
	res = doRequest(t, handler, http.MethodGet, "/api/grants/"+created.ID, "", nil)
	assert.Equal(t, http.StatusOK, res.Code)

	res = doRequest(t, handler, http.MethodDelete, "/api/grants/"+created.ID, adminToken(t, "ADMIN"), nil)
	assert.Equal(t, http.StatusNoContent, res.Code)

	res = doRequest(t, handler, http.MethodGet, "/api/grants/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestServer_GrantCategoryBrowse(t *testing.T) {
	env := newTestEnv(t, ratelimit.NoopLimiter{}, config.RateLimitConfig{})
	handler := env.server.Handler()

	grantBody, _ := json.Marshal(map[string]interface{}{
		"title":       "Rural Education Fund",
		"description": "Grants for rural schools",
		"category":    "education",
		"amount":      25000,
		"status":      "OPEN",
	})
	res := doRequest(t, handler, http.MethodPost, "/api/grants", adminToken(t, "ADMIN"), grantBody)
	require.Equal(t, http.StatusCreated, res.Code)

	res = doRequest(t, handler, http.MethodGet, "/api/grants/category/education", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var result models.GrantListResult
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &result))
	require.Len(t, result.Grants, 1)
	assert.Equal(t, "Rural Education Fund", result.Grants[0].Title)

	res = doRequest(t, handler, http.MethodGet, "/api/grants/category/housing", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &result))
	assert.Empty(t, result.Grants)
}

// ==========================
// Rate Limit and Health Tests
// ==========================

func TestServer_SubmissionRateLimited(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	limiter := ratelimit.NewRedisLimiter(client, "test")

	env := newTestEnv(t, limiter, config.RateLimitConfig{
		Enabled:     true,
		WindowMs:    60000,
		MaxRequests: 1,
	})
	handler := env.server.Handler()

	res := doRequest(t, handler, http.MethodPost, "/api/applications", "", submissionBody())
	require.Equal(t, http.StatusCreated, res.Code)

	res = doRequest(t, handler, http.MethodPost, "/api/applications", "", submissionBody())
	assert.Equal(t, http.StatusTooManyRequests, res.Code)
}

func TestServer_Healthz(t *testing.T) {
	env := newTestEnv(t, ratelimit.NoopLimiter{}, config.RateLimitConfig{})

	res := doRequest(t, env.server.Handler(), http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"self":"up"`)
}
