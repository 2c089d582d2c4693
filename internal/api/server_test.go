package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/leadgenhq/leadgen-engine/internal/config"
	"github.com/leadgenhq/leadgen-engine/internal/leads"
	"github.com/leadgenhq/leadgen-engine/internal/storage/memory"
)

var testTime = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type stubClock struct{}

func (stubClock) Now() time.Time { return testTime }

type stubIDGen struct {
	id  string
	err error
}

func (g stubIDGen) NewID() (string, error) { return g.id, g.err }

type fakeEnqueuer struct {
	mu       sync.Mutex
	enqueued []leads.Project
	err      error
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, p leads.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, p)
	return nil
}

type fakeCanceller struct {
	mu        sync.Mutex
	cancelled []string
	err       error
}

func (f *fakeCanceller) Cancel(_ context.Context, projectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.cancelled = append(f.cancelled, projectID)
	return nil
}

type serverFixture struct {
	projects  *memory.ProjectStore
	store     *memory.LeadStore
	enqueuer  *fakeEnqueuer
	canceller *fakeCanceller
	srv       *Server
}

func newServerFixture(t *testing.T, cfg config.Config) *serverFixture {
	t.Helper()
	if cfg.Server.TimeoutSeconds == 0 {
		cfg.Server.TimeoutSeconds = 5
	}
	f := &serverFixture{
		projects:  memory.NewProjectStore(),
		store:     memory.NewLeadStore(),
		enqueuer:  &fakeEnqueuer{},
		canceller: &fakeCanceller{},
	}
	f.srv = NewServer(f.projects, f.store, f.enqueuer, f.canceller,
		stubIDGen{id: "proj-1"}, stubClock{}, nil, nil, cfg, nil)
	return f
}

func (f *serverFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestCreateProject(t *testing.T) {
	f := newServerFixture(t, config.Config{})

	rec := f.do(t, http.MethodPost, "/v1/projects",
		`{"vendor_id":"v1","project_name":"sf coffee","city":"San Francisco","business_category":"coffee"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "proj-1", resp["project_id"])
	require.Equal(t, "Running", resp["status"])

	p, err := f.projects.Get(context.Background(), "proj-1")
	require.NoError(t, err)
	require.Equal(t, "v1", p.VendorID)
	require.Equal(t, leads.StatusRunning, p.Status)
	require.False(t, p.CancelRequested)
	require.Equal(t, testTime, p.CreatedAt)

	require.Len(t, f.enqueuer.enqueued, 1)
	require.Equal(t, "proj-1", f.enqueuer.enqueued[0].ProjectID)
}

func TestCreateProjectValidation(t *testing.T) {
	f := newServerFixture(t, config.Config{})

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "{"},
		{"missing vendor", `{"city":"SF","business_category":"coffee"}`},
		{"missing city", `{"vendor_id":"v1","business_category":"coffee"}`},
		{"missing category", `{"vendor_id":"v1","city":"SF"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/v1/projects", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	require.Empty(t, f.enqueuer.enqueued)
}

func TestCreateProjectEnqueueFailure(t *testing.T) {
	f := newServerFixture(t, config.Config{})
	f.enqueuer.err = errors.New("redis down")

	rec := f.do(t, http.MethodPost, "/v1/projects",
		`{"vendor_id":"v1","city":"SF","business_category":"coffee"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetProject(t *testing.T) {
	f := newServerFixture(t, config.Config{})
	require.NoError(t, f.projects.Create(context.Background(), leads.Project{
		ProjectID: "proj-1",
		VendorID:  "v1",
		Status:    leads.StatusFinished,
		CreatedAt: testTime,
	}))

	rec := f.do(t, http.MethodGet, "/v1/projects/proj-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Project leads.Project `json:"project"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, leads.StatusFinished, resp.Project.Status)

	rec = f.do(t, http.MethodGet, "/v1/projects/ghost", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelProjectAlwaysAcknowledges(t *testing.T) {
	f := newServerFixture(t, config.Config{})

	rec := f.do(t, http.MethodPost, "/v1/projects/ghost/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "Cancelled", resp["status"])
	require.Equal(t, []string{"ghost"}, f.canceller.cancelled)
}

func TestListLeads(t *testing.T) {
	f := newServerFixture(t, config.Config{})
	require.NoError(t, f.store.BulkInsert(context.Background(), []leads.Lead{
		{BusinessRecord: leads.BusinessRecord{PlaceID: "p1", VendorID: "v1", ProjectCategory: "coffee"}},
		{BusinessRecord: leads.BusinessRecord{PlaceID: "p2", VendorID: "v1", ProjectCategory: "bakery"}},
		{BusinessRecord: leads.BusinessRecord{PlaceID: "p3", VendorID: "v2", ProjectCategory: "coffee"}},
	}))

	rec := f.do(t, http.MethodGet, "/v1/leads?vendor_id=v1&category=coffee", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Leads []leads.Lead `json:"leads"`
		Count int          `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	require.Equal(t, "p1", resp.Leads[0].PlaceID)

	rec = f.do(t, http.MethodGet, "/v1/leads?vendor_id=v1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)

	rec = f.do(t, http.MethodGet, "/v1/leads", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIKeyMiddleware(t *testing.T) {
	cfg := config.Config{}
	cfg.Auth.Enabled = true
	cfg.Auth.APIKey = "sekret"
	f := newServerFixture(t, cfg)

	rec := f.do(t, http.MethodGet, "/v1/leads?vendor_id=v1", "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/leads?vendor_id=v1", nil)
	req.Header.Set("X-API-Key", "sekret")
	out := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(out, req)
	require.Equal(t, http.StatusOK, out.Code)

	rec = f.do(t, http.MethodGet, "/v1/leads?vendor_id=v1&api_key=sekret", "")
	require.Equal(t, http.StatusOK, rec.Code)

	// Health endpoints stay open.
	rec = f.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newServerFixture(t, config.Config{})

	rec := f.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/projects/x", "")
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
