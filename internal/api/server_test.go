package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coronary-score-server/internal/dataio"
	"github.com/coronary-score-server/internal/domain"
	"github.com/coronary-score-server/internal/service"
	"github.com/coronary-score-server/internal/store"
)

type fakeConfigManager struct {
	config *domain.Config
}

func newFakeConfigManager() *fakeConfigManager {
	return &fakeConfigManager{config: &domain.Config{
		Environment: "test",
		Server: domain.ServerConfig{
			Host:           "127.0.0.1",
			Port:           0,
			RequestTimeout: 5 * time.Second,
			MaxBatchSize:   3,
			CORSOrigins:    []string{"*"},
		},
		Scoring: domain.ScoringConfig{DefaultDominance: "right", BatchWorkers: 2, RecordRuns: true},
		Logging: domain.LoggingConfig{Level: "warn", Format: "text"},
	}}
}

func (f *fakeConfigManager) GetConfig() *domain.Config                 { return f.config }
func (f *fakeConfigManager) GetDatabaseConfig() *domain.DatabaseConfig { return &f.config.Database }
func (f *fakeConfigManager) GetServerConfig() *domain.ServerConfig     { return &f.config.Server }
func (f *fakeConfigManager) Reload() error                             { return nil }
func (f *fakeConfigManager) Validate() error                           { return nil }
func (f *fakeConfigManager) GetDatabaseConnectionString() string       { return "" }
func (f *fakeConfigManager) GetRedisConnectionString() string          { return "" }
func (f *fakeConfigManager) IsProduction() bool                        { return false }
func (f *fakeConfigManager) IsDevelopment() bool                       { return true }

type memoryPatients struct {
	mu       sync.Mutex
	patients map[string]*domain.PatientRecord
}

func newMemoryPatients() *memoryPatients {
	return &memoryPatients{patients: make(map[string]*domain.PatientRecord)}
}

func (m *memoryPatients) Create(_ context.Context, p *domain.PatientRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.patients[p.ID]; ok {
		return fmt.Errorf("patient %s: %w", p.ID, domain.ErrRecordExists)
	}
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *memoryPatients) GetByID(_ context.Context, id string) (*domain.PatientRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, fmt.Errorf("patient %s: %w", id, domain.ErrRecordNotFound)
	}
	cp := *p
	return &cp, nil
}

func (m *memoryPatients) List(_ context.Context, limit, offset int) ([]*domain.PatientRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.PatientRecord
	for _, p := range m.patients {
		cp := *p
		out = append(out, &cp)
	}
	if offset >= len(out) {
		return nil, nil
	}
	return out[offset:min(len(out), offset+limit)], nil
}

func (m *memoryPatients) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.patients[id]; !ok {
		return fmt.Errorf("patient %s: %w", id, domain.ErrRecordNotFound)
	}
	delete(m.patients, id)
	return nil
}

type testServer struct {
	*Server
	runs     store.Store
	patients *memoryPatients
}

func setupTestServer(t *testing.T, opts ...Option) *testServer {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	runs, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { runs.Close() })

	cm := newFakeConfigManager()
	scoring, err := service.NewScoringService(logger, nil, runs, cm.config.Scoring)
	require.NoError(t, err)

	patients := newMemoryPatients()
	opts = append([]Option{WithRunStore(runs), WithPatientRepository(patients)}, opts...)
	return &testServer{
		Server:   NewServer(cm, logger, scoring, opts...),
		runs:     runs,
		patients: patients,
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func samplePatient() domain.PatientRecord {
	return dataio.SamplePatients()[0]
}

func TestHealth(t *testing.T) {
	ts := setupTestServer(t, WithHealthCheck("runs", func(context.Context) error { return nil }))

	w := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, Version, body["version"])
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestHealth_Degraded(t *testing.T) {
	ts := setupTestServer(t, WithHealthCheck("database", func(context.Context) error {
		return errors.New("connection refused")
	}))

	w := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "degraded", body["status"])
	components := body["components"].(map[string]any)
	assert.Equal(t, "connection refused", components["database"])
}

func TestScore(t *testing.T) {
	ts := setupTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/score/syntax", samplePatient())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	bundle := decode[domain.ScoreBundle](t, w)
	assert.Equal(t, "P001", bundle.PatientID)
	require.NotNil(t, bundle.Syntax)
	assert.Greater(t, bundle.Syntax.Result.TotalScore, 0.0)
	assert.Nil(t, bundle.Gensini)
	assert.Nil(t, bundle.CadRads)
}

func TestScore_AllRecordsRuns(t *testing.T) {
	ts := setupTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/score/all", samplePatient())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	bundle := decode[domain.ScoreBundle](t, w)
	assert.NotNil(t, bundle.Syntax)
	assert.NotNil(t, bundle.Gensini)
	assert.NotNil(t, bundle.CadRads)

	count, err := ts.runs.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestScore_Errors(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name       string
		path       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unknown calculator",
			path:       "/api/v1/score/timi",
			body:       samplePatient(),
			wantStatus: http.StatusBadRequest,
			wantCode:   domain.ErrValidation,
		},
		{
			name:       "missing gender",
			path:       "/api/v1/score/all",
			body:       `{"patient_id":"X1","age":60,"lesions":[]}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   domain.ErrImport,
		},
		{
			name:       "malformed json",
			path:       "/api/v1/score/all",
			body:       `{"patient_id":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   domain.ErrImport,
		},
		{
			name:       "age out of range",
			path:       "/api/v1/score/gensini",
			body:       `{"patient_id":"X2","age":200,"gender":"male","lesions":[]}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   domain.ErrValidation,
		},
		{
			name:       "array instead of object",
			path:       "/api/v1/score/all",
			body:       []domain.PatientRecord{samplePatient(), samplePatient()},
			wantStatus: http.StatusBadRequest,
			wantCode:   domain.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			apiErr := decode[domain.APIError](t, w)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Equal(t, w.Header().Get("X-Correlation-ID"), apiErr.RequestID)
		})
	}
}

func TestBatch(t *testing.T) {
	ts := setupTestServer(t)

	body := fmt.Sprintf(`[%s, {"patient_id":"BAD","age":70,"lesions":[]}, %s]`,
		mustJSON(t, dataio.SamplePatients()[0]), mustJSON(t, dataio.SamplePatients()[1]))
	w := ts.do(t, http.MethodPost, "/api/v1/batch?calculator=gensini", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[BatchResponse](t, w)
	assert.Equal(t, 3, resp.Count)
	assert.Equal(t, 2, resp.Successful)
	assert.Equal(t, 1, resp.Failed)
	require.Len(t, resp.Items, 3)

	for i, item := range resp.Items {
		assert.Equal(t, i, item.Index)
	}
	assert.Equal(t, "P001", resp.Items[0].PatientID)
	require.NotNil(t, resp.Items[0].Bundle)
	assert.NotNil(t, resp.Items[0].Bundle.Gensini)
	assert.Nil(t, resp.Items[0].Bundle.Syntax)
	assert.Nil(t, resp.Items[1].Bundle)
	assert.Contains(t, resp.Items[1].Error, "gender")
	assert.Equal(t, "P002", resp.Items[2].PatientID)
}

func TestBatch_NestedArraysFailPerItem(t *testing.T) {
	ts := setupTestServer(t)

	valid := `{"patient_id":"OK1","age":60,"gender":"male","lesions":[]}`
	pair := `[{"patient_id":"A","age":60,"gender":"male","lesions":[]},{"patient_id":"B","age":61,"gender":"female","lesions":[]}]`
	body := fmt.Sprintf(`[[], %s, %s]`, valid, pair)

	w := ts.do(t, http.MethodPost, "/api/v1/batch", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[BatchResponse](t, w)
	assert.Equal(t, 3, resp.Count)
	assert.Equal(t, 1, resp.Successful)
	assert.Equal(t, 2, resp.Failed)
	require.Len(t, resp.Items, 3)

	assert.Nil(t, resp.Items[0].Bundle)
	assert.Contains(t, resp.Items[0].Error, "single patient")
	assert.Equal(t, "OK1", resp.Items[1].PatientID)
	assert.NotNil(t, resp.Items[1].Bundle)
	assert.Nil(t, resp.Items[2].Bundle)
	assert.Contains(t, resp.Items[2].Error, "single patient")
}

func TestBatch_Limits(t *testing.T) {
	ts := setupTestServer(t)

	p := samplePatient()
	w := ts.do(t, http.MethodPost, "/api/v1/batch", []domain.PatientRecord{p, p, p, p})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/batch", p)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidate(t *testing.T) {
	ts := setupTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/validate", samplePatient())
	require.Equal(t, http.StatusOK, w.Code)
	report := decode[map[string]any](t, w)
	assert.Equal(t, true, report["valid"])

	w = ts.do(t, http.MethodPost, "/api/v1/validate",
		`{"patient_id":"V1","age":60,"gender":"female","lesions":[{"vessel":"LAD","location":"proximal","stenosis_percent":140}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	report = decode[map[string]any](t, w)
	assert.Equal(t, false, report["valid"])
	assert.NotEmpty(t, report["errors"])
}

func TestSegments(t *testing.T) {
	ts := setupTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/v1/catalog/segments?dominance=left", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "left", body["dominance"])
	assert.NotEmpty(t, body["segments"])

	w = ts.do(t, http.MethodGet, "/api/v1/catalog/segments?dominance=sideways", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRuns(t *testing.T) {
	ts := setupTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/score/all", samplePatient())
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/runs?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[RunsResponse](t, w)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Runs, 2)

	w = ts.do(t, http.MethodGet, "/api/v1/runs?patient_id=P001", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page = decode[RunsResponse](t, w)
	require.Len(t, page.Runs, 3)

	id := page.Runs[0].ID
	w = ts.do(t, http.MethodGet, "/api/v1/runs/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	run := decode[store.Run](t, w)
	assert.Equal(t, "P001", run.PatientID)

	w = ts.do(t, http.MethodDelete, "/api/v1/runs/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/runs/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = ts.do(t, http.MethodDelete, "/api/v1/runs/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/runs?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRuns_Disabled(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	cm := newFakeConfigManager()
	scoring, err := service.NewScoringService(logger, nil, nil, cm.config.Scoring)
	require.NoError(t, err)
	server := NewServer(cm, logger, scoring)

	for _, path := range []string{"/api/v1/runs", "/api/v1/patients"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
		apiErr := decode[domain.APIError](t, w)
		assert.Equal(t, domain.ErrUnavailable, apiErr.Code)
	}
}

func TestPatients(t *testing.T) {
	ts := setupTestServer(t)
	p := samplePatient()

	w := ts.do(t, http.MethodPost, "/api/v1/patients", p)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "/api/v1/patients/P001", w.Header().Get("Location"))

	w = ts.do(t, http.MethodPost, "/api/v1/patients", p)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/patients/P001", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stored := decode[domain.PatientRecord](t, w)
	assert.Len(t, stored.Lesions, len(p.Lesions))

	w = ts.do(t, http.MethodGet, "/api/v1/patients", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[map[string]any](t, w)
	assert.Len(t, list["patients"], 1)

	w = ts.do(t, http.MethodPost, "/api/v1/patients/P001/score?calculator=cadrads", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	bundle := decode[domain.ScoreBundle](t, w)
	require.NotNil(t, bundle.CadRads)
	assert.Nil(t, bundle.Syntax)

	w = ts.do(t, http.MethodDelete, "/api/v1/patients/P001", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/patients/P001", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = ts.do(t, http.MethodPost, "/api/v1/patients/P001/score", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPatients_RejectsInvalid(t *testing.T) {
	ts := setupTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/patients", `{"patient_id":"X3","age":200,"gender":"male","lesions":[]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	_, err := ts.patients.GetByID(context.Background(), "X3")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestCorrelationIDPropagates(t *testing.T) {
	ts := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/segments", nil)
	req.Header.Set("X-Correlation-ID", "req-42")
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get("X-Correlation-ID"))
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return string(raw)
}
