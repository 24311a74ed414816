package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-pipeline/internal/artifacts"
	"github.com/dvloznov/statement-pipeline/internal/domain"
	"github.com/dvloznov/statement-pipeline/internal/jobs"
	"github.com/dvloznov/statement-pipeline/internal/jobs/inmemory"
	"github.com/dvloznov/statement-pipeline/internal/logger"
	"github.com/dvloznov/statement-pipeline/internal/metrics"
)

type MockLoader struct {
	Docs map[string]*domain.CleanedStatementDocument
}

func (m *MockLoader) Load(ctx context.Context, id string) (*domain.CleanedStatementDocument, error) {
	doc, ok := m.Docs[id]
	if !ok {
		return nil, artifacts.ErrNotFound
	}
	return doc, nil
}

type testServer struct {
	handler http.Handler
	queue   *inmemory.Queue
	store   *inmemory.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := inmemory.NewStore()
	queue := inmemory.NewQueue(store, inmemory.QueueOptions{})
	t.Cleanup(func() { _ = queue.Close() })

	loader := &MockLoader{Docs: map[string]*domain.CleanedStatementDocument{
		"doc-1": {
			DocumentID: "doc-1",
			Bank:       "OPAY",
			Currency:   "NGN",
			Transactions: []domain.TransactionRecord{
				{ID: "t1", ValueDate: civil.Date{Year: 2024, Month: 1, Day: 2}, Description: "Airtime", AmountMinor: -10000},
			},
			BalanceCheckPassed: true,
			Warnings:           []string{},
		},
	}}

	deps := Deps{
		Publisher: queue,
		Jobs:      store,
		Documents: loader,
		Metrics:   metrics.New(),
	}
	return &testServer{
		handler: NewRouter(deps, logger.NewWithWriter(io.Discard)),
		queue:   queue,
		store:   store,
	}
}

func (s *testServer) do(t *testing.T, method, target string, body io.Reader, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func TestUploadStatement(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/statements", strings.NewReader("%PDF-1.4 ..."), map[string]string{
		"X-Filename": "C:\\Users\\ada\\march.pdf",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["job_id"])
	assert.Equal(t, string(jobs.JobStatusPending), resp["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	job, err := s.store.GetJob(context.Background(), resp["job_id"])
	require.NoError(t, err)
	assert.Equal(t, "march.pdf", job.Filename)

	rec = s.do(t, http.MethodGet, "/api/jobs/"+resp["job_id"], nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got jobs.ProcessStatementJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, resp["job_id"], got.JobID)
	assert.Nil(t, got.Content)
}

func TestUploadStatement_Errors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		body   string
		want   int
	}{
		{"empty body", http.MethodPost, "", http.StatusBadRequest},
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, "/api/statements", strings.NewReader(tt.body), nil)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	require.NoError(t, s.queue.Stop(context.Background()))
	rec := s.do(t, http.MethodPost, "/api/statements?filename=a.pdf", strings.NewReader("%PDF"), nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetJob_NotFound(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/jobs/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetDocument(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/documents/doc-1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var doc domain.CleanedStatementDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "OPAY", doc.Bank)
	assert.Equal(t, 1, doc.TransactionCount())

	rec = s.do(t, http.MethodGet, "/api/documents/doc-1?format=csv", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "t1,2024-01-02,,Airtime,-100.00")

	rec = s.do(t, http.MethodGet, "/api/documents/doc-1?format=xlsx", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	rec = s.do(t, http.MethodGet, "/api/documents/doc-1?format=pdf", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/documents/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")

	rec = s.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodOptions, "/api/statements", nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDIsPropagated(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", nil, map[string]string{"X-Request-ID": "req-42"})
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}
