// Package api assembles the HTTP surface: statement upload, job status,
// processed documents, metrics and health.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-pipeline/internal/api/handlers"
	"github.com/dvloznov/statement-pipeline/internal/api/middleware"
	"github.com/dvloznov/statement-pipeline/internal/jobs"
	"github.com/dvloznov/statement-pipeline/internal/metrics"
)

// Deps are the collaborators behind the routes.
type Deps struct {
	Publisher      jobs.Publisher
	Jobs           jobs.JobStore
	Documents      handlers.DocumentLoader
	Metrics        *metrics.Metrics
	MaxUploadBytes int64
}

// NewRouter returns the API handler with middleware applied.
func NewRouter(deps Deps, log zerolog.Logger) http.Handler {
	statementsHandler := handlers.NewStatementsHandler(deps.Publisher, deps.MaxUploadBytes, log)
	jobsHandler := handlers.NewJobsHandler(deps.Jobs, log)
	documentsHandler := handlers.NewDocumentsHandler(deps.Documents, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/statements", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			statementsHandler.Upload(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
		if jobID == "" || strings.Contains(jobID, "/") {
			middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
			return
		}
		jobsHandler.GetJob(w, r, jobID)
	})

	mux.HandleFunc("/api/documents/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		documentID := strings.TrimPrefix(r.URL.Path, "/api/documents/")
		if documentID == "" || strings.Contains(documentID, "/") {
			middleware.WriteError(w, http.StatusBadRequest, "Document ID is required")
			return
		}
		if deps.Documents == nil {
			middleware.WriteError(w, http.StatusNotFound, "Document storage is not configured")
			return
		}
		documentsHandler.GetDocument(w, r, documentID)
	})

	if deps.Metrics != nil {
		mux.Handle("/metrics", deps.Metrics.Handler())
	}

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return middleware.Chain(mux,
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Logger(log),
		middleware.CORS,
	)
}

// NewServer wraps handler in an http.Server with the timeouts used by serve.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
