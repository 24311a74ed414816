package handlers

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-pipeline/internal/api/middleware"
	"github.com/dvloznov/statement-pipeline/internal/jobs"
	"github.com/dvloznov/statement-pipeline/internal/logger"
)

// DefaultMaxUploadBytes caps an uploaded statement when no limit is configured.
const DefaultMaxUploadBytes = 50 << 20

const defaultFilename = "statement.pdf"

// StatementsHandler accepts statement uploads and queues them for processing.
type StatementsHandler struct {
	publisher jobs.Publisher
	maxBytes  int64
	log       zerolog.Logger
}

// NewStatementsHandler creates a new statements handler.
func NewStatementsHandler(publisher jobs.Publisher, maxBytes int64, log zerolog.Logger) *StatementsHandler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &StatementsHandler{
		publisher: publisher,
		maxBytes:  maxBytes,
		log:       log,
	}
}

// Upload handles POST /api/statements. The body is the raw PDF; the file name
// comes from the X-Filename header or the filename query parameter.
func (h *StatementsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Statement is too large")
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	if len(body) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Request body is empty")
		return
	}

	job := &jobs.ProcessStatementJob{
		Filename: uploadFilename(r),
		Content:  body,
	}

	if err := h.publisher.PublishProcessStatement(ctx, job); err != nil {
		if errors.Is(err, jobs.ErrQueueClosed) {
			middleware.WriteError(w, http.StatusServiceUnavailable, "Server is shutting down")
			return
		}
		h.log.Error().Err(err).Msg("Failed to enqueue statement")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue statement")
		return
	}

	log.Info().
		Str("job_id", job.JobID).
		Str("file", job.Filename).
		Int("bytes", len(body)).
		Msg("Statement enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

func uploadFilename(r *http.Request) string {
	name := r.Header.Get("X-Filename")
	if name == "" {
		name = r.URL.Query().Get("filename")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return defaultFilename
	}
	// Drop any client-side directories.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return defaultFilename
	}
	return name
}
