package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-pipeline/internal/api/middleware"
	"github.com/dvloznov/statement-pipeline/internal/domain"
	"github.com/dvloznov/statement-pipeline/internal/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DocumentLoader loads processed documents by id.
type DocumentLoader interface {
	Load(ctx context.Context, documentID string) (*domain.CleanedStatementDocument, error)
}

// DocumentsHandler serves processed documents.
type DocumentsHandler struct {
	loader DocumentLoader
	log    zerolog.Logger
}

// NewDocumentsHandler creates a new documents handler.
func NewDocumentsHandler(loader DocumentLoader, log zerolog.Logger) *DocumentsHandler {
	return &DocumentsHandler{
		loader: loader,
		log:    log,
	}
}

// GetDocument handles GET /api/documents/{id}. The optional format query
// parameter selects json (default), csv or xlsx.
func (h *DocumentsHandler) GetDocument(w http.ResponseWriter, r *http.Request, documentID string) {
	ctx := r.Context()

	doc, err := h.loader.Load(ctx, documentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Document not found")
			return
		}
		h.log.Error().Err(err).Str("document_id", documentID).Msg("Failed to load document")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load document")
		return
	}

	var (
		buf         bytes.Buffer
		contentType string
	)
	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		middleware.WriteJSON(w, http.StatusOK, doc)
		return
	case "csv":
		contentType = "text/csv"
		err = report.WriteCSV(&buf, doc)
	case "xlsx":
		contentType = xlsxContentType
		err = report.WriteXLSX(&buf, doc)
	default:
		middleware.WriteError(w, http.StatusBadRequest, "Unsupported format: "+format)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("document_id", documentID).Msg("Failed to render document")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to render document")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
