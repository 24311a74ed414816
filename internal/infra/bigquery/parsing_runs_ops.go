package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/statement-pipeline/internal/logger"
)

const (
	parserType    = "RULE_BASED"
	parserVersion = "v1"
	maxErrorLen   = 2000
)

// StartParsingRun inserts a new row into parsing_runs with status=RUNNING
// and returns the generated parsing_run_id.
func (r *Repository) StartParsingRun(ctx context.Context, documentID string) (string, error) {
	parsingRunID := uuid.NewString()

	q := r.client.Query(fmt.Sprintf(`
		INSERT %s (
			parsing_run_id,
			document_id,
			started_ts,
			parser_type,
			parser_version,
			status
		)
		VALUES (
			@parsing_run_id,
			@document_id,
			@started_ts,
			@parser_type,
			@parser_version,
			@status
		)
	`, r.table(parsingRunsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "parsing_run_id", Value: parsingRunID},
		{Name: "document_id", Value: documentID},
		{Name: "started_ts", Value: time.Now()},
		{Name: "parser_type", Value: parserType},
		{Name: "parser_version", Value: parserVersion},
		{Name: "status", Value: RunStatusRunning},
	}

	if err := exec(ctx, q); err != nil {
		return "", fmt.Errorf("StartParsingRun: %w", err)
	}
	return parsingRunID, nil
}

// truncateError caps error text stored on a parsing run.
func truncateError(parseErr error) string {
	if parseErr == nil {
		return ""
	}
	msg := parseErr.Error()
	if len(msg) > maxErrorLen {
		msg = msg[:maxErrorLen]
	}
	return msg
}

// MarkParsingRunFailed sets status=FAILED, finished_ts and error_message.
// Failures are logged, not returned.
func (r *Repository) MarkParsingRunFailed(ctx context.Context, parsingRunID string, parseErr error) {
	log := logger.FromContext(ctx)

	q := r.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE parsing_run_id = @parsing_run_id
	`, r.table(parsingRunsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: RunStatusFailed},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: truncateError(parseErr)},
		{Name: "parsing_run_id", Value: parsingRunID},
	}

	if err := exec(ctx, q); err != nil {
		log.Error().
			Err(err).
			Str("parsing_run_id", parsingRunID).
			Msg("MarkParsingRunFailed: update failed")
	}
}

// MarkParsingRunSucceeded sets status=SUCCESS and finished_ts, clears error_message.
func (r *Repository) MarkParsingRunSucceeded(ctx context.Context, parsingRunID string) error {
	q := r.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = ""
		WHERE parsing_run_id = @parsing_run_id
	`, r.table(parsingRunsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: RunStatusSuccess},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "parsing_run_id", Value: parsingRunID},
	}

	if err := exec(ctx, q); err != nil {
		return fmt.Errorf("MarkParsingRunSucceeded: %w", err)
	}
	return nil
}

// ListParsingRuns returns the runs for a document, newest first.
func (r *Repository) ListParsingRuns(ctx context.Context, documentID string) ([]*ParsingRunRow, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT
			parsing_run_id,
			document_id,
			started_ts,
			finished_ts,
			parser_type,
			parser_version,
			status,
			error_message
		FROM %s
		WHERE document_id = @document_id
		ORDER BY started_ts DESC
	`, r.table(parsingRunsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "document_id", Value: documentID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListParsingRuns: reading query: %w", err)
	}

	var runs []*ParsingRunRow
	for {
		var row ParsingRunRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListParsingRuns: iterating: %w", err)
		}
		runs = append(runs, &row)
	}
	return runs, nil
}
