// Package review publishes statements that failed their balance check to a
// Notion database so a person can reconcile them by hand.
package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/statement-pipeline/internal/domain"
	"github.com/dvloznov/statement-pipeline/internal/logger"
)

// Action describes what Publish did with a document.
type Action string

const (
	ActionSkipped Action = "skipped"
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
)

// Result is the outcome of publishing one document.
type Result struct {
	DocumentID string `json:"document_id"`
	Action     Action `json:"action"`
	PageID     string `json:"page_id,omitempty"`
}

// Publisher creates or updates one review page per document.
type Publisher struct {
	notion     NotionService
	databaseID string
}

// NewPublisher returns a Publisher writing to the given database.
func NewPublisher(notion NotionService, databaseID string) *Publisher {
	return &Publisher{notion: notion, databaseID: databaseID}
}

// Publish creates the review page for doc, or updates it when a page with the
// same document id already exists. Documents that passed are skipped.
func (p *Publisher) Publish(ctx context.Context, doc *domain.CleanedStatementDocument) (Result, error) {
	if doc == nil {
		return Result{}, errors.New("Publish: nil document")
	}
	log := logger.FromContext(ctx).With().Str("document_id", doc.DocumentID).Logger()
	result := Result{DocumentID: doc.DocumentID, Action: ActionSkipped}

	if doc.BalanceCheckPassed {
		log.Debug().Msg("Balance check passed, nothing to review")
		return result, nil
	}

	pages, err := queryAllPages(ctx, p.notion, p.databaseID)
	if err != nil {
		return result, fmt.Errorf("Publish: %w", err)
	}

	props := DocumentToProperties(doc)
	for _, page := range pages {
		if extractDocumentID(page) != doc.DocumentID {
			continue
		}
		if _, err := p.notion.UpdatePage(ctx, string(page.ID), props); err != nil {
			return result, fmt.Errorf("Publish: updating page %s: %w", page.ID, err)
		}
		log.Info().Str("page_id", string(page.ID)).Msg("Updated review page")
		result.Action = ActionUpdated
		result.PageID = string(page.ID)
		return result, nil
	}

	page, err := p.notion.CreatePage(ctx, p.databaseID, props)
	if err != nil {
		return result, fmt.Errorf("Publish: creating page: %w", err)
	}
	log.Info().Str("page_id", string(page.ID)).Msg("Created review page")
	result.Action = ActionCreated
	result.PageID = string(page.ID)
	return result, nil
}

// PublishAll publishes each document in turn. A failure is logged and does not
// stop the remaining documents; the first error is returned.
func (p *Publisher) PublishAll(ctx context.Context, docs []*domain.CleanedStatementDocument) ([]Result, error) {
	log := logger.FromContext(ctx)
	var firstErr error
	results := make([]Result, 0, len(docs))

	for _, doc := range docs {
		res, err := p.Publish(ctx, doc)
		if err != nil {
			log.Warn().Err(err).Str("document_id", res.DocumentID).Msg("Failed to publish review page")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		results = append(results, res)
	}

	return results, firstErr
}

// queryAllPages queries all pages from a Notion database.
// Handles pagination automatically.
func queryAllPages(ctx context.Context, notion NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notion.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
