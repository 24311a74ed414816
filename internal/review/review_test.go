package review

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-pipeline/internal/domain"
)

// MockNotionService is a hand-rolled NotionService for tests.
type MockNotionService struct {
	Pages [][]notionapi.Page // one slice per result page

	CreateFunc func(ctx context.Context, databaseID string, props notionapi.Properties) (*notionapi.Page, error)

	Queries []notionapi.Cursor
	Created []notionapi.Properties
	Updated map[string]notionapi.Properties
}

func (m *MockNotionService) CreatePage(ctx context.Context, databaseID string, props notionapi.Properties) (*notionapi.Page, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, databaseID, props)
	}
	m.Created = append(m.Created, props)
	return &notionapi.Page{ID: notionapi.ObjectID(fmt.Sprintf("new-%d", len(m.Created)))}, nil
}

func (m *MockNotionService) UpdatePage(ctx context.Context, pageID string, props notionapi.Properties) (*notionapi.Page, error) {
	if m.Updated == nil {
		m.Updated = map[string]notionapi.Properties{}
	}
	m.Updated[pageID] = props
	return &notionapi.Page{ID: notionapi.ObjectID(pageID)}, nil
}

func (m *MockNotionService) QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	m.Queries = append(m.Queries, req.StartCursor)
	idx := 0
	if req.StartCursor != "" {
		_, _ = fmt.Sscanf(string(req.StartCursor), "cursor-%d", &idx)
	}
	if idx >= len(m.Pages) {
		return &notionapi.DatabaseQueryResponse{}, nil
	}
	resp := &notionapi.DatabaseQueryResponse{Results: m.Pages[idx]}
	if idx+1 < len(m.Pages) {
		resp.HasMore = true
		resp.NextCursor = notionapi.Cursor(fmt.Sprintf("cursor-%d", idx+1))
	}
	return resp, nil
}

func reviewPage(pageID, documentID string) notionapi.Page {
	return notionapi.Page{
		ID: notionapi.ObjectID(pageID),
		Properties: notionapi.Properties{
			PropDocumentID: &notionapi.TitleProperty{
				Title: []notionapi.RichText{{PlainText: documentID}},
			},
		},
	}
}

func failedDocument(id string) *domain.CleanedStatementDocument {
	mismatch := 1
	balance := int64(90000)
	return &domain.CleanedStatementDocument{
		DocumentID:     id,
		SourceFilename: "march.pdf",
		Bank:           "GTBANK",
		Currency:       "NGN",
		Parser:         "nigeria",
		Header: domain.AccountHeader{
			OpeningBalance: 100000,
			ClosingBalance: 80000,
			Currency:       "NGN",
		},
		Transactions: []domain.TransactionRecord{
			{ValueDate: civil.Date{Year: 2024, Month: 3, Day: 1}, Description: "ATM", AmountMinor: -10000, BalanceMinor: &balance},
			{ValueDate: civil.Date{Year: 2024, Month: 3, Day: 2}, Description: "POS", AmountMinor: -5000},
		},
		FirstMismatchIndex: &mismatch,
		Warnings:           []string{"sign_inferred: page 0 row 1"},
	}
}

func TestPublisher_CreatesPage(t *testing.T) {
	mock := &MockNotionService{Pages: [][]notionapi.Page{{reviewPage("p-1", "other")}}}
	p := NewPublisher(mock, "db")

	res, err := p.Publish(context.Background(), failedDocument("doc-1"))
	require.NoError(t, err)
	assert.Equal(t, Result{DocumentID: "doc-1", Action: ActionCreated, PageID: "new-1"}, res)

	require.Len(t, mock.Created, 1)
	props := mock.Created[0]
	assert.Equal(t, StatusNeedsReview, props[PropStatus].(notionapi.SelectProperty).Select.Name)
	assert.Equal(t, "GTBANK", props[PropBank].(notionapi.SelectProperty).Select.Name)
	assert.Equal(t, float64(1), props[PropFirstMismatch].(notionapi.NumberProperty).Number)
	// opening 1000.00 - 150.00 = 850.00, declared 800.00
	assert.InDelta(t, -50.0, props[PropDifference].(notionapi.NumberProperty).Number, 1e-9)
	assert.Equal(t, "doc-1", props[PropDocumentID].(notionapi.TitleProperty).Title[0].Text.Content)
}

func TestPublisher_UpdatesExistingPage(t *testing.T) {
	mock := &MockNotionService{Pages: [][]notionapi.Page{
		{reviewPage("p-1", "other")},
		{reviewPage("p-2", "doc-1")},
	}}
	p := NewPublisher(mock, "db")

	res, err := p.Publish(context.Background(), failedDocument("doc-1"))
	require.NoError(t, err)
	assert.Equal(t, ActionUpdated, res.Action)
	assert.Equal(t, "p-2", res.PageID)
	assert.Empty(t, mock.Created)
	assert.Contains(t, mock.Updated, "p-2")
	assert.Equal(t, []notionapi.Cursor{"", "cursor-1"}, mock.Queries)
}

func TestPublisher_SkipsPassedDocuments(t *testing.T) {
	mock := &MockNotionService{}
	doc := failedDocument("doc-1")
	doc.BalanceCheckPassed = true
	doc.FirstMismatchIndex = nil

	res, err := NewPublisher(mock, "db").Publish(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, ActionSkipped, res.Action)
	assert.Empty(t, mock.Queries)
	assert.Empty(t, mock.Created)
}

func TestPublisher_PublishAllContinuesAfterFailure(t *testing.T) {
	mock := &MockNotionService{}
	mock.CreateFunc = func(ctx context.Context, databaseID string, props notionapi.Properties) (*notionapi.Page, error) {
		title := props[PropDocumentID].(notionapi.TitleProperty).Title[0].Text.Content
		if title == "bad" {
			return nil, errors.New("rate limited")
		}
		return &notionapi.Page{ID: notionapi.ObjectID("page-" + title)}, nil
	}

	results, err := NewPublisher(mock, "db").PublishAll(context.Background(), []*domain.CleanedStatementDocument{
		failedDocument("bad"),
		failedDocument("good"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	require.Len(t, results, 1)
	assert.Equal(t, "page-good", results[0].PageID)
}

func TestDocumentToProperties_TruncatesWarnings(t *testing.T) {
	doc := failedDocument("doc-1")
	long := make([]byte, 2500)
	for i := range long {
		long[i] = 'w'
	}
	doc.Warnings = []string{string(long)}

	props := DocumentToProperties(doc)
	content := props[PropWarnings].(notionapi.RichTextProperty).RichText[0].Text.Content
	assert.Len(t, content, maxRichText)
	assert.Contains(t, props, PropStatementFrom)
}
