package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/dvloznov/statement-pipeline/internal/domain"
	"github.com/dvloznov/statement-pipeline/internal/report"
	"github.com/dvloznov/statement-pipeline/internal/review"
)

func newReviewCommand(root *rootOptions) *cobra.Command {
	var (
		documentIDs []string
		from        string
	)

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Publish statements that failed their balance check to the Notion review database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a, err := newApp(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.Notion.Token == "" || a.cfg.Notion.ReviewDatabaseID == "" {
				return errors.New("notion.token and notion.review_database_id must be configured")
			}

			docs := make([]*domain.CleanedStatementDocument, 0, len(documentIDs))
			for _, id := range documentIDs {
				doc, err := a.loadDocument(ctx, from, id)
				if err != nil {
					return err
				}
				docs = append(docs, doc)
			}

			publisher := review.NewPublisher(review.NewNotionClient(a.cfg.Notion.Token), a.cfg.Notion.ReviewDatabaseID)
			results, publishErr := publisher.PublishAll(ctx, docs)

			lines := make([]any, len(results))
			for i, r := range results {
				lines[i] = r
			}
			if err := report.WriteJSONLines(cmd.OutOrStdout(), lines...); err != nil {
				return err
			}
			return publishErr
		},
	}

	cmd.Flags().StringSliceVar(&documentIDs, "document-id", nil, "documents to publish (repeatable, required)")
	_ = cmd.MarkFlagRequired("document-id")
	cmd.Flags().StringVar(&from, "from", fromArtifacts, "read documents from artifacts or bigquery")

	return cmd
}
