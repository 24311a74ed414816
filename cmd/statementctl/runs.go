package main

import (
	"github.com/spf13/cobra"

	"github.com/dvloznov/statement-pipeline/internal/report"
)

func newRunsCommand(root *rootOptions) *cobra.Command {
	var documentID string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List the BigQuery parsing runs recorded for a document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a, err := newApp(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer a.Close()

			repo, err := a.repository(ctx)
			if err != nil {
				return err
			}
			runs, err := repo.ListParsingRuns(ctx, documentID)
			if err != nil {
				return err
			}

			lines := make([]any, len(runs))
			for i, r := range runs {
				lines[i] = r
			}
			return report.WriteJSONLines(cmd.OutOrStdout(), lines...)
		},
	}

	cmd.Flags().StringVar(&documentID, "document-id", "", "document whose runs to list (required)")
	_ = cmd.MarkFlagRequired("document-id")

	return cmd
}
