package main

import (
	"fmt"

	"github.com/spf13/cobra"

	infraBQ "github.com/dvloznov/statement-pipeline/internal/infra/bigquery"
)

func newMigrateCommand(root *rootOptions) *cobra.Command {
	var appliedBy string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending BigQuery schema migrations",
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

			applied, err := infraBQ.Migrate(ctx, repo.Client(), a.cfg.BigQuery.Dataset, appliedBy)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s) to %s.%s\n", applied, a.cfg.BigQuery.Project, a.cfg.BigQuery.Dataset)
			return nil
		},
	}

	cmd.Flags().StringVar(&appliedBy, "applied-by", "statementctl", "name recorded in schema_migrations")

	return cmd
}
