package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dvloznov/statement-pipeline/internal/jobs/inmemory"
	"github.com/dvloznov/statement-pipeline/internal/report"
	"github.com/dvloznov/statement-pipeline/internal/source"
)

func newProcessCommand(root *rootOptions) *cobra.Command {
	var (
		po      processorOptions
		workers int
	)

	cmd := &cobra.Command{
		Use:   "process PATH...",
		Short: "Process statement PDFs and print one JSON summary line per file",
		Long: "Process local PDF files, directories of PDFs or gs:// URIs. Each input\n" +
			"produces one JSON line on stdout. The command fails only when every input fails.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a, err := newApp(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer a.Close()

			refs, err := source.Expand(args)
			if err != nil {
				return err
			}
			if len(refs) == 0 {
				return errors.New("no PDF files found")
			}

			proc, err := a.processor(ctx, po)
			if err != nil {
				return err
			}

			if workers <= 0 {
				workers = a.cfg.Batch.Workers
			}
			lines, failed, err := runBatch(ctx, refs, a.reader(ctx, refs), proc, inmemory.QueueOptions{
				BufferSize: len(refs),
				Workers:    workers,
				MaxRetries: a.cfg.Batch.MaxRetries,
				Metrics:    a.metrics,
			})
			if err != nil {
				return err
			}

			if err := report.WriteJSONLines(cmd.OutOrStdout(), lines...); err != nil {
				return err
			}

			a.log.Info().Int("files", len(refs)).Int("failed", failed).Msg("Batch finished")
			if failed == len(refs) {
				return fmt.Errorf("%w (%d files)", errAllFailed, failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&po.reprocess, "reprocess", false, "ignore results already in the artifact store")
	cmd.Flags().BoolVar(&po.persist, "persist", false, "write artifacts and reuse cached results")
	cmd.Flags().BoolVar(&po.publishBQ, "publish-bq", false, "save documents and parsing runs to BigQuery")
	cmd.Flags().BoolVar(&po.maskPII, "mask-pii", false, "mask account numbers, IBANs and card numbers")
	cmd.Flags().IntVar(&workers, "workers", 0, "documents processed concurrently (default from config)")

	return cmd
}
