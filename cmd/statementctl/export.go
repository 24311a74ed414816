package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dvloznov/statement-pipeline/internal/domain"
	"github.com/dvloznov/statement-pipeline/internal/report"
)

// Export sources.
const (
	fromArtifacts = "artifacts"
	fromBigQuery  = "bigquery"
)

func newExportCommand(root *rootOptions) *cobra.Command {
	var (
		documentID string
		format     string
		out        string
		from       string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a processed statement as CSV, XLSX or JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a, err := newApp(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer a.Close()

			doc, err := a.loadDocument(ctx, from, documentID)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("creating %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}

			if err := writeExport(w, format, doc); err != nil {
				return err
			}
			a.log.Info().Str("document_id", doc.DocumentID).Str("format", format).Int("transactions", doc.TransactionCount()).Msg("Exported statement")
			return nil
		},
	}

	cmd.Flags().StringVar(&documentID, "document-id", "", "document to export (required)")
	_ = cmd.MarkFlagRequired("document-id")
	cmd.Flags().StringVar(&format, "format", "csv", "output format: csv, xlsx or json")
	cmd.Flags().StringVar(&out, "out", "", "output file (default stdout)")
	cmd.Flags().StringVar(&from, "from", fromArtifacts, "read the document from artifacts or bigquery")

	return cmd
}

func writeExport(w io.Writer, format string, doc *domain.CleanedStatementDocument) error {
	switch format {
	case "csv":
		return report.WriteCSV(w, doc)
	case "xlsx":
		return report.WriteXLSX(w, doc)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

// loadDocument reads a processed document from the artifact store or BigQuery.
func (a *app) loadDocument(ctx context.Context, from, documentID string) (*domain.CleanedStatementDocument, error) {
	switch from {
	case fromArtifacts:
		store, err := a.artifactStore(ctx)
		if err != nil {
			return nil, err
		}
		return store.Load(ctx, documentID)
	case fromBigQuery:
		repo, err := a.repository(ctx)
		if err != nil {
			return nil, err
		}
		return repo.LoadStatement(ctx, documentID)
	default:
		return nil, fmt.Errorf("unknown source %q (want %s or %s)", from, fromArtifacts, fromBigQuery)
	}
}
