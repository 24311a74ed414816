package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/statement-pipeline/internal/gcs"
)

func newUploadCommand(root *rootOptions) *cobra.Command {
	var (
		bucket string
		object string
	)

	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a statement PDF to Cloud Storage and print its gs:// URI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a, err := newApp(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer a.Close()

			path := args[0]
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("checking %s: %w", path, err)
			}
			if object == "" {
				object = fmt.Sprintf("uploads/%s/%s", time.Now().UTC().Format("2006/01/02"), filepath.Base(path))
			}

			client, err := a.gcsClient(ctx)
			if err != nil {
				return err
			}
			if err := client.UploadFile(ctx, bucket, object, path); err != nil {
				return err
			}

			uri := gcs.URI(bucket, object)
			a.log.Info().Str("file", path).Str("gcs_uri", uri).Msg("Uploaded statement")
			fmt.Fprintln(cmd.OutOrStdout(), uri)
			return nil
		},
	}

	cmd.Flags().StringVar(&bucket, "bucket", "", "destination bucket (required)")
	_ = cmd.MarkFlagRequired("bucket")
	cmd.Flags().StringVar(&object, "object", "", "object name (default uploads/YYYY/MM/DD/<file>)")

	return cmd
}
