package main

import (
	"github.com/spf13/cobra"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "statementctl",
		Short: "Extract, validate and publish bank statement PDFs",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "override log format (console, json)")

	rootCmd.AddCommand(
		newProcessCommand(opts),
		newServeCommand(opts),
		newExportCommand(opts),
		newUploadCommand(opts),
		newMigrateCommand(opts),
		newReviewCommand(opts),
		newRunsCommand(opts),
	)

	return rootCmd
}
