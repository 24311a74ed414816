package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/dvloznov/statement-pipeline/internal/api"
	"github.com/dvloznov/statement-pipeline/internal/domain"
	"github.com/dvloznov/statement-pipeline/internal/jobs"
	"github.com/dvloznov/statement-pipeline/internal/jobs/inmemory"
	"github.com/dvloznov/statement-pipeline/internal/logger"
	"github.com/dvloznov/statement-pipeline/internal/watch"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var (
		addr          string
		watchDir      string
		watchSchedule string
		po            processorOptions
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and job workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a, err := newApp(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer a.Close()
			log := a.log

			// Results are always persisted so GET /api/documents can serve them.
			po.persist = true
			proc, err := a.processor(ctx, po)
			if err != nil {
				return err
			}
			store, err := a.artifactStore(ctx)
			if err != nil {
				return err
			}

			// Initialize job infrastructure
			jobStore := inmemory.NewStore()
			jobQueue := inmemory.NewQueue(jobStore, inmemory.QueueOptions{
				BufferSize: a.cfg.Batch.QueueSize,
				Workers:    a.cfg.Batch.Workers,
				MaxRetries: a.cfg.Batch.MaxRetries,
				Metrics:    a.metrics,
			})

			workerCtx, cancelWorker := context.WithCancel(context.WithoutCancel(ctx))
			defer cancelWorker()

			handler := statementHandler(a.reader(ctx, nil), proc, func(job *jobs.ProcessStatementJob, doc *domain.CleanedStatementDocument, err error) {
				if err != nil {
					return
				}
				jobLog := logger.FromContext(workerCtx)
				jobLog.Info().
					Str("job_id", job.JobID).
					Str("document_id", doc.DocumentID).
					Bool("balance_check_passed", doc.BalanceCheckPassed).
					Msg("Statement processed")
			})
			if err := jobQueue.Start(workerCtx, handler); err != nil {
				return err
			}
			log.Info().Int("workers", a.cfg.Batch.Workers).Msg("Job workers started")

			var scheduler *cron.Cron
			if watchDir != "" {
				scheduler, err = watch.New(watchDir, jobQueue).Schedule(workerCtx, watchSchedule)
				if err != nil {
					return err
				}
			}

			server := api.NewServer(addr, api.NewRouter(api.Deps{
				Publisher: jobQueue,
				Jobs:      jobStore,
				Documents: store,
				Metrics:   a.metrics,
			}, log))

			serverErr := make(chan error, 1)
			go func() {
				log.Info().Str("addr", addr).Msg("Starting API server")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
				close(serverErr)
			}()

			select {
			case <-ctx.Done():
				log.Info().Msg("Shutting down server...")
			case err := <-serverErr:
				if err != nil {
					return err
				}
			}

			// Graceful shutdown
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Server forced to shutdown")
			}

			if scheduler != nil {
				<-scheduler.Stop().Done()
			}

			// Stop accepting jobs, let in-flight ones finish, then cancel the rest.
			if err := jobQueue.Stop(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Error stopping job queue")
			}
			cancelWorker()

			log.Info().Msg("Server exited")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address")
	cmd.Flags().StringVar(&watchDir, "watch-dir", "", "inbox directory scanned for new PDFs")
	cmd.Flags().StringVar(&watchSchedule, "watch-schedule", watch.DefaultSchedule, "cron schedule for inbox scans")
	cmd.Flags().BoolVar(&po.publishBQ, "publish-bq", false, "save documents and parsing runs to BigQuery")
	cmd.Flags().BoolVar(&po.maskPII, "mask-pii", false, "mask account numbers, IBANs and card numbers")

	return cmd
}
