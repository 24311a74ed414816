// Package watch scans an inbox directory on a cron schedule and queues every
// new PDF for processing.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dvloznov/statement-pipeline/internal/jobs"
	"github.com/dvloznov/statement-pipeline/internal/logger"
	"github.com/dvloznov/statement-pipeline/internal/source"
)

// DefaultSchedule is used when no schedule is configured.
const DefaultSchedule = "@every 1m"

// Watcher publishes a job for each PDF in Dir it has not seen yet. A file
// whose modification time changes is queued again.
type Watcher struct {
	dir       string
	publisher jobs.Publisher

	mu   sync.Mutex
	seen map[string]time.Time
}

// New creates a Watcher for dir.
func New(dir string, publisher jobs.Publisher) *Watcher {
	return &Watcher{
		dir:       dir,
		publisher: publisher,
		seen:      make(map[string]time.Time),
	}
}

// Scan queues new or modified PDFs and returns how many were queued.
func (w *Watcher) Scan(ctx context.Context) (int, error) {
	log := logger.FromContext(ctx).With().Str("dir", w.dir).Logger()

	paths, err := source.PDFsIn(w.dir)
	if err != nil {
		return 0, fmt.Errorf("Scan: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	queued := 0
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			log.Warn().Err(err).Str("file", path).Msg("Skipping unreadable file")
			continue
		}
		if prev, ok := w.seen[path]; ok && prev.Equal(info.ModTime()) {
			continue
		}

		job := &jobs.ProcessStatementJob{
			Source:   path,
			Filename: filepath.Base(path),
		}
		if err := w.publisher.PublishProcessStatement(ctx, job); err != nil {
			return queued, fmt.Errorf("Scan: queueing %s: %w", path, err)
		}
		w.seen[path] = info.ModTime()
		queued++
		log.Info().Str("file", path).Str("job_id", job.JobID).Msg("Queued statement from inbox")
	}

	return queued, nil
}

// Schedule runs Scan on the cron spec until ctx is cancelled. The returned
// cron is already started; Stop it to end scanning early.
func (w *Watcher) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	log := logger.FromContext(ctx)

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		if _, err := w.Scan(ctx); err != nil {
			log.Error().Err(err).Msg("Inbox scan failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("Schedule: invalid spec %q: %w", spec, err)
	}

	c.Start()
	log.Info().Str("dir", w.dir).Str("schedule", spec).Msg("Inbox watcher started")

	go func() {
		<-ctx.Done()
		c.Stop()
	}()
	return c, nil
}
