package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dvloznov/statement-pipeline/internal/domain"
	"github.com/dvloznov/statement-pipeline/internal/jobs"
	"github.com/dvloznov/statement-pipeline/internal/jobs/inmemory"
	"github.com/dvloznov/statement-pipeline/internal/logger"
	"github.com/dvloznov/statement-pipeline/internal/report"
	"github.com/dvloznov/statement-pipeline/internal/source"
)

// errAllFailed makes the process command exit non-zero.
var errAllFailed = errors.New("every input failed")

type documentProcessor interface {
	Process(ctx context.Context, filename string, pdf []byte) (*domain.CleanedStatementDocument, error)
}

type inputReader interface {
	Read(ctx context.Context, ref string) (*source.Input, error)
}

// outcomeFunc observes every processing attempt of a job.
type outcomeFunc func(job *jobs.ProcessStatementJob, doc *domain.CleanedStatementDocument, err error)

// statementHandler processes one job. Uploaded jobs carry their bytes; other
// jobs are read from their Source reference.
func statementHandler(reader inputReader, proc documentProcessor, onDone outcomeFunc) jobs.JobHandler {
	return func(ctx context.Context, job *jobs.ProcessStatementJob) error {
		data, filename := job.Content, job.Filename
		if len(data) == 0 {
			in, err := reader.Read(ctx, job.Source)
			if err != nil {
				if onDone != nil {
					onDone(job, nil, err)
				}
				return err
			}
			data, filename = in.Data, in.Filename
		}

		doc, err := proc.Process(ctx, filename, data)
		if err == nil {
			job.DocumentID = doc.DocumentID
		}
		if onDone != nil {
			onDone(job, doc, err)
		}
		return err
	}
}

// runBatch processes refs on a worker pool and returns one report line per
// ref, in input order, plus the number of failures.
func runBatch(ctx context.Context, refs []string, reader inputReader, proc documentProcessor, opts inmemory.QueueOptions) ([]any, int, error) {
	log := logger.FromContext(ctx)

	queue := inmemory.NewQueue(inmemory.NewStore(), opts)
	defer queue.Close()

	ids := make([]string, len(refs))
	byID := make(map[string]string, len(refs))
	for i, ref := range refs {
		ids[i] = uuid.New().String()
		byID[ids[i]] = ref
	}

	var mu sync.Mutex
	lines := make(map[string]any, len(refs))
	onDone := func(job *jobs.ProcessStatementJob, doc *domain.CleanedStatementDocument, err error) {
		ref := byID[job.JobID]
		var line any
		if err != nil {
			line = report.NewFailure(ref, err)
		} else {
			line = report.NewSummary(ref, doc)
		}
		mu.Lock()
		lines[job.JobID] = line
		mu.Unlock()
	}

	if err := queue.Start(ctx, statementHandler(reader, proc, onDone)); err != nil {
		return nil, 0, fmt.Errorf("runBatch: starting workers: %w", err)
	}

	for i, ref := range refs {
		job := &jobs.ProcessStatementJob{JobID: ids[i], Source: ref}
		if err := queue.PublishProcessStatement(ctx, job); err != nil {
			return nil, 0, fmt.Errorf("runBatch: queueing %s: %w", ref, err)
		}
	}

	drainErr := queue.Drain(ctx)
	if drainErr != nil {
		log.Warn().Err(drainErr).Msg("Batch interrupted before every file finished")
	}

	mu.Lock()
	defer mu.Unlock()

	out := make([]any, len(refs))
	failed := 0
	for i, id := range ids {
		line, ok := lines[id]
		if !ok {
			line = report.NewFailure(refs[i], fmt.Errorf("not processed: %w", errOrCanceled(drainErr)))
		}
		if _, isFailure := line.(report.Failure); isFailure {
			failed++
		}
		out[i] = line
	}
	return out, failed, nil
}

func errOrCanceled(err error) error {
	if err == nil {
		return context.Canceled
	}
	return err
}
