package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-pipeline/internal/jobs"
)

func newTestQueue(t *testing.T, opts QueueOptions) (*Queue, *Store) {
	t.Helper()
	store := NewStore()
	opts.Backoff = time.Millisecond
	q := NewQueue(store, opts)
	t.Cleanup(func() { _ = q.Close() })
	return q, store
}

func drain(t *testing.T, q *Queue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Drain(ctx))
}

func TestQueue_ProcessesAllJobs(t *testing.T) {
	q, store := newTestQueue(t, QueueOptions{Workers: 3})
	ctx := context.Background()

	var mu sync.Mutex
	seen := map[string]bool{}
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.ProcessStatementJob) error {
		mu.Lock()
		seen[job.Filename] = true
		mu.Unlock()
		job.DocumentID = "doc-" + job.Filename
		if job.Filename == "bad.pdf" {
			return errors.New("corrupt document")
		}
		return nil
	}))

	var ids []string
	for _, name := range []string{"a.pdf", "bad.pdf", "c.pdf", "d.pdf"} {
		job := &jobs.ProcessStatementJob{Filename: name, Content: []byte("pdf")}
		require.NoError(t, q.PublishProcessStatement(ctx, job))
		assert.NotEmpty(t, job.JobID)
		ids = append(ids, job.JobID)
	}
	drain(t, q)

	assert.Len(t, seen, 4)
	for i, id := range ids {
		job, err := store.GetJob(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, job.Content)
		assert.NotNil(t, job.CompletedAt)
		if i == 1 {
			assert.Equal(t, jobs.JobStatusFailed, job.Status)
			assert.Equal(t, "corrupt document", job.Error)
			continue
		}
		assert.Equal(t, jobs.JobStatusCompleted, job.Status)
		assert.Equal(t, "doc-"+job.Filename, job.DocumentID)
	}

	failed, err := store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "bad.pdf", failed[0].Filename)
}

func TestQueue_Retries(t *testing.T) {
	q, store := newTestQueue(t, QueueOptions{Workers: 1, MaxRetries: 2})
	ctx := context.Background()

	var attempts atomic.Int32
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.ProcessStatementJob) error {
		if attempts.Add(1) < 3 {
			return fmt.Errorf("attempt %d failed", attempts.Load())
		}
		return nil
	}))

	job := &jobs.ProcessStatementJob{Filename: "flaky.pdf"}
	require.NoError(t, q.PublishProcessStatement(ctx, job))
	drain(t, q)

	got, err := store.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusCompleted, got.Status)
	assert.Equal(t, 2, got.RetryCount)
	assert.Empty(t, got.Error)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestQueue_RetriesExhausted(t *testing.T) {
	q, store := newTestQueue(t, QueueOptions{Workers: 1, MaxRetries: 1})
	ctx := context.Background()

	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.ProcessStatementJob) error {
		return errors.New("always fails")
	}))

	job := &jobs.ProcessStatementJob{Filename: "broken.pdf"}
	require.NoError(t, q.PublishProcessStatement(ctx, job))
	drain(t, q)

	got, err := store.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusFailed, got.Status)
	assert.Equal(t, 1, got.RetryCount)
}

func TestQueue_HandlerPanicFailsJob(t *testing.T) {
	q, store := newTestQueue(t, QueueOptions{Workers: 1})
	ctx := context.Background()

	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.ProcessStatementJob) error {
		if job.Filename == "panic.pdf" {
			panic("boom")
		}
		return nil
	}))

	bad := &jobs.ProcessStatementJob{Filename: "panic.pdf"}
	good := &jobs.ProcessStatementJob{Filename: "ok.pdf"}
	require.NoError(t, q.PublishProcessStatement(ctx, bad))
	require.NoError(t, q.PublishProcessStatement(ctx, good))
	drain(t, q)

	got, err := store.GetJob(ctx, bad.JobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusFailed, got.Status)
	assert.Contains(t, got.Error, "panicked")

	got, err = store.GetJob(ctx, good.JobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusCompleted, got.Status)
}

func TestQueue_DrainEmpty(t *testing.T) {
	q, _ := newTestQueue(t, QueueOptions{})
	assert.NoError(t, q.Drain(context.Background()))
}

func TestQueue_DrainHonoursContext(t *testing.T) {
	q, _ := newTestQueue(t, QueueOptions{})
	// No workers started, so the job never finishes.
	require.NoError(t, q.PublishProcessStatement(context.Background(), &jobs.ProcessStatementJob{Filename: "x.pdf"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Drain(ctx), context.DeadlineExceeded)
}

func TestQueue_PublishAfterStop(t *testing.T) {
	q, _ := newTestQueue(t, QueueOptions{})
	require.NoError(t, q.Stop(context.Background()))

	err := q.PublishProcessStatement(context.Background(), &jobs.ProcessStatementJob{Filename: "late.pdf"})
	assert.ErrorIs(t, err, jobs.ErrQueueClosed)
	assert.NoError(t, q.Drain(context.Background()))
}

func TestStore_ListJobs(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		status := jobs.JobStatusCompleted
		if i%2 == 1 {
			status = jobs.JobStatusFailed
		}
		require.NoError(t, store.SaveJob(ctx, &jobs.ProcessStatementJob{
			JobID:      fmt.Sprintf("job-%d", i),
			DocumentID: fmt.Sprintf("doc-%d", i%2),
			Status:     status,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{"all", jobs.JobFilter{}, []string{"job-0", "job-1", "job-2", "job-3", "job-4"}},
		{"by status", jobs.JobFilter{Status: jobs.JobStatusFailed}, []string{"job-1", "job-3"}},
		{"by document", jobs.JobFilter{DocumentID: "doc-0"}, []string{"job-0", "job-2", "job-4"}},
		{"paged", jobs.JobFilter{Offset: 1, Limit: 2}, []string{"job-1", "job-2"}},
		{"offset past end", jobs.JobFilter{Offset: 10}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListJobs(ctx, tt.filter)
			require.NoError(t, err)
			ids := []string{}
			for _, j := range got {
				ids = append(ids, j.JobID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestStore_GetJobNotFound(t *testing.T) {
	_, err := NewStore().GetJob(context.Background(), "missing")
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)

	err = NewStore().UpdateJobStatus(context.Background(), "missing", jobs.JobStatusFailed, "x")
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)
}
