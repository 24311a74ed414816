package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-pipeline/internal/jobs"
)

type MockPublisher struct {
	mu   sync.Mutex
	Jobs []*jobs.ProcessStatementJob
}

func (m *MockPublisher) PublishProcessStatement(ctx context.Context, job *jobs.ProcessStatementJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job.JobID = job.Filename
	m.Jobs = append(m.Jobs, job)
	return nil
}

func (m *MockPublisher) Close() error { return nil }

func (m *MockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Jobs)
}

func TestWatcher_Scan(t *testing.T) {
	dir := t.TempDir()
	write := func(name string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o644))
		return path
	}
	a := write("a.pdf")
	write("b.pdf")
	write("notes.txt")

	pub := &MockPublisher{}
	w := New(dir, pub)
	ctx := context.Background()

	n, err := w.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, a, pub.Jobs[0].Source)
	assert.Equal(t, "a.pdf", pub.Jobs[0].Filename)
	assert.Nil(t, pub.Jobs[0].Content)

	n, err = w.Scan(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(a, later, later))
	write("c.pdf")

	n, err = w.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 4, pub.count())
}

func TestWatcher_ScanMissingDir(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), &MockPublisher{}).Scan(context.Background())
	assert.Error(t, err)
}

func TestWatcher_Schedule(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pdf"), []byte("%PDF"), 0o644))

	pub := &MockPublisher{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := New(dir, pub).Schedule(ctx, "@every 1s")
	require.NoError(t, err)
	defer c.Stop()

	assert.Eventually(t, func() bool { return pub.count() == 1 }, 5*time.Second, 50*time.Millisecond)

	_, err = New(dir, pub).Schedule(ctx, "not a schedule")
	assert.Error(t, err)
}
