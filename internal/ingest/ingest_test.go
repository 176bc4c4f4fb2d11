package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/cv-extractor/internal/common"
	"github.com/joseph-ayodele/cv-extractor/internal/entity"
	"github.com/joseph-ayodele/cv-extractor/internal/repository"
)

type recordingQueue struct {
	mu   sync.Mutex
	refs []string
}

func (q *recordingQueue) AddJob(_ context.Context, userID, ref string) (*entity.EnqueueResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.refs = append(q.refs, ref)
	return &entity.EnqueueResult{JobID: "job-" + ref, Position: len(q.refs), EstimatedWaitMinutes: 2 * len(q.refs)}, nil
}

func (q *recordingQueue) Refs() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.refs...)
}

func newTestIngestor(t *testing.T) (*FSIngestor, *recordingQueue) {
	t.Helper()
	db, err := repository.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "ingest.db"), nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	q := &recordingQueue{}
	return NewFSIngestor(repository.NewSourceRepository(db, nil), q, nil), q
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestIngestPath(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ing, q := newTestIngestor(t)

	cv := filepath.Join(dir, "jane.txt")
	writeFile(t, cv, "Jane Doe\nStaff Engineer")

	first, err := ing.IngestPath(ctx, "u1", cv)
	require.NoError(t, err)
	assert.False(t, first.Deduplicated)
	assert.NotEmpty(t, first.SourceRef)
	assert.Equal(t, repository.HashText("Jane Doe\nStaff Engineer"), first.HashHex)
	assert.Equal(t, "job-"+first.SourceRef, first.JobID)

	again, err := ing.IngestPath(ctx, "u1", cv)
	require.NoError(t, err)
	assert.True(t, again.Deduplicated)
	assert.Equal(t, first.SourceRef, again.SourceRef)
	assert.Empty(t, again.JobID, "duplicate content is not queued twice")

	other, err := ing.IngestPath(ctx, "u2", cv)
	require.NoError(t, err)
	assert.False(t, other.Deduplicated, "dedup is per user")

	assert.Len(t, q.Refs(), 2)
}

func TestIngestPath_Rejects(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ing, _ := newTestIngestor(t)

	writeFile(t, filepath.Join(dir, "scan.pdf"), "%PDF-1.7")
	writeFile(t, filepath.Join(dir, "blank.txt"), " \n\t")
	writeFile(t, filepath.Join(dir, "ok.txt"), "Jane Doe")

	tests := []struct {
		name   string
		userID string
		path   string
		target error
	}{
		{"unsupported extension", "u1", filepath.Join(dir, "scan.pdf"), common.ErrInvalidInput},
		{"empty text", "u1", filepath.Join(dir, "blank.txt"), common.ErrInvalidInput},
		{"missing file", "u1", filepath.Join(dir, "nope.txt"), common.ErrNotFound},
		{"missing user", "", filepath.Join(dir, "ok.txt"), common.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ing.IngestPath(ctx, tt.userID, tt.path)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestIngestDirectory(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	ing, q := newTestIngestor(t)

	writeFile(t, filepath.Join(root, "a.txt"), "Alice Example")
	writeFile(t, filepath.Join(root, "nested", "b.md"), "# Bob Example")
	writeFile(t, filepath.Join(root, "nested", "copy-of-a.TXT"), "Alice Example")
	writeFile(t, filepath.Join(root, "photo.png"), "not text")
	writeFile(t, filepath.Join(root, ".drafts", "c.txt"), "Carol Example")
	require.NoError(t, os.WriteFile(filepath.Join(root, "bad.txt"), []byte{0xff, 0xfe, 0x00}, 0o644))

	results, stats, err := ing.IngestDirectory(ctx, "u1", root, true)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), stats.Matched)
	assert.Equal(t, uint32(3), stats.Succeeded)
	assert.Equal(t, uint32(1), stats.Deduplicated)
	assert.Equal(t, uint32(2), stats.Enqueued)
	assert.Equal(t, uint32(1), stats.Failed)
	assert.Len(t, results, 4)
	assert.Len(t, q.Refs(), 2)

	_, _, err = ing.IngestDirectory(ctx, "u1", " ", true)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestExtHelpers(t *testing.T) {
	assert.True(t, AllowedExt(".TXT", nil))
	assert.False(t, AllowedExt("pdf", nil))
	custom := ExtSet([]string{" .PDF", "", "txt"})
	assert.True(t, AllowedExt("pdf", custom))
	assert.Nil(t, ExtSet(nil))

	assert.True(t, IsHidden("/a/.git"))
	assert.False(t, IsHidden("."))
	assert.False(t, IsHidden("/a/b.txt"))
}

func TestWatch_IngestsNewFiles(t *testing.T) {
	root := t.TempDir()
	ing, q := newTestIngestor(t)
	writeFile(t, filepath.Join(root, "existing.txt"), "Existing Person")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, ing, "u1", WatchConfig{Roots: []string{root}, InitialScan: true, Debounce: 20 * time.Millisecond})
	}()

	require.Eventually(t, func() bool { return len(q.Refs()) == 1 }, 3*time.Second, 10*time.Millisecond)

	writeFile(t, filepath.Join(root, "fresh.txt"), "Fresh Person")
	writeFile(t, filepath.Join(root, "ignored.png"), "binary")
	require.Eventually(t, func() bool { return len(q.Refs()) == 2 }, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestStartWatcher_NoRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{})
	assert.Error(t, err)
}
