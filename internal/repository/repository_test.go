package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/cv-extractor/constants"
	"github.com/joseph-ayodele/cv-extractor/internal/common"
	"github.com/joseph-ayodele/cv-extractor/internal/entity"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestJobs_CreateAssignsFIFOPositions(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(openTestDB(t), nil)

	a, err := repo.Create(ctx, "u1", "ref-a", t0)
	require.NoError(t, err)
	b, err := repo.Create(ctx, "u1", "ref-b", t0.Add(time.Second))
	require.NoError(t, err)
	c, err := repo.Create(ctx, "u2", "ref-c", t0.Add(2*time.Second))
	require.NoError(t, err)

	assert.Equal(t, 1, a.Position)
	assert.Equal(t, 2, b.Position)
	assert.Equal(t, 3, c.Position)

	ahead, err := repo.CountQueuedBefore(ctx, c.CreatedAt, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, ahead)

	got, err := repo.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusQueued, got.Status)
	assert.True(t, got.CreatedAt.Equal(b.CreatedAt))
	assert.Nil(t, got.StartedAt)
}

func TestJobs_ClaimCompleteAndRecompute(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(openTestDB(t), nil)

	a, _ := repo.Create(ctx, "u1", "ref-a", t0)
	b, _ := repo.Create(ctx, "u1", "ref-b", t0.Add(time.Second))

	claimed, err := repo.ClaimNext(ctx, t0.Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, a.ID, claimed.ID)
	assert.Equal(t, constants.JobStatusProcessing, claimed.Status)
	require.NotNil(t, claimed.StartedAt)

	require.NoError(t, repo.RecomputePositions(ctx))
	got, err := repo.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Position)

	profile := (&entity.ExtractedProfile{PersonalInfo: entity.PersonalInfo{Name: "Ada Lovelace"}}).Normalize()
	require.NoError(t, repo.Complete(ctx, a.ID, profile, t0.Add(2*time.Minute), 60))

	done, err := repo.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusCompleted, done.Status)
	require.NotNil(t, done.StructuredData)
	assert.Equal(t, "Ada Lovelace", done.StructuredData.PersonalInfo.Name)
	require.NotNil(t, done.ProcessingTimeSeconds)
	assert.InDelta(t, 60, *done.ProcessingTimeSeconds, 0.001)

	// completing twice is an illegal transition
	err = repo.Complete(ctx, a.ID, profile, t0.Add(3*time.Minute), 1)
	assert.ErrorIs(t, err, common.ErrQueueState)
}

func TestJobs_ClaimEmptyQueue(t *testing.T) {
	repo := NewJobRepository(openTestDB(t), nil)
	claimed, err := repo.ClaimNext(context.Background(), t0)
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestJobs_Cancel(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(openTestDB(t), nil)
	a, _ := repo.Create(ctx, "owner", "ref-a", t0)
	b, _ := repo.Create(ctx, "owner", "ref-b", t0.Add(time.Second))

	tests := []struct {
		name   string
		id     string
		userID string
		want   bool
	}{
		{"wrong owner", b.ID, "intruder", false},
		{"unknown job", "missing", "owner", false},
		{"queued job", b.ID, "owner", true},
		{"already cancelled", b.ID, "owner", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := repo.Cancel(ctx, tt.id, tt.userID, t0.Add(time.Minute))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}

	_, err := repo.ClaimNext(ctx, t0.Add(time.Minute))
	require.NoError(t, err)
	ok, err := repo.Cancel(ctx, a.ID, "owner", t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok, "processing jobs cannot be cancelled")
}

func TestJobs_StatsCleanupAndStale(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(openTestDB(t), nil)

	a, _ := repo.Create(ctx, "u", "a", t0)
	b, _ := repo.Create(ctx, "u", "b", t0.Add(time.Second))
	c, _ := repo.Create(ctx, "u", "c", t0.Add(2*time.Second))
	_, _ = repo.Create(ctx, "u", "d", t0.Add(3*time.Second))

	_, _ = repo.ClaimNext(ctx, t0.Add(time.Minute))
	require.NoError(t, repo.Complete(ctx, a.ID, (&entity.ExtractedProfile{}).Normalize(), t0.Add(2*time.Minute), 30))
	_, _ = repo.ClaimNext(ctx, t0.Add(2*time.Minute))
	require.NoError(t, repo.Complete(ctx, b.ID, (&entity.ExtractedProfile{}).Normalize(), t0.Add(3*time.Minute), 90))
	_, _ = repo.ClaimNext(ctx, t0.Add(3*time.Minute))

	stats, err := repo.Stats(ctx, t0.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Queued)
	assert.Equal(t, 1, stats.Processing)
	assert.Equal(t, 2, stats.Completed)
	assert.InDelta(t, 60, stats.AvgProcessingTimeSeconds, 0.001)

	n, err := repo.FailStale(ctx, "worker restarted", t0.Add(4*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	stale, err := repo.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusFailed, stale.Status)
	require.NotNil(t, stale.ErrorMessage)
	assert.Equal(t, "worker restarted", *stale.ErrorMessage)

	deleted, err := repo.DeleteFinishedBefore(ctx, t0.Add(150*time.Second))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
	_, err = repo.Get(ctx, a.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestJobs_StatsWindowOnlyBoundsTerminalJobs(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(openTestDB(t), nil)

	a, _ := repo.Create(ctx, "u", "a", t0)
	_, _ = repo.Create(ctx, "u", "b", t0.Add(time.Second))
	_, _ = repo.Create(ctx, "u", "c", t0.Add(2*time.Second))

	_, _ = repo.ClaimNext(ctx, t0.Add(time.Minute))
	require.NoError(t, repo.Complete(ctx, a.ID, (&entity.ExtractedProfile{}).Normalize(), t0.Add(2*time.Minute), 30))
	_, _ = repo.ClaimNext(ctx, t0.Add(2*time.Minute))

	stats, err := repo.Stats(ctx, t0.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Queued, "old queued jobs stay visible")
	assert.Equal(t, 1, stats.Processing)
	assert.Zero(t, stats.Completed)
	assert.Zero(t, stats.AvgProcessingTimeSeconds)
}

func TestJobs_ListByUserNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(openTestDB(t), nil)
	first, _ := repo.Create(ctx, "u", "a", t0)
	second, _ := repo.Create(ctx, "u", "b", t0.Add(time.Second))
	_, _ = repo.Create(ctx, "other", "c", t0.Add(2*time.Second))

	jobs, err := repo.ListByUser(ctx, "u")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, second.ID, jobs[0].ID)
	assert.Equal(t, first.ID, jobs[1].ID)
}

func TestSources_UpsertByHash(t *testing.T) {
	ctx := context.Background()
	repo := NewSourceRepository(openTestDB(t), nil)

	src, dedup, err := repo.UpsertByHash(ctx, "u", "cv.txt", "Jane Doe\nEngineer", t0)
	require.NoError(t, err)
	assert.False(t, dedup)

	again, dedup, err := repo.UpsertByHash(ctx, "u", "copy.txt", "  Jane Doe\nEngineer\n", t0)
	require.NoError(t, err)
	assert.True(t, dedup)
	assert.Equal(t, src.Ref, again.Ref)

	_, dedup, err = repo.UpsertByHash(ctx, "someone-else", "cv.txt", "Jane Doe\nEngineer", t0)
	require.NoError(t, err)
	assert.False(t, dedup)

	text, err := repo.Text(ctx, src.Ref)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe\nEngineer", text)

	_, err = repo.Text(ctx, "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSessions_AppendAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(openTestDB(t), nil)

	s := &entity.ProcessingSession{
		ID:          "s1",
		UserID:      "u",
		CreatedAt:   t0,
		PreviewText: "Jane",
		Metadata:    entity.SessionMetadata{InputLength: 4, ProcessorVersion: constants.ProcessorVersion},
	}
	require.NoError(t, repo.Create(ctx, s))

	basic := &entity.BasicInfo{PersonalInfo: entity.PersonalInfo{Name: "Jane Doe"}, Profession: "Engineering"}
	idx, err := repo.AppendStep(ctx, "s1", entity.StepResult{
		StepName: constants.StepBasicInfo, Data: basic, Confidence: 0.5,
		Metadata: entity.StepMetadata{Method: constants.MethodLLM, Strategy: "verbatim"}, Timestamp: t0,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	prof := (&entity.ProfessionalInfo{Experience: []entity.Experience{{Title: "Engineer", Company: "Acme"}}}).Normalize()
	idx, err = repo.AppendStep(ctx, "s1", entity.StepResult{
		StepName: constants.StepProfessional, Data: prof, Confidence: 0.4,
		Metadata: entity.StepMetadata{Method: constants.MethodLLM}, Timestamp: t0.Add(time.Second),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, s.Metadata, got.Metadata)
	require.Len(t, got.Steps, 2)
	assert.Equal(t, constants.StepBasicInfo, got.Steps[0].StepName)
	assert.Equal(t, "Jane Doe", got.Steps[0].Data.(*entity.BasicInfo).Name)
	assert.Equal(t, 1, got.Steps[1].Metadata.StepIndex)
	assert.Equal(t, "Acme", got.Steps[1].Data.(*entity.ProfessionalInfo).Experience[0].Company)

	_, err = repo.AppendStep(ctx, "missing", entity.StepResult{StepName: constants.StepBasicInfo, Data: basic, Timestamp: t0})
	assert.ErrorIs(t, err, common.ErrSessionNotFound)

	require.NoError(t, repo.Delete(ctx, "s1"))
	_, err = repo.Get(ctx, "s1")
	assert.ErrorIs(t, err, common.ErrSessionNotFound)
}

func TestSessions_DeleteBefore(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(openTestDB(t), nil)
	require.NoError(t, repo.Create(ctx, &entity.ProcessingSession{ID: "old", UserID: "u", CreatedAt: t0}))
	require.NoError(t, repo.Create(ctx, &entity.ProcessingSession{ID: "new", UserID: "u", CreatedAt: t0.Add(time.Hour)}))

	n, err := repo.DeleteBefore(ctx, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = repo.Get(ctx, "new")
	assert.NoError(t, err)
}
