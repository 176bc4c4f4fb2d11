package export

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/cv-extractor/internal/common"
	"github.com/joseph-ayodele/cv-extractor/internal/entity"
	"github.com/joseph-ayodele/cv-extractor/internal/repository"
)

func profile() *entity.ExtractedProfile {
	return (&entity.ExtractedProfile{
		PersonalInfo: entity.PersonalInfo{Name: "Jane Doe", Email: "jane@example.com"},
		Experience: []entity.Experience{
			{Title: "Staff Engineer", Company: "Acme", StartDate: "2021", EndDate: "Present", Achievements: []string{"a", "b"}},
		},
		Skills:   entity.Skills{Technical: []string{"Go", "SQL"}, Languages: []string{"English"}},
		Projects: []entity.Project{{Name: "cv-extractor", Technologies: []string{"Go"}}},
	}).Normalize()
}

func newService(t *testing.T) (*Service, repository.JobRepository) {
	t.Helper()
	db, err := repository.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "export.db"), nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	jobs := repository.NewJobRepository(db, nil)
	return NewService(jobs, nil), jobs
}

func TestExportProfileXLSX(t *testing.T) {
	svc, _ := newService(t)
	b, err := svc.ExportProfileXLSX(context.Background(), profile())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetProfile, SheetExperience, SheetEducation, SheetSkills, SheetProjects, SheetCertifications}, f.GetSheetList())

	rows, err := f.GetRows(SheetProfile)
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Jane Doe"}, rows[1])

	rows, err = f.GetRows(SheetExperience)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Staff Engineer", rows[1][0])
	assert.Equal(t, "a\nb", rows[1][6])

	rows, err = f.GetRows(SheetSkills)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Kind", "Skill"}, {"Technical", "Go"}, {"Technical", "SQL"}, {"Languages", "English"}}, rows)

	_, err = svc.ExportProfileXLSX(context.Background(), nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestExportJobXLSX(t *testing.T) {
	ctx := context.Background()
	svc, jobs := newService(t)
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	done, err := jobs.Create(ctx, "u1", "ref-a", t0)
	require.NoError(t, err)
	queued, err := jobs.Create(ctx, "u1", "ref-b", t0.Add(time.Second))
	require.NoError(t, err)
	_, err = jobs.ClaimNext(ctx, t0.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, jobs.Complete(ctx, done.ID, profile(), t0.Add(2*time.Minute), 60))

	b, err := svc.ExportJobXLSX(ctx, done.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, b)

	_, err = svc.ExportJobXLSX(ctx, queued.ID)
	assert.ErrorIs(t, err, common.ErrQueueState)

	_, err = svc.ExportJobXLSX(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
	assert.Equal(t, "é", truncate("éa", 1))
}
