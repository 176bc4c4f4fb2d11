package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/cv-extractor/constants"
	"github.com/joseph-ayodele/cv-extractor/internal/common"
	"github.com/joseph-ayodele/cv-extractor/internal/entity"
	"github.com/joseph-ayodele/cv-extractor/internal/repository"
)

// Sheet names, in workbook order.
const (
	SheetProfile        = "Profile"
	SheetExperience     = "Experience"
	SheetEducation      = "Education"
	SheetSkills         = "Skills"
	SheetProjects       = "Projects"
	SheetCertifications = "Certifications"
)

const maxCellText = 2000

// Service produces XLSX bytes for completed extraction jobs.
type Service struct {
	jobs   repository.JobRepository
	logger *slog.Logger
}

func NewService(jobs repository.JobRepository, logger *slog.Logger) *Service {
	return &Service{jobs: jobs, logger: common.LoggerOrDefault(logger)}
}

// ExportJobXLSX returns a workbook of the structured result of a completed
// job. Jobs that are not completed yield ErrQueueState.
func (s *Service) ExportJobXLSX(ctx context.Context, jobID string) ([]byte, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != constants.JobStatusCompleted || job.StructuredData == nil {
		return nil, fmt.Errorf("job %s is %s: %w", jobID, job.Status, common.ErrQueueState)
	}
	b, err := s.ExportProfileXLSX(ctx, job.StructuredData)
	if err != nil {
		return nil, err
	}
	s.logger.Info("export.job.ok", "job_id", jobID, "user_id", job.UserID, "bytes", len(b))
	return b, nil
}

// ExportProfileXLSX renders a profile as one sheet per section.
func (s *Service) ExportProfileXLSX(_ context.Context, p *entity.ExtractedProfile) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("nil profile: %w", common.ErrInvalidInput)
	}
	start := time.Now()

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("export.xlsx.close_failed", "error", err)
		}
	}()

	w := &workbook{f: f}
	w.sheet(SheetProfile, []string{"Field", "Value"}, []float64{18, 80}, [][]any{
		{"Name", p.PersonalInfo.Name},
		{"Email", p.PersonalInfo.Email},
		{"Phone", p.PersonalInfo.Phone},
		{"Location", p.PersonalInfo.Location},
		{"Current Title", p.PersonalInfo.CurrentTitle},
		{"Summary", truncate(p.PersonalInfo.Summary, maxCellText)},
		{"About", truncate(p.PersonalInfo.AboutMe, maxCellText)},
		{"Awards", strings.Join(p.Awards, "; ")},
		{"Publications", strings.Join(p.Publications, "; ")},
		{"Volunteer", strings.Join(p.Volunteer, "; ")},
	})

	var rows [][]any
	for _, e := range p.Experience {
		rows = append(rows, []any{e.Title, e.Company, e.Location, e.StartDate, e.EndDate,
			truncate(e.Description, maxCellText), strings.Join(e.Achievements, "\n")})
	}
	w.sheet(SheetExperience, []string{"Title", "Company", "Location", "Start", "End", "Description", "Achievements"},
		[]float64{28, 24, 18, 12, 12, 48, 60}, rows)

	rows = nil
	for _, e := range p.Education {
		rows = append(rows, []any{e.Degree, e.Institution, e.Location, e.GraduationDate, e.GPA, strings.Join(e.Achievements, "\n")})
	}
	w.sheet(SheetEducation, []string{"Degree", "Institution", "Location", "Graduation", "GPA", "Achievements"},
		[]float64{30, 30, 18, 12, 8, 48}, rows)

	rows = nil
	for _, k := range []struct {
		kind string
		list []string
	}{
		{"Technical", p.Skills.Technical},
		{"Soft", p.Skills.Soft},
		{"Languages", p.Skills.Languages},
	} {
		for _, v := range k.list {
			rows = append(rows, []any{k.kind, v})
		}
	}
	w.sheet(SheetSkills, []string{"Kind", "Skill"}, []float64{14, 40}, rows)

	rows = nil
	for _, pr := range p.Projects {
		rows = append(rows, []any{pr.Name, truncate(pr.Description, maxCellText), strings.Join(pr.Technologies, ", "), pr.URL})
	}
	w.sheet(SheetProjects, []string{"Name", "Description", "Technologies", "URL"}, []float64{28, 60, 36, 40}, rows)

	rows = nil
	for _, c := range p.Certifications {
		rows = append(rows, []any{c.Name, c.Issuer, c.Date, c.URL})
	}
	w.sheet(SheetCertifications, []string{"Name", "Issuer", "Date", "URL"}, []float64{36, 24, 12, 40}, rows)

	if w.err != nil {
		return nil, fmt.Errorf("xlsx build: %w", w.err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("xlsx build: %w", err)
	}
	idx, _ := f.GetSheetIndex(SheetProfile)
	f.SetActiveSheet(idx)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.xlsx.ok",
		"name", p.PersonalInfo.Name,
		"experience", len(p.Experience),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// workbook keeps the first error so sheet writing reads linearly.
type workbook struct {
	f   *excelize.File
	err error
}

func (w *workbook) sheet(name string, headers []string, widths []float64, rows [][]any) {
	if w.err != nil {
		return
	}
	if _, err := w.f.NewSheet(name); err != nil {
		w.err = err
		return
	}
	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := w.f.SetSheetRow(name, "A1", &header); err != nil {
		w.err = err
		return
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := r
		if err := w.f.SetSheetRow(name, cell, &row); err != nil {
			w.err = err
			return
		}
	}
	for i, width := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := w.f.SetColWidth(name, col, col, width); err != nil {
			w.err = err
			return
		}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
