package reconcile

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/cv-extractor/constants"
	"github.com/joseph-ayodele/cv-extractor/internal/common"
	"github.com/joseph-ayodele/cv-extractor/internal/entity"
)

const bullet = "• "

// ToText renders one section of a profile as editable plain text: one
// paragraph per entry, bullet lines for achievements and labelled lines
// for the remaining fields.
func ToText(section constants.Section, p *entity.ExtractedProfile) (string, error) {
	if p == nil {
		p = &entity.ExtractedProfile{}
	}
	var blocks []string
	switch section {
	case constants.SectionExperience:
		for _, e := range p.Experience {
			blocks = append(blocks, renderExperience(e))
		}
	case constants.SectionEducation:
		for _, e := range p.Education {
			blocks = append(blocks, renderEducation(e))
		}
	case constants.SectionSkills:
		return renderSkills(p.Skills), nil
	case constants.SectionProjects:
		for _, pr := range p.Projects {
			blocks = append(blocks, renderProject(pr))
		}
	case constants.SectionCertifications:
		for _, c := range p.Certifications {
			blocks = append(blocks, renderCertification(c))
		}
	default:
		return "", fmt.Errorf("unknown section %q: %w", section, common.ErrInvalidInput)
	}
	return strings.Join(blocks, "\n\n"), nil
}

func experienceHeader(e entity.Experience) string {
	return joinNonEmpty(" | ", joinNonEmpty(" at ", e.Title, e.Company), dateRange(e.StartDate, e.EndDate))
}

func educationHeader(e entity.Education) string {
	return joinNonEmpty(" | ", joinNonEmpty(" at ", e.Degree, e.Institution), e.GraduationDate)
}

func renderExperience(e entity.Experience) string {
	lines := []string{experienceHeader(e)}
	if e.Location != "" {
		lines = append(lines, labelLocation+": "+e.Location)
	}
	if e.Description != "" {
		lines = append(lines, e.Description)
	}
	for _, a := range e.Achievements {
		lines = append(lines, bullet+a)
	}
	return strings.Join(lines, "\n")
}

func renderEducation(e entity.Education) string {
	lines := []string{educationHeader(e)}
	if e.Location != "" {
		lines = append(lines, labelLocation+": "+e.Location)
	}
	if e.GPA != "" {
		lines = append(lines, labelGPA+": "+e.GPA)
	}
	for _, a := range e.Achievements {
		lines = append(lines, bullet+a)
	}
	return strings.Join(lines, "\n")
}

func renderSkills(s entity.Skills) string {
	return strings.Join([]string{
		labelTechnical + ": " + strings.Join(s.Technical, ", "),
		labelSoft + ": " + strings.Join(s.Soft, ", "),
		labelLanguages + ": " + strings.Join(s.Languages, ", "),
	}, "\n")
}

func renderProject(p entity.Project) string {
	lines := []string{p.Name}
	if p.Description != "" {
		lines = append(lines, p.Description)
	}
	if len(p.Technologies) > 0 {
		lines = append(lines, labelTechnologies+": "+strings.Join(p.Technologies, ", "))
	}
	if p.URL != "" {
		lines = append(lines, labelURL+": "+p.URL)
	}
	return strings.Join(lines, "\n")
}

func renderCertification(c entity.Certification) string {
	lines := []string{c.Name}
	if c.Issuer != "" {
		lines = append(lines, labelIssuer+": "+c.Issuer)
	}
	if c.Date != "" {
		lines = append(lines, labelDate+": "+c.Date)
	}
	if c.URL != "" {
		lines = append(lines, labelURL+": "+c.URL)
	}
	return strings.Join(lines, "\n")
}

func dateRange(start, end string) string {
	return joinNonEmpty(" – ", start, end)
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
