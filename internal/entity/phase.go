package entity

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/cv-extractor/constants"
)

// PhaseResult is the typed payload produced by one extraction phase.
type PhaseResult interface {
	StepName() string
	// Signals lists one flag per expected field, true when it was filled.
	Signals() []bool
}

// BasicInfo is the output of the basic_info phase.
type BasicInfo struct {
	PersonalInfo
	Profession      string `json:"profession"`
	ExperienceLevel string `json:"experienceLevel"`
}

// ProfessionalInfo is the output of the professional phase.
type ProfessionalInfo struct {
	Experience []Experience `json:"experience"`
	Education  []Education  `json:"education"`
	Skills     Skills       `json:"skills"`
}

// AdditionalInfo is the output of the additional phase.
type AdditionalInfo struct {
	Projects       []Project       `json:"projects"`
	Certifications []Certification `json:"certifications"`
	Awards         []string        `json:"awards"`
	Publications   []string        `json:"publications"`
	Volunteer      []string        `json:"volunteer"`
}

func (*BasicInfo) StepName() string        { return constants.StepBasicInfo }
func (*ProfessionalInfo) StepName() string { return constants.StepProfessional }
func (*AdditionalInfo) StepName() string   { return constants.StepAdditional }

func (b *BasicInfo) Signals() []bool {
	return []bool{
		filled(b.Name), filled(b.Email), filled(b.Phone), filled(b.Location),
		filled(b.CurrentTitle), filled(b.Summary), filled(b.Profession),
	}
}

func (p *ProfessionalInfo) Signals() []bool {
	complete := 0
	for _, e := range p.Experience {
		if filled(e.Title) && filled(e.Company) && (filled(e.StartDate) || filled(e.EndDate)) {
			complete++
		}
	}
	return []bool{
		len(p.Experience) > 0,
		len(p.Experience) > 0 && complete == len(p.Experience),
		len(p.Education) > 0,
		len(p.Skills.Technical) > 0,
		len(p.Skills.Soft) > 0,
		len(p.Skills.Languages) > 0,
	}
}

func (a *AdditionalInfo) Signals() []bool {
	return []bool{
		len(a.Projects) > 0, len(a.Certifications) > 0,
		len(a.Awards) > 0, len(a.Publications) > 0, len(a.Volunteer) > 0,
	}
}

func filled(s string) bool { return strings.TrimSpace(s) != "" }

// Normalize replaces nil collections with empty ones.
func (p *ProfessionalInfo) Normalize() *ProfessionalInfo {
	prof := (&ExtractedProfile{Experience: p.Experience, Education: p.Education, Skills: p.Skills}).Normalize()
	p.Experience, p.Education, p.Skills = prof.Experience, prof.Education, prof.Skills
	return p
}

// Normalize replaces nil collections with empty ones.
func (a *AdditionalInfo) Normalize() *AdditionalInfo {
	prof := (&ExtractedProfile{
		Projects: a.Projects, Certifications: a.Certifications,
		Awards: a.Awards, Publications: a.Publications, Volunteer: a.Volunteer,
	}).Normalize()
	a.Projects, a.Certifications = prof.Projects, prof.Certifications
	a.Awards, a.Publications, a.Volunteer = prof.Awards, prof.Publications, prof.Volunteer
	return a
}

// DecodePhaseResult turns a stored step payload back into its typed form.
func DecodePhaseResult(step string, data []byte) (PhaseResult, error) {
	var out PhaseResult
	switch step {
	case constants.StepBasicInfo:
		out = &BasicInfo{}
	case constants.StepProfessional:
		out = &ProfessionalInfo{}
	case constants.StepAdditional:
		out = &AdditionalInfo{}
	default:
		return nil, fmt.Errorf("unknown step %q", step)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", step, err)
	}
	return out, nil
}
