package session

import (
	"strings"

	"github.com/joseph-ayodele/cv-extractor/internal/entity"
)

const (
	maxRecentCompanies = 3
	maxTopSkills       = 5
)

// DeriveFacts projects completed phase results onto the facts later
// prompts rely on. Results may arrive in any order; nil entries are skipped.
func DeriveFacts(results ...entity.PhaseResult) entity.KnownFacts {
	var f entity.KnownFacts
	for _, r := range results {
		switch v := r.(type) {
		case *entity.BasicInfo:
			if v == nil {
				continue
			}
			f.Name = v.Name
			f.CurrentTitle = v.CurrentTitle
			f.Profession = v.Profession
			if f.Profession == "" {
				f.Profession = v.CurrentTitle
			}
			f.ExperienceLevel = v.ExperienceLevel
			f.Location = v.Location
		case *entity.ProfessionalInfo:
			if v == nil {
				continue
			}
			f.RecentCompanies = nil
			for _, e := range v.Experience {
				if e.Company == "" || containsFold(f.RecentCompanies, e.Company) {
					continue
				}
				f.RecentCompanies = append(f.RecentCompanies, e.Company)
				if len(f.RecentCompanies) == maxRecentCompanies {
					break
				}
			}
			f.TopSkills = headN(v.Skills.Technical, maxTopSkills)
			f.HighestDegree = ""
			if len(v.Education) > 0 {
				f.HighestDegree = v.Education[0].Degree
			}
		case *entity.AdditionalInfo:
			if v == nil {
				continue
			}
			f.ProjectNames = nil
			for _, p := range v.Projects {
				f.ProjectNames = append(f.ProjectNames, p.Name)
			}
			f.CertificationNames = nil
			for _, c := range v.Certifications {
				f.CertificationNames = append(f.CertificationNames, c.Name)
			}
		}
	}
	return f
}

// AssembleProfile merges phase results into one profile. A missing phase
// leaves its fields at their empty defaults.
func AssembleProfile(results ...entity.PhaseResult) *entity.ExtractedProfile {
	p := &entity.ExtractedProfile{}
	for _, r := range results {
		switch v := r.(type) {
		case *entity.BasicInfo:
			if v != nil {
				p.PersonalInfo = v.PersonalInfo
			}
		case *entity.ProfessionalInfo:
			if v != nil {
				p.Experience = v.Experience
				p.Education = v.Education
				p.Skills = v.Skills
			}
		case *entity.AdditionalInfo:
			if v != nil {
				p.Projects = v.Projects
				p.Certifications = v.Certifications
				p.Awards = v.Awards
				p.Publications = v.Publications
				p.Volunteer = v.Volunteer
			}
		}
	}
	return p.Clone()
}

func headN(list []string, n int) []string {
	if len(list) <= n {
		return append([]string(nil), list...)
	}
	return append([]string(nil), list[:n]...)
}

func containsFold(list []string, s string) bool {
	for _, x := range list {
		if strings.EqualFold(x, s) {
			return true
		}
	}
	return false
}
