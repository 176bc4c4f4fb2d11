package constants

import (
	"strings"
)

// Section names a reconcilable part of an extracted profile.
type Section string

const (
	SectionExperience     Section = "experience"
	SectionEducation      Section = "education"
	SectionSkills         Section = "skills"
	SectionProjects       Section = "projects"
	SectionCertifications Section = "certifications"
)

var allSections = []Section{
	SectionExperience,
	SectionEducation,
	SectionSkills,
	SectionProjects,
	SectionCertifications,
}

func AsStringSlice() []string {
	result := make([]string, len(allSections))
	for i, s := range allSections {
		result[i] = string(s)
	}
	return result
}

func Canonicalize(input string) (Section, bool) {
	if input == "" {
		return "", false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))
	normalized = strings.NewReplacer("_", " ", "-", " ").Replace(normalized)

	// synonyms map
	synonyms := map[string]Section{
		"work experience":       SectionExperience,
		"work history":          SectionExperience,
		"employment":            SectionExperience,
		"employment history":    SectionExperience,
		"professional history":  SectionExperience,
		"jobs":                  SectionExperience,
		"academic background":   SectionEducation,
		"qualifications":        SectionEducation,
		"studies":               SectionEducation,
		"skill":                 SectionSkills,
		"competencies":          SectionSkills,
		"project":               SectionProjects,
		"portfolio":             SectionProjects,
		"certification":         SectionCertifications,
		"certificates":          SectionCertifications,
		"licenses":              SectionCertifications,
		"licenses certificates": SectionCertifications,
	}

	if s, ok := synonyms[normalized]; ok {
		return s, true
	}

	// check if it matches any section string
	for _, s := range allSections {
		if normalized == string(s) {
			return s, true
		}
	}

	return "", false
}
