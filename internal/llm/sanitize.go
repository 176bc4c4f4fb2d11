package llm

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/cv-extractor/internal/entity"
)

// The decoders below accept the shapes models actually return: camelCase
// or snake_case keys, synonyms, sections nested one level down, strings
// where arrays were asked for and the reverse.

var reDateRange = regexp.MustCompile(`(?i)^\s*(.+?)\s*(?:\s-\s|–|—|\sto\s)\s*(.+?)\s*$`)

// DecodeBasicInfo maps a parsed basic_info reply onto its typed form.
func DecodeBasicInfo(m map[string]any) *entity.BasicInfo {
	m = flatten(m, "personalInfo", "personal_info", "basicInfo", "basic_info", "contact", "profile")
	out := &entity.BasicInfo{}
	out.Name = pickString(m, "name", "fullName", "full_name", "candidateName", "candidate_name")
	out.Email = pickString(m, "email", "emailAddress", "email_address", "mail")
	out.Phone = pickString(m, "phone", "phoneNumber", "phone_number", "mobile", "telephone")
	out.Location = pickString(m, "location", "address", "city", "residence")
	out.CurrentTitle = pickString(m, "currentTitle", "current_title", "title", "headline", "jobTitle", "job_title")
	out.Summary = pickString(m, "summary", "professionalSummary", "professional_summary", "objective")
	out.AboutMe = pickString(m, "aboutMe", "about_me", "about", "bio")
	out.Profession = pickString(m, "profession", "field", "occupation", "industry")
	out.ExperienceLevel = normalizeLevel(pickString(m, "experienceLevel", "experience_level", "seniority", "level"))
	return out
}

// DecodeProfessionalInfo maps a parsed professional reply onto its typed form.
func DecodeProfessionalInfo(m map[string]any) *entity.ProfessionalInfo {
	m = flatten(m, "professional", "professionalInfo", "professional_info")
	out := &entity.ProfessionalInfo{}

	for _, o := range asObjects(pick(m, "experience", "workExperience", "work_experience", "employment", "employmentHistory", "jobs", "positions")) {
		e := entity.Experience{
			Title:        pickString(o, "title", "position", "role", "jobTitle", "job_title"),
			Company:      pickString(o, "company", "employer", "organization", "organisation", "companyName"),
			Location:     pickString(o, "location", "city"),
			StartDate:    pickString(o, "startDate", "start_date", "from", "start"),
			EndDate:      pickString(o, "endDate", "end_date", "to", "end"),
			Description:  pickString(o, "description", "summary", "overview"),
			Achievements: asStringSlice(pick(o, "achievements", "highlights", "accomplishments", "bullets", "responsibilities")),
		}
		if e.StartDate == "" && e.EndDate == "" {
			e.StartDate, e.EndDate = splitRange(pickString(o, "dates", "duration", "period", "dateRange", "date_range"))
		}
		if e.Title == "" && e.Company == "" {
			continue
		}
		out.Experience = append(out.Experience, e)
	}

	for _, o := range asObjects(pick(m, "education", "academicBackground", "academic_background", "studies")) {
		ed := entity.Education{
			Degree:         pickString(o, "degree", "qualification", "title", "program"),
			Institution:    pickString(o, "institution", "school", "university", "college"),
			Location:       pickString(o, "location", "city"),
			GraduationDate: pickString(o, "graduationDate", "graduation_date", "endDate", "end_date", "year", "date"),
			GPA:            pickString(o, "gpa", "grade", "GPA"),
			Achievements:   asStringSlice(pick(o, "achievements", "honors", "highlights", "activities")),
		}
		if ed.Degree == "" && ed.Institution == "" {
			continue
		}
		out.Education = append(out.Education, ed)
	}

	out.Skills = decodeSkills(m)
	return out.Normalize()
}

func decodeSkills(m map[string]any) entity.Skills {
	var s entity.Skills
	switch raw := pick(m, "skills", "skillSet", "skill_set").(type) {
	case map[string]any:
		s.Technical = asStringSlice(pick(raw, "technical", "technicalSkills", "technical_skills", "hard", "hardSkills", "tools"))
		s.Soft = asStringSlice(pick(raw, "soft", "softSkills", "soft_skills", "interpersonal"))
		s.Languages = languageNames(pick(raw, "languages", "spokenLanguages", "spoken_languages"))
	case nil:
	default:
		s.Technical = asStringSlice(raw)
	}
	if len(s.Technical) == 0 {
		s.Technical = asStringSlice(pick(m, "technicalSkills", "technical_skills"))
	}
	if len(s.Soft) == 0 {
		s.Soft = asStringSlice(pick(m, "softSkills", "soft_skills"))
	}
	if len(s.Languages) == 0 {
		s.Languages = languageNames(pick(m, "languages", "spokenLanguages", "spoken_languages"))
	}
	return s
}

func languageNames(v any) []string {
	objs := asObjects(v)
	if len(objs) == 0 {
		return asStringSlice(v)
	}
	out := []string{}
	for _, o := range objs {
		name := pickString(o, "language", "name")
		if name == "" {
			continue
		}
		if lvl := pickString(o, "proficiency", "level"); lvl != "" {
			name += " (" + lvl + ")"
		}
		out = append(out, name)
	}
	return out
}

// DecodeAdditionalInfo maps a parsed additional reply onto its typed form.
func DecodeAdditionalInfo(m map[string]any) *entity.AdditionalInfo {
	m = flatten(m, "additional", "additionalInfo", "additional_info")
	out := &entity.AdditionalInfo{}

	for _, o := range asObjects(pick(m, "projects", "personalProjects", "personal_projects", "portfolio")) {
		p := entity.Project{
			Name:         pickString(o, "name", "title", "projectName"),
			Description:  pickString(o, "description", "summary"),
			Technologies: asStringSlice(pick(o, "technologies", "techStack", "tech_stack", "stack", "tools")),
			URL:          pickString(o, "url", "link", "github", "repository"),
		}
		if p.Name == "" {
			continue
		}
		out.Projects = append(out.Projects, p)
	}

	switch raw := pick(m, "certifications", "certificates", "licenses").(type) {
	case []any:
		for _, item := range raw {
			var c entity.Certification
			if o, ok := item.(map[string]any); ok {
				c = entity.Certification{
					Name:   pickString(o, "name", "title", "certification"),
					Issuer: pickString(o, "issuer", "authority", "organization", "issuedBy"),
					Date:   pickString(o, "date", "issueDate", "issue_date", "year", "obtained"),
					URL:    pickString(o, "url", "link", "credentialUrl", "credential_url"),
				}
			} else {
				c.Name = asString(item)
			}
			if c.Name != "" {
				out.Certifications = append(out.Certifications, c)
			}
		}
	case string:
		for _, name := range asStringSlice(raw) {
			out.Certifications = append(out.Certifications, entity.Certification{Name: name})
		}
	}

	out.Awards = describeAll(pick(m, "awards", "honors", "honours"), "title", "issuer", "date")
	out.Publications = describeAll(pick(m, "publications", "papers"), "title", "publisher", "date")
	out.Volunteer = describeAll(pick(m, "volunteer", "volunteering", "volunteerWork", "volunteer_work", "volunteerExperience"), "role", "organization", "date")
	return out.Normalize()
}

// describeAll flattens lists of strings or objects into display lines.
func describeAll(v any, keys ...string) []string {
	out := []string{}
	if items, ok := v.([]any); ok {
		for _, item := range items {
			o, isObj := item.(map[string]any)
			if !isObj {
				if s := asString(item); s != "" {
					out = append(out, s)
				}
				continue
			}
			var parts []string
			fields := append(append([]string{}, keys...), "name", "description")
			for _, k := range fields {
				if s := asString(o[k]); s != "" && !contains(parts, s) {
					parts = append(parts, s)
				}
			}
			if len(parts) > 0 {
				out = append(out, strings.Join(parts, ", "))
			}
		}
		return out
	}
	return asStringSlice(v)
}

// flatten merges the first nested object found under keys into m.
// Top-level values win.
func flatten(m map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		nested, ok := m[k].(map[string]any)
		if !ok {
			continue
		}
		out := make(map[string]any, len(m)+len(nested))
		for nk, nv := range nested {
			out[nk] = nv
		}
		for mk, mv := range m {
			if mk == k {
				continue
			}
			out[mk] = mv
		}
		return out
	}
	return m
}

func splitRange(s string) (start, end string) {
	if s == "" {
		return "", ""
	}
	if mm := reDateRange.FindStringSubmatch(s); mm != nil {
		return mm[1], mm[2]
	}
	return s, ""
}

func normalizeLevel(s string) string {
	l := strings.ToLower(strings.TrimSpace(s))
	switch {
	case l == "":
		return ""
	case strings.Contains(l, "intern"), strings.Contains(l, "entry"), strings.Contains(l, "junior"), strings.Contains(l, "graduate"):
		return "junior"
	case strings.Contains(l, "mid"), strings.Contains(l, "intermediate"):
		return "mid"
	case strings.Contains(l, "principal"), strings.Contains(l, "staff"), strings.Contains(l, "lead"):
		return "lead"
	case strings.Contains(l, "senior"), strings.Contains(l, "sr"):
		return "senior"
	case strings.Contains(l, "exec"), strings.Contains(l, "director"), strings.Contains(l, "chief"), strings.Contains(l, "vp"):
		return "executive"
	}
	return l
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
