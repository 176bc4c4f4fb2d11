package llm

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/cv-extractor/internal/entity"
)

var (
	reEmail = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)
	reGPA   = regexp.MustCompile(`^\d+(\.\d+)?(\s*/\s*\d+(\.\d+)?)?$`)
	reDigit = regexp.MustCompile(`\d`)
)

// SanitizeOptionalFields clears optional values that are present but
// malformed, so a single bad field never costs the whole phase. It returns
// the dotted paths it dropped. Required fields are never touched.
func SanitizeOptionalFields(r entity.PhaseResult) []string {
	var dropped []string
	switch v := r.(type) {
	case *entity.BasicInfo:
		if v.Email != "" {
			email := strings.Trim(strings.TrimPrefix(strings.TrimSpace(v.Email), "mailto:"), "<>")
			if reEmail.MatchString(email) {
				v.Email = email
			} else {
				v.Email = ""
				dropped = append(dropped, "email")
			}
		}
		if v.Phone != "" && len(reDigit.FindAllString(v.Phone, -1)) < 7 {
			v.Phone = ""
			dropped = append(dropped, "phone")
		}
	case *entity.ProfessionalInfo:
		for i := range v.Education {
			if g := strings.TrimSpace(v.Education[i].GPA); g != "" && !reGPA.MatchString(g) {
				v.Education[i].GPA = ""
				dropped = append(dropped, "education.gpa")
			}
		}
	case *entity.AdditionalInfo:
		for i := range v.Projects {
			if u, ok := normalizeURL(v.Projects[i].URL); ok {
				v.Projects[i].URL = u
			} else {
				v.Projects[i].URL = ""
				dropped = append(dropped, "projects.url")
			}
		}
		for i := range v.Certifications {
			if u, ok := normalizeURL(v.Certifications[i].URL); ok {
				v.Certifications[i].URL = u
			} else {
				v.Certifications[i].URL = ""
				dropped = append(dropped, "certifications.url")
			}
		}
	}
	return dropped
}

// normalizeURL accepts absolute http(s) URLs and bare hosts such as
// "github.com/x/y". Empty input is valid.
func normalizeURL(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", true
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || !strings.Contains(u.Host, ".") {
		return "", false
	}
	return s, true
}
