package pipeline

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/joseph-ayodele/cv-extractor/constants"
	"github.com/joseph-ayodele/cv-extractor/internal/entity"
)

// Degraded extractors used when the provider cannot be reached. They are
// deliberately shallow.

var (
	reEmail = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	rePhone = regexp.MustCompile(`\+?\d[\d\s().\-]{6,}\d`)
	reURLy  = regexp.MustCompile(`(?i)https?://|www\.|@`)
)

// nameScanLines bounds how far down the text a name is searched for.
const nameScanLines = 10

// HeuristicBasicInfo pulls an e-mail, a phone number and a guessed name
// out of raw CV text.
func HeuristicBasicInfo(text string) *entity.BasicInfo {
	out := &entity.BasicInfo{}
	out.Email = reEmail.FindString(text)
	if m := rePhone.FindString(text); digitCount(m) >= 7 {
		out.Phone = strings.TrimSpace(m)
	}
	out.Name = GuessName(text)
	return out
}

// GuessName returns the first short line of two to four capitalised words
// near the top of the text, or "".
func GuessName(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) > nameScanLines {
		lines = lines[:nameScanLines]
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || len(line) > 60 || reURLy.MatchString(line) {
			continue
		}
		words := strings.Fields(line)
		if len(words) < 2 || len(words) > 4 {
			continue
		}
		ok := true
		for _, w := range words {
			if !looksLikeNamePart(w) {
				ok = false
				break
			}
		}
		if ok {
			return strings.Join(words, " ")
		}
	}
	return ""
}

func looksLikeNamePart(w string) bool {
	rs := []rune(w)
	if !unicode.IsUpper(rs[0]) {
		return false
	}
	for _, r := range rs[1:] {
		if !unicode.IsLetter(r) && r != '\'' && r != '-' && r != '.' {
			return false
		}
	}
	return true
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// knownSkills is the keyword list scanned when the provider is down.
var knownSkills = []string{
	"Go", "Golang", "Python", "Java", "JavaScript", "TypeScript", "C++", "C#", "Rust", "Ruby", "PHP",
	"Kotlin", "Swift", "Scala", "SQL", "PostgreSQL", "MySQL", "MongoDB", "Redis", "Kafka",
	"Docker", "Kubernetes", "Terraform", "AWS", "GCP", "Azure", "Linux", "Git", "gRPC",
	"React", "Angular", "Vue", "Node.js", "Django", "Flask", "Spring", "GraphQL", "REST",
	"Excel", "Tableau", "Figma", "Salesforce",
}

// ScanSkills returns the known skill keywords present in text, in list order.
func ScanSkills(text string) []string {
	tokens := map[string]struct{}{}
	for _, tok := range strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(",;|/()[]•·", r)
	}) {
		tokens[strings.ToLower(strings.Trim(tok, ".:"))] = struct{}{}
	}
	out := []string{}
	for _, s := range knownSkills {
		if _, ok := tokens[strings.ToLower(s)]; ok {
			out = append(out, s)
		}
	}
	return out
}

// PlaceholderProfessional returns labelled placeholder entries so the
// review UI has something to edit.
func PlaceholderProfessional(text string) *entity.ProfessionalInfo {
	skills := ScanSkills(text)
	if len(skills) == 0 {
		skills = []string{constants.PlaceholderSkill}
	}
	return (&entity.ProfessionalInfo{
		Experience: []entity.Experience{{
			Title:       constants.PlaceholderTitle,
			Company:     constants.PlaceholderCompany,
			Description: constants.PlaceholderDescription,
		}},
		Education: []entity.Education{{
			Degree:      constants.PlaceholderDegree,
			Institution: constants.PlaceholderInstitution,
		}},
		Skills: entity.Skills{Technical: skills},
	}).Normalize()
}
