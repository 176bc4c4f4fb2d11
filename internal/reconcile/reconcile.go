// Package reconcile converts profile sections to editable text and merges
// edited text back into the structured profile.
package reconcile

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/cv-extractor/constants"
	"github.com/joseph-ayodele/cv-extractor/internal/common"
	"github.com/joseph-ayodele/cv-extractor/internal/entity"
)

// Report describes how text blocks were matched against the anchor.
type Report struct {
	Blocks   int `json:"blocks"`
	Anchored int `json:"anchored"`
	Added    int `json:"added"`
	Dropped  int `json:"dropped"`
}

// FromText returns a copy of anchor with section rebuilt from text. A nil
// anchor is treated as an empty profile.
func FromText(section constants.Section, text string, anchor *entity.ExtractedProfile) (*entity.ExtractedProfile, error) {
	p, _, err := Reconcile(section, text, anchor)
	return p, err
}

// Reconcile is FromText that also reports the pairing outcome.
//
// Experience and education blocks pair with anchor entries by exact header
// first and then, in order, by position among the still unpaired ones. A
// paired block keeps the anchor's identifying fields and takes its body from
// the text. Extra blocks become new entries and unpaired anchor entries are
// dropped. Text without any recognisable block leaves the section as is.
func Reconcile(section constants.Section, text string, anchor *entity.ExtractedProfile) (*entity.ExtractedProfile, Report, error) {
	var out *entity.ExtractedProfile
	if anchor == nil {
		out = (&entity.ExtractedProfile{}).Normalize()
	} else {
		out = anchor.Clone()
	}

	var rep Report
	switch section {
	case constants.SectionExperience:
		out.Experience, rep = reconcileExperience(text, out.Experience)
	case constants.SectionEducation:
		out.Education, rep = reconcileEducation(text, out.Education)
	case constants.SectionSkills:
		out.Skills, rep = reconcileSkills(text, out.Skills)
	case constants.SectionProjects:
		out.Projects, rep = reconcileProjects(text, out.Projects)
	case constants.SectionCertifications:
		out.Certifications, rep = reconcileCertifications(text, out.Certifications)
	default:
		return nil, Report{}, fmt.Errorf("unknown section %q: %w", section, common.ErrInvalidInput)
	}
	return out.Normalize(), rep, nil
}

func reconcileExperience(text string, anchors []entity.Experience) ([]entity.Experience, Report) {
	headers := make([]string, len(anchors))
	body := map[string]bool{}
	for i, a := range anchors {
		headers[i] = experienceHeader(a)
		for _, line := range strings.Split(normalizeNewlines(a.Description), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				body[line] = true
			}
		}
	}
	blocks := splitEntries(text, counts(headers), body)
	if len(blocks) == 0 {
		return anchors, Report{}
	}

	pairs, rep := pairBlocks(blocks, headers)
	out := make([]entity.Experience, 0, len(blocks))
	for i, b := range blocks {
		bd := parseBody(b.lines)
		var e entity.Experience
		if j := pairs[i]; j >= 0 {
			e = anchors[j]
		} else {
			head, dates := splitHeader(b.header)
			e.Title, e.Company = splitTitleCompany(head)
			e.StartDate, e.EndDate = splitRange(dates)
			e.Location = bd.labels[labelLocation]
		}
		e.Description = strings.Join(bd.description, "\n")
		e.Achievements = nonNil(bd.bullets)
		out = append(out, e)
	}
	return out, rep
}

func reconcileEducation(text string, anchors []entity.Education) ([]entity.Education, Report) {
	headers := make([]string, len(anchors))
	for i, a := range anchors {
		headers[i] = educationHeader(a)
	}
	blocks := splitEntries(text, counts(headers), nil)
	if len(blocks) == 0 {
		return anchors, Report{}
	}

	pairs, rep := pairBlocks(blocks, headers)
	out := make([]entity.Education, 0, len(blocks))
	for i, b := range blocks {
		bd := parseBody(b.lines)
		var e entity.Education
		if j := pairs[i]; j >= 0 {
			e = anchors[j]
		} else {
			head, dates := splitHeader(b.header)
			e.Degree, e.Institution = splitTitleCompany(head)
			start, end := splitRange(dates)
			e.GraduationDate = end
			if e.GraduationDate == "" {
				e.GraduationDate = start
			}
			e.Location = bd.labels[labelLocation]
			e.GPA = bd.labels[labelGPA]
		}
		// education has no description field; free lines count as achievements
		e.Achievements = nonNil(append(bd.description, bd.bullets...))
		out = append(out, e)
	}
	return out, rep
}

func reconcileSkills(text string, anchor entity.Skills) (entity.Skills, Report) {
	labels := map[string]string{}
	for _, line := range strings.Split(normalizeNewlines(text), "\n") {
		if label, value, ok := splitLabel(strings.TrimSpace(line)); ok {
			labels[label] = value
		}
	}
	if len(labels) == 0 {
		return anchor, Report{}
	}
	return entity.Skills{
		Technical: splitList(labels[labelTechnical]),
		Soft:      splitList(labels[labelSoft]),
		Languages: splitList(labels[labelLanguages]),
	}, Report{Blocks: len(labels), Anchored: len(labels)}
}

func reconcileProjects(text string, anchors []entity.Project) ([]entity.Project, Report) {
	blocks := splitParagraphs(text)
	if len(blocks) == 0 {
		return anchors, Report{}
	}
	byName := indexByName(len(anchors), func(i int) string { return anchors[i].Name })
	used := make([]bool, len(anchors))

	rep := Report{Blocks: len(blocks)}
	out := make([]entity.Project, 0, len(blocks))
	for _, b := range blocks {
		bd := parseBody(b.lines)
		p := entity.Project{Name: b.header}
		if j, ok := takeByName(byName, used, b.header); ok {
			p = anchors[j]
			p.Name = b.header
			rep.Anchored++
		} else {
			rep.Added++
		}
		if len(bd.description) > 0 {
			p.Description = strings.Join(bd.description, "\n")
		}
		if v, ok := bd.labels[labelTechnologies]; ok {
			p.Technologies = splitList(v)
		}
		if v, ok := bd.labels[labelURL]; ok {
			p.URL = v
		}
		out = append(out, p)
	}
	rep.Dropped = len(anchors) - rep.Anchored
	return out, rep
}

func reconcileCertifications(text string, anchors []entity.Certification) ([]entity.Certification, Report) {
	blocks := splitParagraphs(text)
	if len(blocks) == 0 {
		return anchors, Report{}
	}
	byName := indexByName(len(anchors), func(i int) string { return anchors[i].Name })
	used := make([]bool, len(anchors))

	rep := Report{Blocks: len(blocks)}
	out := make([]entity.Certification, 0, len(blocks))
	for _, b := range blocks {
		bd := parseBody(b.lines)
		c := entity.Certification{Name: b.header}
		if j, ok := takeByName(byName, used, b.header); ok {
			c = anchors[j]
			c.Name = b.header
			rep.Anchored++
		} else {
			rep.Added++
		}
		if v, ok := bd.labels[labelIssuer]; ok {
			c.Issuer = v
		}
		if v, ok := bd.labels[labelDate]; ok {
			c.Date = v
		}
		if v, ok := bd.labels[labelURL]; ok {
			c.URL = v
		}
		out = append(out, c)
	}
	rep.Dropped = len(anchors) - rep.Anchored
	return out, rep
}

// pairBlocks maps each block to an anchor index, or -1 for a new entry.
func pairBlocks(blocks []block, headers []string) ([]int, Report) {
	pairs := make([]int, len(blocks))
	used := make([]bool, len(headers))
	for i, b := range blocks {
		pairs[i] = -1
		for j, h := range headers {
			if !used[j] && h != "" && b.header == h {
				pairs[i] = j
				used[j] = true
				break
			}
		}
	}

	next := 0
	for i := range blocks {
		if pairs[i] >= 0 {
			continue
		}
		for next < len(headers) && used[next] {
			next++
		}
		if next == len(headers) {
			break
		}
		pairs[i] = next
		used[next] = true
	}

	rep := Report{Blocks: len(blocks)}
	for _, j := range pairs {
		if j >= 0 {
			rep.Anchored++
		} else {
			rep.Added++
		}
	}
	rep.Dropped = len(headers) - rep.Anchored
	return pairs, rep
}

func counts(headers []string) map[string]int {
	m := make(map[string]int, len(headers))
	for _, h := range headers {
		if h != "" {
			m[h]++
		}
	}
	return m
}

func indexByName(n int, name func(int) string) map[string][]int {
	m := make(map[string][]int, n)
	for i := 0; i < n; i++ {
		k := strings.ToLower(strings.TrimSpace(name(i)))
		m[k] = append(m[k], i)
	}
	return m
}

func takeByName(byName map[string][]int, used []bool, name string) (int, bool) {
	for _, j := range byName[strings.ToLower(strings.TrimSpace(name))] {
		if !used[j] {
			used[j] = true
			return j, true
		}
	}
	return 0, false
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
