package reconcile

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Header detection is best effort: it looks at line shape only.
const (
	minHeaderRunes = 8
	maxHeaderRunes = 160
)

// Labels of the key: value lines the renderer emits.
const (
	labelLocation     = "Location"
	labelGPA          = "GPA"
	labelTechnical    = "Technical"
	labelSoft         = "Soft"
	labelLanguages    = "Languages"
	labelTechnologies = "Technologies"
	labelURL          = "URL"
	labelIssuer       = "Issuer"
	labelDate         = "Date"
)

var labelAliases = map[string]string{
	"location":     labelLocation,
	"place":        labelLocation,
	"gpa":          labelGPA,
	"grade":        labelGPA,
	"technical":    labelTechnical,
	"tech":         labelTechnical,
	"hard":         labelTechnical,
	"soft":         labelSoft,
	"languages":    labelLanguages,
	"language":     labelLanguages,
	"technologies": labelTechnologies,
	"stack":        labelTechnologies,
	"tools":        labelTechnologies,
	"url":          labelURL,
	"link":         labelURL,
	"issuer":       labelIssuer,
	"issued by":    labelIssuer,
	"date":         labelDate,
	"issued":       labelDate,
}

const monthPrefix = `(?:\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?\s+)?`

var (
	reDateToken = regexp.MustCompile(`(?i)` + monthPrefix + `(?:\b(?:19|20)\d{2}\b|\b(?:present|current)\b|\b\d{1,2}/\d{2,4}\b)`)
	reRange     = regexp.MustCompile(`(?i)^\s*(.+?)\s*(?:\s-\s|–|—|\sto\s)\s*(.+?)\s*$`)
	reBullet    = regexp.MustCompile(`^(?:[•·*▪◦‣–-]|\d{1,2}[.)])\s+`)
)

// block is one entry of free text: a header line and the lines under it.
type block struct {
	header string
	lines  []string
}

func isBullet(line string) bool { return reBullet.MatchString(line) }

func stripBullet(line string) string {
	return strings.TrimSpace(reBullet.ReplaceAllString(line, ""))
}

// splitLabel splits "Key: value" lines whose key is a known label.
func splitLabel(line string) (label, value string, ok bool) {
	i := strings.IndexByte(line, ':')
	if i <= 0 {
		return "", "", false
	}
	label, ok = labelAliases[strings.ToLower(strings.TrimSpace(line[:i]))]
	if !ok {
		return "", "", false
	}
	return label, strings.TrimSpace(line[i+1:]), true
}

// isHeader reports whether line opens a new entry: a known header, or a
// non-bullet line of reasonable length carrying a date-like token and not
// ending like a sentence.
func isHeader(line string, known map[string]int) bool {
	if known[line] > 0 {
		return true
	}
	if isBullet(line) || strings.HasSuffix(line, ".") {
		return false
	}
	if _, _, ok := splitLabel(line); ok {
		return false
	}
	n := utf8.RuneCountInString(line)
	if n < minHeaderRunes || n > maxHeaderRunes {
		return false
	}
	return reDateToken.MatchString(line)
}

// splitEntries cuts text into header-led blocks. Lines before the first
// header are discarded. Inside a block, a line listed in body never opens a
// new entry unless it is a known header.
func splitEntries(text string, known map[string]int, body map[string]bool) []block {
	var out []block
	for _, raw := range strings.Split(normalizeNewlines(text), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if len(out) > 0 && known[line] == 0 && body[line] {
			out[len(out)-1].lines = append(out[len(out)-1].lines, line)
			continue
		}
		if isHeader(line, known) {
			out = append(out, block{header: line})
			continue
		}
		if len(out) > 0 {
			out[len(out)-1].lines = append(out[len(out)-1].lines, line)
		}
	}
	return out
}

// splitParagraphs cuts text into blank-line separated blocks whose first
// line is the header.
func splitParagraphs(text string) []block {
	var out []block
	var cur *block
	for _, raw := range strings.Split(normalizeNewlines(text), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			cur = nil
			continue
		}
		if cur == nil {
			out = append(out, block{header: stripBullet(line)})
			cur = &out[len(out)-1]
			continue
		}
		cur.lines = append(cur.lines, line)
	}
	return out
}

// body is the content under an entry header.
type body struct {
	labels      map[string]string
	description []string
	bullets     []string
}

func parseBody(lines []string) body {
	b := body{labels: map[string]string{}}
	for _, line := range lines {
		switch {
		case isBullet(line):
			if s := stripBullet(line); s != "" {
				b.bullets = append(b.bullets, s)
			}
		default:
			if label, value, ok := splitLabel(line); ok {
				b.labels[label] = value
				continue
			}
			b.description = append(b.description, line)
		}
	}
	return b
}

// splitHeader separates the descriptive part of a header from its dates.
func splitHeader(h string) (head, dates string) {
	if i := strings.LastIndex(h, " | "); i >= 0 {
		return strings.TrimSpace(h[:i]), strings.TrimSpace(h[i+3:])
	}
	loc := reDateToken.FindStringIndex(h)
	if loc == nil {
		return strings.TrimSpace(h), ""
	}
	head = strings.TrimRight(h[:loc[0]], " ,|(-–—")
	dates = strings.TrimSpace(strings.TrimRight(h[loc[0]:], ")"))
	return strings.TrimSpace(head), dates
}

var headSeparators = []string{" at ", " @ ", " - ", " – ", " — ", ", "}

// splitTitleCompany infers (title, company) from the descriptive part of a header.
func splitTitleCompany(head string) (string, string) {
	for _, sep := range headSeparators {
		if i := strings.Index(head, sep); i > 0 {
			return strings.TrimSpace(head[:i]), strings.TrimSpace(head[i+len(sep):])
		}
	}
	return strings.TrimSpace(head), ""
}

func splitRange(s string) (start, end string) {
	if s == "" {
		return "", ""
	}
	if m := reRange.FindStringSubmatch(s); m != nil {
		return m[1], m[2]
	}
	return s, ""
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\r", "\n")
}
