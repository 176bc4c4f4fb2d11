package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/joseph-ayodele/cv-extractor/internal/common"
)

// Strategy names the repair step that produced a parseable document.
type Strategy string

const (
	StrategyVerbatim    Strategy = "verbatim"
	StrategySanitized   Strategy = "sanitized"
	StrategyAggressive  Strategy = "aggressive"
	StrategyLineRebuild Strategy = "line_rebuild"
)

// StrategyFailure records why one strategy did not work.
type StrategyFailure struct {
	Strategy Strategy
	Err      error
}

// ParseError is returned when no strategy yields a JSON object.
type ParseError struct {
	Raw      string
	Failures []StrategyFailure
}

func (e *ParseError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Strategy, f.Err))
	}
	return fmt.Sprintf("%v (%s)", common.ErrParse, strings.Join(parts, "; "))
}

func (e *ParseError) Is(target error) bool { return target == common.ErrParse }

var repairStrategies = []struct {
	name Strategy
	fn   func(string) string
}{
	{StrategyVerbatim, func(s string) string { return s }},
	{StrategySanitized, repairJSON},
	{StrategyAggressive, func(s string) string { return repairJSON(removeEscapes(s)) }},
	{StrategyLineRebuild, rebuildLines},
}

// Parse turns a raw model reply into a JSON object, trying each repair
// strategy in order. The first strategy that decodes wins.
func Parse(raw string) (map[string]any, Strategy, error) {
	block := extractBlock(raw)
	perr := &ParseError{Raw: raw}
	for _, st := range repairStrategies {
		obj, err := decodeObject(st.fn(block))
		if err == nil {
			return obj, st.name, nil
		}
		perr.Failures = append(perr.Failures, StrategyFailure{Strategy: st.name, Err: err})
	}
	return nil, "", perr
}

func decodeObject(s string) (map[string]any, error) {
	if strings.TrimSpace(s) == "" {
		return nil, errors.New("empty document")
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("top-level value is %T, want object", v)
	}
	return obj, nil
}

// extractBlock returns the first brace-delimited block. When braces never
// balance it falls back to the span ending at the last closing brace.
func extractBlock(raw string) string {
	s := stripFences(raw)
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return s
	}
	depth, inString, escaped := 0, false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	if end := strings.LastIndexByte(s, '}'); end > start {
		return s[start : end+1]
	}
	return s[start:]
}

var smartQuotes = strings.NewReplacer(
	"“", `"`, "”", `"`, "„", `"`, "‟", `"`,
	"‘", "'", "’", "'",
)

const validEscapes = `"\/bfnrtu`

// repairJSON fixes the common defects of model-written JSON in one
// string-aware pass: invalid escapes, raw control characters inside
// strings, stray inner quotes, single-quoted strings, trailing commas and
// bare keys.
func repairJSON(s string) string {
	rs := []rune(smartQuotes.Replace(s))
	var b strings.Builder
	b.Grow(len(s) + 16)

	inString := false
	var lastSig rune // last significant rune emitted outside strings
	for i := 0; i < len(rs); i++ {
		c := rs[i]
		if inString {
			switch {
			case c == '\\':
				if i+1 < len(rs) && strings.ContainsRune(validEscapes, rs[i+1]) {
					b.WriteRune(c)
					b.WriteRune(rs[i+1])
					i++
				}
				// invalid escape: drop the backslash, keep the next rune
			case c == '"':
				next := nextSignificant(rs, i+1)
				if next == 0 || next == ',' || next == '}' || next == ']' || next == ':' {
					b.WriteRune(c)
					inString = false
					lastSig = '"'
				}
				// otherwise a stray inner quote: drop it
			case c == '\n':
				b.WriteString(`\n`)
			case c == '\r':
				b.WriteString(`\r`)
			case c == '\t':
				b.WriteString(`\t`)
			case c < 0x20:
				// drop other control characters
			default:
				b.WriteRune(c)
			}
			continue
		}

		switch {
		case c == '"':
			inString = true
			b.WriteRune(c)
		case c == '\'':
			end := singleQuotedEnd(rs, i+1)
			if end < 0 {
				b.WriteRune(c)
				lastSig = c
				continue
			}
			writeQuoted(&b, rs[i+1:end])
			lastSig = '"'
			i = end
		case c == ',':
			if next := nextSignificant(rs, i+1); next == '}' || next == ']' {
				continue
			}
			b.WriteRune(c)
			lastSig = c
		case (lastSig == '{' || lastSig == ',') && isIdentStart(c):
			j := i
			for j < len(rs) && isIdentPart(rs[j]) {
				j++
			}
			if nextSignificant(rs, j) == ':' {
				b.WriteRune('"')
				b.WriteString(string(rs[i:j]))
				b.WriteRune('"')
				lastSig = '"'
			} else {
				b.WriteString(string(rs[i:j]))
				lastSig = rs[j-1]
			}
			i = j - 1
		case c < 0x20 && c != '\n' && c != '\r' && c != '\t':
			// drop
		default:
			b.WriteRune(c)
			if !unicode.IsSpace(c) {
				lastSig = c
			}
		}
	}
	return b.String()
}

// singleQuotedEnd returns the index of the quote closing a single-quoted
// string opened before from, or -1. Like stray double quotes, an inner
// apostrophe only closes the string when a delimiter follows it.
func singleQuotedEnd(rs []rune, from int) int {
	for i := from; i < len(rs); i++ {
		switch rs[i] {
		case '\\':
			i++
		case '\'':
			if next := nextSignificant(rs, i+1); next == 0 || next == ',' || next == '}' || next == ']' || next == ':' {
				return i
			}
		}
	}
	return -1
}

// writeQuoted emits body as a double-quoted JSON string.
func writeQuoted(b *strings.Builder, body []rune) {
	b.WriteRune('"')
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '\\' && i+1 < len(body) && body[i+1] == '\'':
			b.WriteRune('\'')
			i++
		case c == '\\' && i+1 < len(body) && strings.ContainsRune(validEscapes, body[i+1]):
			b.WriteRune(c)
			b.WriteRune(body[i+1])
			i++
		case c == '\\':
			// invalid escape: drop the backslash
		case c == '"':
			b.WriteString(`\"`)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\r':
			b.WriteString(`\r`)
		case c == '\t':
			b.WriteString(`\t`)
		case c < 0x20:
			// drop
		default:
			b.WriteRune(c)
		}
	}
	b.WriteRune('"')
}

// removeEscapes deletes every backslash escape, including the escaped rune.
func removeEscapes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// rebuildLines cleans each line on its own, re-inserts commas that are
// missing between lines and joins everything back onto a single line.
func rebuildLines(s string) string {
	var kept []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.Map(func(r rune) rune {
			if r < 0x20 && r != '\t' {
				return -1
			}
			return r
		}, line)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		kept = append(kept, line)
	}
	var b strings.Builder
	for i, line := range kept {
		if i > 0 {
			prev := kept[i-1]
			if endsValue(prev) && startsMember(line) {
				b.WriteByte(',')
			}
			b.WriteByte(' ')
		}
		b.WriteString(line)
	}
	return repairJSON(b.String())
}

func endsValue(line string) bool {
	last := line[len(line)-1]
	switch last {
	case '"', '}', ']':
		return true
	}
	if last >= '0' && last <= '9' {
		return true
	}
	return strings.HasSuffix(line, "true") || strings.HasSuffix(line, "false") || strings.HasSuffix(line, "null")
}

func startsMember(line string) bool {
	switch line[0] {
	case '"', '{', '[':
		return true
	}
	return false
}

func nextSignificant(rs []rune, from int) rune {
	for i := from; i < len(rs); i++ {
		if !unicode.IsSpace(rs[i]) {
			return rs[i]
		}
	}
	return 0
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || r == '-' || (r >= '0' && r <= '9')
}
