package llm

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line
		s = s[nl+1:]
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

// truncateRunes cuts s to at most n runes, appending a marker when it did.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "\n…(truncated)"
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		s := strings.TrimSpace(t)
		if strings.EqualFold(s, "null") || strings.EqualFold(s, "n/a") {
			return ""
		}
		return s
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := asStringSlice(t)
		return strings.Join(parts, ", ")
	case map[string]any:
		// {"name": "..."} shaped values
		for _, k := range []string{"name", "language", "value", "text", "title"} {
			if s := asString(t[k]); s != "" {
				return s
			}
		}
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// asStringSlice accepts arrays, comma or newline separated strings, and
// arrays of {"name": ...} objects.
func asStringSlice(v any) []string {
	out := []string{}
	switch t := v.(type) {
	case nil:
	case []any:
		for _, item := range t {
			if s := asString(item); s != "" {
				out = append(out, s)
			}
		}
	case string:
		sep := ","
		if strings.Contains(t, "\n") {
			sep = "\n"
		}
		for _, part := range strings.Split(t, sep) {
			part = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(part), "•-*·"))
			if part != "" {
				out = append(out, part)
			}
		}
	default:
		if s := asString(t); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func asObjects(v any) []map[string]any {
	switch t := v.(type) {
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	case map[string]any:
		return []map[string]any{t}
	}
	return nil
}

// pick returns the first present value among keys.
func pick(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func pickString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := asString(m[k]); s != "" {
			return s
		}
	}
	return ""
}
