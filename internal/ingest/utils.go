package ingest

import (
	"path/filepath"
	"strings"
)

// Extensions of pre-extracted CV text picked up from disk.
var defaultExts = map[string]struct{}{
	"txt":  {},
	"text": {},
	"md":   {},
}

// NormalizeExt lowercases an extension and strips the leading dot.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// AllowedExt checks if a file extension is in the given set (defaults to txt/text/md).
func AllowedExt(ext string, exts map[string]struct{}) bool {
	if exts == nil {
		exts = defaultExts
	}
	_, ok := exts[NormalizeExt(ext)]
	return ok
}

// ExtSet builds an extension set from a list such as "txt,.md".
func ExtSet(list []string) map[string]struct{} {
	if len(list) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(list))
	for _, e := range list {
		if e = NormalizeExt(e); e != "" {
			out[e] = struct{}{}
		}
	}
	return out
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}
