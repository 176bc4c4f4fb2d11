package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/cv-extractor/internal/common"
)

// MaxTextBytes caps the size of a text file read by FileSource.
const MaxTextBytes = 1 << 20

// FileSource reads plain-text CVs from a directory. Refs are paths
// relative to Root and may not escape it.
type FileSource struct {
	Root string
}

func NewFileSource(root string) *FileSource {
	return &FileSource{Root: root}
}

func (s *FileSource) Text(ctx context.Context, ref string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := s.resolve(ref)
	if err != nil {
		return "", err
	}
	return ReadTextFile(path)
}

func (s *FileSource) resolve(ref string) (string, error) {
	clean := filepath.Clean("/" + strings.TrimSpace(ref))
	if clean == "/" {
		return "", fmt.Errorf("empty source ref: %w", common.ErrInvalidInput)
	}
	return filepath.Join(s.Root, clean), nil
}

// ReadTextFile loads a UTF-8 text file, rejecting binaries and oversized input.
func ReadTextFile(path string) (string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("source %s: %w", path, common.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("stat source: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("source %s is a directory: %w", path, common.ErrInvalidInput)
	}
	if info.Size() > MaxTextBytes {
		return "", fmt.Errorf("source %s is %d bytes, limit %d: %w", path, info.Size(), MaxTextBytes, common.ErrInvalidInput)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read source: %w", err)
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("source %s is not UTF-8 text: %w", path, common.ErrInvalidInput)
	}
	return strings.TrimPrefix(string(b), "\ufeff"), nil
}
