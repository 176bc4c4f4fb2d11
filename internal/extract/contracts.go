package extract

import (
	"context"
)

// TextSource resolves a job's source reference to already-extracted CV
// text. Document parsing (PDF, DOCX) happens upstream of this interface.
type TextSource interface {
	Text(ctx context.Context, ref string) (string, error)
}

// TextSourceFunc adapts a function to TextSource.
type TextSourceFunc func(ctx context.Context, ref string) (string, error)

func (f TextSourceFunc) Text(ctx context.Context, ref string) (string, error) { return f(ctx, ref) }
