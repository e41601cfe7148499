package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/poiesic/docqa/core"
)

// Auto picks an extractor by file extension.
type Auto struct {
	byExt map[string]Extractor
}

var _ Extractor = (*Auto)(nil)

// NewAuto creates an extractor that handles .pdf, .txt and .md files.
func NewAuto(opts ...Option) (*Auto, error) {
	pdf, err := NewPDFExtractor(opts...)
	if err != nil {
		return nil, err
	}
	text, err := NewTextExtractor(opts...)
	if err != nil {
		return nil, err
	}
	return &Auto{
		byExt: map[string]Extractor{
			".pdf": pdf,
			".txt": text,
			".md":  text,
		},
	}, nil
}

// Supports reports whether path has an extension Auto can read.
func (a *Auto) Supports(path string) bool {
	_, ok := a.byExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extract dispatches to the extractor registered for the path's extension.
func (a *Auto) Extract(ctx context.Context, path string) ([]core.ExtractedChunk, error) {
	ext := strings.ToLower(filepath.Ext(path))
	extractor, ok := a.byExt[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return extractor.Extract(ctx, path)
}
