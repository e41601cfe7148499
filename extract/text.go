package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/poiesic/docqa/core"
	"github.com/tmc/langchaingo/documentloaders"
)

// pageBreak separates pages in plain text sources.
const pageBreak = "\f"

// TextExtractor reads plain text and markdown files. Form feeds mark page
// boundaries; a file without them is a single page.
type TextExtractor struct {
	settings
}

var _ Extractor = (*TextExtractor)(nil)

// NewTextExtractor creates a plain text extractor.
func NewTextExtractor(opts ...Option) (*TextExtractor, error) {
	s, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	return &TextExtractor{settings: s}, nil
}

// Extract loads the text file at path and splits it into paragraphs.
func (e *TextExtractor) Extract(ctx context.Context, path string) ([]core.ExtractedChunk, error) {
	f, _, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	docs, err := documentloaders.NewText(f).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load text %s: %w", path, err)
	}

	var content strings.Builder
	for _, doc := range docs {
		content.WriteString(doc.PageContent)
	}

	label := Label(path)
	var chunks []core.ExtractedChunk
	for i, page := range strings.Split(content.String(), pageBreak) {
		chunks = e.chunkPage(chunks, label, page, i+1)
	}

	e.logger.Debug("extracted text", "document", label, "chunks", len(chunks))
	return chunks, nil
}
