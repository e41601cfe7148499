package extract

import (
	"context"
	"fmt"

	"github.com/poiesic/docqa/core"
	"github.com/tmc/langchaingo/documentloaders"
)

// PDFExtractor reads text from PDF files, one loader document per page.
type PDFExtractor struct {
	settings
}

var _ Extractor = (*PDFExtractor)(nil)

// NewPDFExtractor creates a PDF extractor.
func NewPDFExtractor(opts ...Option) (*PDFExtractor, error) {
	s, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	return &PDFExtractor{settings: s}, nil
}

// Extract loads every page of the PDF at path and splits it into paragraphs.
func (e *PDFExtractor) Extract(ctx context.Context, path string) ([]core.ExtractedChunk, error) {
	f, info, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	loader := documentloaders.NewPDF(f, info.Size())
	docs, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pdf %s: %w", path, err)
	}

	label := Label(path)
	var chunks []core.ExtractedChunk
	for i, doc := range docs {
		chunks = e.chunkPage(chunks, label, doc.PageContent, pageNumber(doc, i+1))
	}

	e.logger.Debug("extracted pdf", "document", label, "pages", len(docs), "chunks", len(chunks))
	return chunks, nil
}
