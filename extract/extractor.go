// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package extract turns source files into labelled, paged text chunks.
//
// Each page is split into paragraphs on blank lines; paragraphs that are too
// short to carry meaning are dropped. The document label is the file's base
// name.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/docqa/core"
	"github.com/tmc/langchaingo/schema"
)

// Extractor produces chunks from a source file.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]core.ExtractedChunk, error)
}

// settings is shared by every extractor.
type settings struct {
	minLength int
	logger    *slog.Logger
}

func defaultSettings() settings {
	return settings{
		minLength: DefaultMinLength,
		logger:    slog.Default().With("component", "extract"),
	}
}

// Option configures an extractor.
type Option func(*settings) error

// WithMinLength sets the character count a paragraph must exceed to be kept.
func WithMinLength(n int) Option {
	return func(s *settings) error {
		if n < 0 {
			return fmt.Errorf("minimum paragraph length must not be negative: %d", n)
		}
		s.minLength = n
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "extract")
		return nil
	}
}

func applyOptions(opts []Option) (settings, error) {
	s := defaultSettings()
	for _, opt := range opts {
		if err := opt(&s); err != nil {
			return s, err
		}
	}
	return s, nil
}

// Label returns the document label for a path.
func Label(path string) string {
	return filepath.Base(path)
}

// openFile opens path and rejects directories.
func openFile(path string) (*os.File, os.FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, fmt.Errorf("%w: %s", ErrNotAFile, path)
	}
	return f, info, nil
}

// chunkPage appends the paragraphs of one page to chunks.
func (s settings) chunkPage(chunks []core.ExtractedChunk, label, text string, page int) []core.ExtractedChunk {
	if strings.TrimSpace(text) == "" {
		return chunks
	}
	for _, para := range SplitParagraphs(text, s.minLength) {
		chunks = append(chunks, core.ExtractedChunk{
			Document: label,
			Text:     para,
			Page:     page,
		})
	}
	return chunks
}

// pageNumber reads the 1-based page number a loader stored in metadata,
// falling back to fallback when absent.
func pageNumber(doc schema.Document, fallback int) int {
	switch v := doc.Metadata["page"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}
