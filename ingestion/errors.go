package ingestion

import "errors"

var (
	// ErrIndexRequired is returned when a chunk index is not provided.
	ErrIndexRequired = errors.New("chunk index required")

	// ErrExtractorRequired is returned when an extractor is not provided.
	ErrExtractorRequired = errors.New("extractor required")

	// ErrInvalidMaxAttempts is returned when maxAttempts is not positive.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrSourceChanged is recorded when a source's content differs from the
	// version already ingested under the same label.
	ErrSourceChanged = errors.New("source changed since it was ingested")

	// ErrNoText is recorded when a source yields no usable paragraphs.
	ErrNoText = errors.New("no extractable text")
)
