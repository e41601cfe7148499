package core

import (
	"encoding/binary"
	"slices"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a content-derived identifier.
type ID uint64

// IDFromBytes generates a deterministic ID from raw content, such as a source
// file read from disk, using BLAKE2b hashing. Identical content produces
// identical IDs.
func IDFromBytes(data []byte) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write(data)
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Chunk is a contiguous span of extracted document text together with its embedding.
// Chunks are owned by the index and never mutated after insertion.
type Chunk struct {
	Text     string
	Document string    // Label of the source document, usually the file base name
	Page     int       // 1-based page number
	ChunkID  int       // Unique within Document
	Vector   []float32 // Embedding of Text
}

// ChunkInput is a chunk of text waiting to be embedded and inserted.
type ChunkInput struct {
	Text string
	Page int
}

// ExtractedChunk is what an extractor produces for a single source.
type ExtractedChunk struct {
	Document string
	Text     string
	Page     int
}

// Input drops the document label, which the index receives separately.
func (e ExtractedChunk) Input() ChunkInput {
	return ChunkInput{Text: e.Text, Page: e.Page}
}

// SearchResult is a ranked hit from the index. It is derived per query and never stored.
type SearchResult struct {
	Chunk      Chunk
	Similarity float64 // Cosine similarity in [-1, 1]
	Rank       int     // 0-based position in the result list
}

// Turn is one question/answer exchange in a user's conversation.
type Turn struct {
	Query               string
	Answer              string
	ReferencedDocuments string // "; "-joined labels of the documents the answer was built from
	Timestamp           time.Time
}

// Source identifies a chunk that contributed to an answer.
type Source struct {
	Document   string
	Page       int
	Similarity string // Formatted to two decimal places
}

// Answer is the result of a question. It is always well formed, including for refusals
// and empty results.
type Answer struct {
	Answer      string
	Sources     []Source
	ContextUsed bool
}

// DocumentSet is a set of document labels. The zero value is an empty set.
type DocumentSet map[string]struct{}

// NewDocumentSet builds a set from labels, ignoring duplicates.
func NewDocumentSet(labels ...string) DocumentSet {
	set := make(DocumentSet, len(labels))
	for _, label := range labels {
		set[label] = struct{}{}
	}
	return set
}

// Contains reports whether label is in the set.
func (s DocumentSet) Contains(label string) bool {
	_, ok := s[label]
	return ok
}

// Len returns the number of labels in the set.
func (s DocumentSet) Len() int {
	return len(s)
}

// Sorted returns the labels in lexicographic order.
func (s DocumentSet) Sorted() []string {
	labels := make([]string, 0, len(s))
	for label := range s {
		labels = append(labels, label)
	}
	slices.Sort(labels)
	return labels
}
