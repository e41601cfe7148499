package index

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/core"
)

const defaultParallelThreshold = 4096

// Store is an in-memory vector index of document chunks.
//
// Chunks are appended in insertion order and never removed. A map from document
// label to chunk positions lets searches visit only the documents a caller is
// allowed to see. Searches take a read lock; inserts embed outside the lock and
// then take the write lock for the append.
type Store struct {
	embedder ai.Embedder
	logger   *slog.Logger

	pool              *ants.Pool
	workers           int
	parallelThreshold int

	mu         sync.RWMutex
	chunks     []core.Chunk
	norms      []float64
	byDocument map[string][]int
	dim        int
}

// Option configures a Store.
type Option func(*Store) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "index")
		return nil
	}
}

// WithWorkers scores large candidate pools in parallel on a pool of n workers.
// n <= 1 disables parallel scoring.
func WithWorkers(n int) Option {
	return func(s *Store) error {
		if s.pool != nil {
			s.pool.Release()
			s.pool = nil
		}
		s.workers = n
		if n <= 1 {
			return nil
		}
		pool, err := ants.NewPool(n)
		if err != nil {
			return err
		}
		s.pool = pool
		return nil
	}
}

// WithParallelThreshold sets the candidate count at which scoring goes parallel.
// Default is 4096. Has no effect without WithWorkers.
func WithParallelThreshold(n int) Option {
	return func(s *Store) error {
		if n < 1 {
			n = 1
		}
		s.parallelThreshold = n
		return nil
	}
}

// NewStore creates an empty store that embeds chunks with embedder.
func NewStore(embedder ai.Embedder, opts ...Option) (*Store, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Store{
		embedder:          embedder,
		logger:            slog.Default().With("component", "index"),
		parallelThreshold: defaultParallelThreshold,
		byDocument:        make(map[string][]int),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			s.Release()
			return nil, err
		}
	}

	return s, nil
}

// Release stops the scoring pool, if any. The store remains readable.
func (s *Store) Release() {
	if s.pool != nil {
		s.pool.Release()
	}
}

// Insert embeds inputs and appends them under label.
//
// An empty batch is a no-op. The whole batch is rejected, and nothing is appended,
// if any input is invalid or any vector's dimension disagrees with the rest of the
// store. ChunkIDs continue from the number of chunks already stored for label.
func (s *Store) Insert(ctx context.Context, label string, inputs []core.ChunkInput) error {
	if len(inputs) == 0 {
		return nil
	}
	if label == "" {
		return core.ErrEmptyDocumentLabel
	}

	texts := make([]string, len(inputs))
	for i, input := range inputs {
		if err := core.ValidateChunkInput(input); err != nil {
			return fmt.Errorf("%s chunk %d: %w", label, i, err)
		}
		texts[i] = input.Text
	}

	vectors, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}
	if len(vectors) != len(inputs) {
		return fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingCountMismatch, len(inputs), len(vectors))
	}

	batchDim := len(vectors[0])
	if batchDim == 0 {
		return ErrEmptyVector
	}
	norms := make([]float64, len(vectors))
	for i, vec := range vectors {
		if len(vec) != batchDim {
			return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, batchDim, len(vec))
		}
		norms[i] = norm(vec)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dim != 0 && s.dim != batchDim {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, s.dim, batchDim)
	}
	s.dim = batchDim

	nextID := len(s.byDocument[label])
	for i, input := range inputs {
		s.byDocument[label] = append(s.byDocument[label], len(s.chunks))
		s.chunks = append(s.chunks, core.Chunk{
			Text:     input.Text,
			Document: label,
			Page:     input.Page,
			ChunkID:  nextID + i,
			Vector:   vectors[i],
		})
		s.norms = append(s.norms, norms[i])
	}

	s.logger.Debug("inserted chunks", "document", label, "count", len(inputs), "total", len(s.chunks))
	return nil
}

// Search ranks the chunks that pass filter by cosine similarity to query.
//
// Candidates are restricted before ranking, so topK always selects from the
// allowed pool. Chunks or queries with a zero norm are skipped. Ties keep
// insertion order. The returned chunks share their Vector with the store and
// must not be modified.
func (s *Store) Search(query []float32, filter Filter, topK int) ([]core.SearchResult, error) {
	if topK <= 0 || filter.MatchesNothing() {
		return []core.SearchResult{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.chunks) == 0 {
		return []core.SearchResult{}, nil
	}
	if len(query) != s.dim {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, s.dim, len(query))
	}
	queryNorm := norm(query)
	if queryNorm == 0 {
		return []core.SearchResult{}, nil
	}

	candidates := s.candidates(filter)
	if len(candidates) == 0 {
		return []core.SearchResult{}, nil
	}

	scores := make([]float64, len(candidates))
	valid := make([]bool, len(candidates))
	s.score(query, queryNorm, candidates, scores, valid)

	type hit struct {
		idx   int
		score float64
	}
	hits := make([]hit, 0, len(candidates))
	for i, idx := range candidates {
		if valid[i] {
			hits = append(hits, hit{idx: idx, score: scores[i]})
		}
	}

	slices.SortStableFunc(hits, func(a, b hit) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		default:
			return 0
		}
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}

	results := make([]core.SearchResult, len(hits))
	for rank, h := range hits {
		results[rank] = core.SearchResult{
			Chunk:      s.chunks[h.idx],
			Similarity: h.score,
			Rank:       rank,
		}
	}
	return results, nil
}

// candidates returns the positions visible through filter in insertion order.
// Must be called with the lock held.
func (s *Store) candidates(filter Filter) []int {
	if !filter.Restricted() {
		all := make([]int, len(s.chunks))
		for i := range all {
			all[i] = i
		}
		return all
	}

	var out []int
	for label, positions := range s.byDocument {
		if filter.Allows(label) {
			out = append(out, positions...)
		}
	}
	slices.Sort(out)
	return out
}

// score fills scores and valid for each candidate. Must be called with the lock held.
func (s *Store) score(query []float32, queryNorm float64, candidates []int, scores []float64, valid []bool) {
	scoreRange := func(lo, hi int) {
		for i := lo; i < hi; i++ {
			idx := candidates[i]
			n := s.norms[idx]
			if n == 0 {
				continue
			}
			scores[i] = clamp(dot(query, s.chunks[idx].Vector) / (queryNorm * n))
			valid[i] = true
		}
	}

	if s.pool == nil || len(candidates) < s.parallelThreshold {
		scoreRange(0, len(candidates))
		return
	}

	part := (len(candidates) + s.workers - 1) / s.workers
	var wg sync.WaitGroup
	for lo := 0; lo < len(candidates); lo += part {
		hi := min(lo+part, len(candidates))
		wg.Add(1)
		task := func() {
			defer wg.Done()
			scoreRange(lo, hi)
		}
		if err := s.pool.Submit(task); err != nil {
			s.logger.Warn("scoring pool rejected task, scoring inline", "err", err)
			task()
		}
	}
	wg.Wait()
}

// Len returns the number of chunks in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Dimension returns the vector dimension, or 0 before the first insert.
func (s *Store) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// Documents returns the labels of all stored documents, sorted.
func (s *Store) Documents() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	labels := make([]string, 0, len(s.byDocument))
	for label := range s.byDocument {
		labels = append(labels, label)
	}
	slices.Sort(labels)
	return labels
}

// HasDocument reports whether any chunk was stored under label.
func (s *Store) HasDocument(label string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byDocument[label]) > 0
}

// DocumentChunks returns copies of the chunks stored under label, in insertion order.
func (s *Store) DocumentChunks(label string) []core.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	positions := s.byDocument[label]
	out := make([]core.Chunk, len(positions))
	for i, idx := range positions {
		out[i] = s.chunks[idx]
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}

func clamp(x float64) float64 {
	return math.Max(-1, math.Min(1, x))
}
