package ingestion

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/extract"
	"github.com/poiesic/docqa/index"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
)

// ChunkIndex is the part of the chunk store the pipeline writes to.
type ChunkIndex interface {
	Insert(ctx context.Context, label string, inputs []core.ChunkInput) error
	HasDocument(label string) bool
}

var _ ChunkIndex = (*index.Store)(nil)

// Pipeline extracts source files and inserts their chunks into the index.
type Pipeline struct {
	index       ChunkIndex
	extractor   extract.Extractor
	pool        *ants.Pool
	extensions  []string
	maxAttempts int
	baseDelay   time.Duration
	progress    io.Writer
	logger      *slog.Logger

	insertMu sync.Mutex // serializes the insert phase of concurrent runs
	mu       sync.Mutex
	digests  map[string]core.ID // label -> content digest of the ingested version
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent extraction.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger.With("component", "ingestion")
		return nil
	}
}

// WithExtensions sets the file extensions IngestDirectory and Watch accept.
// Default is ".pdf".
func WithExtensions(exts ...string) Option {
	return func(p *Pipeline) error {
		p.extensions = p.extensions[:0]
		for _, ext := range exts {
			ext = strings.ToLower(ext)
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			p.extensions = append(p.extensions, ext)
		}
		return nil
	}
}

// WithRetry sets how often an insert is attempted when the embedder fails,
// and the delay before the first retry. The delay doubles on each retry.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(p *Pipeline) error {
		if maxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		p.maxAttempts = maxAttempts
		p.baseDelay = baseDelay
		return nil
	}
}

// WithProgress writes a progress line to w while IngestFiles runs.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) error {
		p.progress = w
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(idx ChunkIndex, extractor extract.Extractor, opts ...Option) (*Pipeline, error) {
	if idx == nil {
		return nil, ErrIndexRequired
	}
	if extractor == nil {
		return nil, ErrExtractorRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		index:       idx,
		extractor:   extractor,
		pool:        pool,
		extensions:  []string{".pdf"},
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		logger:      slog.Default().With("component", "ingestion"),
		digests:     make(map[string]core.ID),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// Accepts reports whether path has one of the configured extensions.
func (p *Pipeline) Accepts(path string) bool {
	return slices.Contains(p.extensions, strings.ToLower(filepath.Ext(path)))
}

// Ingest embeds chunks and adds them to the index under label.
func (p *Pipeline) Ingest(ctx context.Context, label string, chunks []core.ChunkInput) error {
	return p.index.Insert(ctx, label, chunks)
}

// SkippedSource is a source IngestFiles did not insert.
type SkippedSource struct {
	Path string
	Err  error
}

// Report summarizes an IngestFiles run.
type Report struct {
	Ingested  []string // Labels inserted by this run
	Unchanged []string // Labels already ingested with identical content
	Skipped   []SkippedSource
	Chunks    int // Chunks inserted by this run
}

type extraction struct {
	chunks []core.ExtractedChunk
	digest core.ID
	err    error
}

// IngestFiles extracts paths concurrently, then inserts them in the given order.
//
// A source that cannot be read or extracted is logged and skipped. A source
// whose content digest matches the version already ingested under its label is
// left alone; a source whose content changed is skipped with a warning, since
// chunks are never removed from the index. Embedder failures are retried; a
// configuration error aborts the run and is returned with the partial report.
func (p *Pipeline) IngestFiles(ctx context.Context, paths []string) (*Report, error) {
	report := &Report{}
	if len(paths) == 0 {
		return report, nil
	}

	results := p.extractAll(ctx, paths)

	p.insertMu.Lock()
	defer p.insertMu.Unlock()

	var tracker *ProgressTracker
	if p.progress != nil {
		tracker = NewProgressTracker(p.progress, len(paths), 1)
		tracker.Start()
		defer tracker.Finish()
	}

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if tracker != nil {
			tracker.Increment(1)
		}

		label := extract.Label(path)
		result := results[i]
		if result.err != nil {
			p.logger.Warn("skipping source", "path", path, "err", result.err)
			report.Skipped = append(report.Skipped, SkippedSource{Path: path, Err: result.err})
			continue
		}

		if unchanged, err := p.checkDigest(label, result.digest); err != nil {
			p.logger.Warn("skipping source", "path", path, "document", label, "err", err)
			report.Skipped = append(report.Skipped, SkippedSource{Path: path, Err: err})
			continue
		} else if unchanged {
			report.Unchanged = append(report.Unchanged, label)
			continue
		}

		if len(result.chunks) == 0 {
			p.logger.Warn("skipping source", "path", path, "err", ErrNoText)
			report.Skipped = append(report.Skipped, SkippedSource{Path: path, Err: ErrNoText})
			continue
		}

		inputs := make([]core.ChunkInput, len(result.chunks))
		for j, chunk := range result.chunks {
			inputs[j] = chunk.Input()
		}

		err := RetryWithBackoff(ctx, func() error {
			err := p.index.Insert(ctx, label, inputs)
			if isConfigError(err) || isInputError(err) {
				return Permanent(err)
			}
			return err
		}, p.maxAttempts, p.baseDelay)
		if err != nil {
			if isConfigError(err) || ctx.Err() != nil {
				p.logger.Error("ingestion aborted", "path", path, "err", err)
				return report, err
			}
			p.logger.Error("failed to ingest source", "path", path, "err", err)
			report.Skipped = append(report.Skipped, SkippedSource{Path: path, Err: err})
			continue
		}

		p.mu.Lock()
		p.digests[label] = result.digest
		p.mu.Unlock()

		report.Ingested = append(report.Ingested, label)
		report.Chunks += len(inputs)
		p.logger.Info("ingested document", "document", label, "chunks", len(inputs))
	}

	return report, nil
}

// IngestDirectory ingests every file in dir with an accepted extension, in
// name order. Subdirectories are not descended into.
func (p *Pipeline) IngestDirectory(ctx context.Context, dir string) (*Report, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !p.Accepts(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	slices.Sort(paths)

	p.logger.Debug("ingesting directory", "dir", dir, "files", len(paths))
	return p.IngestFiles(ctx, paths)
}

// extractAll runs the extractor for every path on the pool and waits for all
// of them. Results are indexed like paths.
func (p *Pipeline) extractAll(ctx context.Context, paths []string) []extraction {
	results := make([]extraction, len(paths))

	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			results[i] = p.extractOne(ctx, path)
		}
		if err := p.pool.Submit(task); err != nil {
			p.logger.Debug("pool unavailable, extracting inline", "path", path, "err", err)
			task()
		}
	}
	wg.Wait()

	return results
}

func (p *Pipeline) extractOne(ctx context.Context, path string) extraction {
	data, err := os.ReadFile(path)
	if err != nil {
		return extraction{err: err}
	}
	chunks, err := p.extractor.Extract(ctx, path)
	if err != nil {
		return extraction{err: err}
	}
	return extraction{chunks: chunks, digest: core.IDFromBytes(data)}
}

// checkDigest reports whether label was already ingested with this exact
// content. It returns ErrSourceChanged when label holds different content.
func (p *Pipeline) checkDigest(label string, digest core.ID) (bool, error) {
	p.mu.Lock()
	prev, seen := p.digests[label]
	p.mu.Unlock()

	if seen {
		if prev == digest {
			return true, nil
		}
		return false, ErrSourceChanged
	}
	if p.index.HasDocument(label) {
		return false, ErrSourceChanged
	}
	return false, nil
}

func isInputError(err error) bool {
	return errors.Is(err, core.ErrInvalidChunk) || errors.Is(err, core.ErrEmptyDocumentLabel)
}

func isConfigError(err error) bool {
	return errors.Is(err, index.ErrDimensionMismatch) ||
		errors.Is(err, index.ErrEmbeddingCountMismatch) ||
		errors.Is(err, index.ErrEmptyVector)
}
