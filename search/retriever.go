package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/index"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name used for retrieval spans.
const TracerName = "github.com/poiesic/docqa/search"

// Index is the part of the chunk store a Retriever needs.
type Index interface {
	Search(query []float32, filter index.Filter, topK int) ([]core.SearchResult, error)
	Len() int
}

var _ Index = (*index.Store)(nil)

// Retriever embeds query text and searches an Index.
type Retriever struct {
	index    Index
	embedder ai.Embedder
	tracer   trace.Tracer
	logger   *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger.With("component", "retriever")
		return nil
	}
}

// WithTracer sets the tracer for retrieval spans.
// Default is the global provider's tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Retriever) error {
		if tracer != nil {
			r.tracer = tracer
		}
		return nil
	}
}

// NewRetriever creates a new retriever.
func NewRetriever(idx Index, embedder ai.Embedder, opts ...Option) (*Retriever, error) {
	if idx == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	r := &Retriever{
		index:    idx,
		embedder: embedder,
		tracer:   otel.Tracer(TracerName),
		logger:   slog.Default().With("component", "retriever"),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Retrieve returns up to topK chunks passing filter, ranked by similarity to query.
func (r *Retriever) Retrieve(ctx context.Context, query string, filter index.Filter, topK int) ([]core.SearchResult, error) {
	return r.RetrieveWithMonitor(ctx, query, filter, topK, nil)
}

// RetrieveWithMonitor is Retrieve with callbacks at each stage.
// The embedding call is skipped when the filter or the index guarantees no results.
func (r *Retriever) RetrieveWithMonitor(ctx context.Context, query string, filter index.Filter, topK int, monitor Monitor) ([]core.SearchResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	ctx, span := r.tracer.Start(ctx, "search.retrieve",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.Int("search.top_k", topK),
			attribute.Bool("search.restricted", filter.Restricted()),
			attribute.Int("search.query_length", len(query)),
		),
	)
	defer span.End()

	monitor.Start(query, filter, topK)

	switch {
	case filter.MatchesNothing():
		monitor.Skipped("no accessible documents")
		monitor.Finish(nil)
		return []core.SearchResult{}, nil
	case r.index.Len() == 0:
		monitor.Skipped("index is empty")
		monitor.Finish(nil)
		return []core.SearchResult{}, nil
	case topK <= 0:
		monitor.Skipped("non-positive result count")
		monitor.Finish(nil)
		return []core.SearchResult{}, nil
	}

	embedding, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		r.logger.Error("error generating embedding for query", "err", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %w", ErrQueryEmbedding, err)
	}
	monitor.AfterEmbedding(len(embedding))

	results, err := r.index.Search(embedding, filter, topK)
	if err != nil {
		r.logger.Error("error searching index", "err", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("search.result_count", len(results)))
	monitor.Finish(results)
	return results, nil
}
