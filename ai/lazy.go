package ai

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrEmbedderFactoryRequired is returned by a LazyEmbedder built without a factory.
var ErrEmbedderFactoryRequired = errors.New("embedder factory required")

// EmbedderFactory builds the underlying embedder on first use.
type EmbedderFactory func() (Embedder, error)

// LazyEmbedder is an Embedder that constructs its delegate on the first call.
// A failed construction is not cached; the next call tries again.
type LazyEmbedder struct {
	factory  EmbedderFactory
	mu       sync.Mutex
	delegate atomic.Pointer[embedderHolder]
}

type embedderHolder struct {
	embedder Embedder
}

var _ Embedder = (*LazyEmbedder)(nil)

// NewLazyEmbedder wraps factory in a LazyEmbedder.
func NewLazyEmbedder(factory EmbedderFactory) *LazyEmbedder {
	return &LazyEmbedder{factory: factory}
}

// Get returns the delegate, building it if necessary.
func (l *LazyEmbedder) Get() (Embedder, error) {
	if h := l.delegate.Load(); h != nil {
		return h.embedder, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if h := l.delegate.Load(); h != nil {
		return h.embedder, nil
	}
	if l.factory == nil {
		return nil, ErrEmbedderFactoryRequired
	}

	embedder, err := l.factory()
	if err != nil {
		return nil, err
	}
	l.delegate.Store(&embedderHolder{embedder: embedder})
	return embedder, nil
}

// Loaded reports whether the delegate has been built.
func (l *LazyEmbedder) Loaded() bool {
	return l.delegate.Load() != nil
}

// EmbedText builds the delegate if needed and embeds text.
func (l *LazyEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	embedder, err := l.Get()
	if err != nil {
		return nil, err
	}
	return embedder.EmbedText(ctx, text)
}

// EmbedTexts builds the delegate if needed and embeds texts.
func (l *LazyEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	embedder, err := l.Get()
	if err != nil {
		return nil, err
	}
	return embedder.EmbedTexts(ctx, texts)
}
