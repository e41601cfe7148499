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


package docqa

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/docqa/access"
	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/ai/openai"
	"github.com/poiesic/docqa/conversation"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/extract"
	"github.com/poiesic/docqa/index"
	"github.com/poiesic/docqa/ingestion"
	"github.com/poiesic/docqa/qa"
	"github.com/poiesic/docqa/search"
	"github.com/poiesic/docqa/storage/badger"
)

// Engine wires the chunk index, access gate, conversation store and answer
// composer together. It is safe for concurrent use.
type Engine struct {
	backend       *badger.Backend
	repo          *badger.ConversationRepository
	conversations *conversation.Manager
	store         *index.Store
	pipeline      *ingestion.Pipeline
	composer      *qa.Composer
	gate          access.Gate
	logger        *slog.Logger

	providerMu sync.Mutex
	provider   ai.AIProvider // from WithProvider, or built lazily when no embedder was supplied
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	aiConfig      *ai.Config
	embedder      ai.Embedder
	provider      ai.AIProvider
	policy        *access.Policy
	gate          access.Gate
	logger        *slog.Logger
	poolSize      int
	ingestionOpts []ingestion.Option
}

// WithAIConfig sets the embedding service configuration.
// Ignored when WithEmbedder is used.
func WithAIConfig(config *ai.Config) EngineOption {
	return func(o *engineOptions) {
		o.aiConfig = config
	}
}

// WithEmbedder supplies the embedder directly instead of connecting to an
// embedding service.
func WithEmbedder(embedder ai.Embedder) EngineOption {
	return func(o *engineOptions) {
		o.embedder = embedder
	}
}

// WithProvider uses provider's embedder. The engine takes ownership and closes
// the provider on Close. Takes precedence over WithEmbedder and WithAIConfig.
func WithProvider(provider ai.AIProvider) EngineOption {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithPolicy sets the users and mention vocabulary. Default is access.DefaultPolicy().
func WithPolicy(policy *access.Policy) EngineOption {
	return func(o *engineOptions) {
		o.policy = policy
	}
}

// WithGate overrides the access gate built from the policy. The policy's
// aliases are still used for mention checks.
func WithGate(gate access.Gate) EngineOption {
	return func(o *engineOptions) {
		o.gate = gate
	}
}

// WithLogger sets a custom logger for the engine and its components.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// WithPoolSize sets the number of workers used for extraction and scoring.
func WithPoolSize(size int) EngineOption {
	return func(o *engineOptions) {
		o.poolSize = size
	}
}

// WithIngestionOptions passes extra options to the ingestion pipeline.
func WithIngestionOptions(opts ...ingestion.Option) EngineOption {
	return func(o *engineOptions) {
		o.ingestionOpts = append(o.ingestionOpts, opts...)
	}
}

// NewEngine builds an Engine. Without WithEmbedder, the embedding client is
// created on first use, so construction never touches the network.
func NewEngine(opts ...EngineOption) (*Engine, error) {
	options := &engineOptions{
		aiConfig: ai.DefaultConfig(),
		policy:   access.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if options.policy == nil {
		options.policy = access.DefaultPolicy()
	}
	if options.aiConfig == nil {
		options.aiConfig = ai.DefaultConfig()
	}

	e := &Engine{
		gate:   options.gate,
		logger: options.logger.With("component", "engine"),
	}
	if e.gate == nil {
		e.gate = options.policy.Table()
	}

	embedder := options.embedder
	if options.provider != nil {
		e.provider = options.provider
		embedder = options.provider.Embedder()
	}
	if embedder == nil {
		if err := options.aiConfig.Validate(); err != nil {
			return nil, err
		}
		config := options.aiConfig
		embedder = ai.NewLazyEmbedder(func() (ai.Embedder, error) {
			provider, err := openai.NewProvider(config)
			if err != nil {
				return nil, err
			}
			e.providerMu.Lock()
			e.provider = provider
			e.providerMu.Unlock()
			e.logger.Info("connected embedding service", "host", config.EmbeddingHost, "model", config.EmbeddingModel)
			return provider.Embedder(), nil
		})
	}

	// Conversations live only as long as the engine.
	var err error
	e.backend, err = badger.OpenBackend("", true)
	if err != nil {
		return nil, err
	}

	if err := e.build(embedder, options); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) build(embedder ai.Embedder, options *engineOptions) error {
	var err error
	e.repo, err = badger.NewConversationRepository(e.backend)
	if err != nil {
		return err
	}

	e.conversations, err = conversation.NewManager(e.repo, conversation.WithLogger(options.logger))
	if err != nil {
		return err
	}

	storeOpts := []index.Option{index.WithLogger(options.logger)}
	if options.poolSize > 0 {
		storeOpts = append(storeOpts, index.WithWorkers(options.poolSize))
	}
	e.store, err = index.NewStore(embedder, storeOpts...)
	if err != nil {
		return err
	}

	extractor, err := extract.NewAuto(extract.WithLogger(options.logger))
	if err != nil {
		return err
	}
	pipelineOpts := []ingestion.Option{ingestion.WithLogger(options.logger)}
	if options.poolSize > 0 {
		pipelineOpts = append(pipelineOpts, ingestion.WithPoolSize(options.poolSize))
	}
	pipelineOpts = append(pipelineOpts, options.ingestionOpts...)
	e.pipeline, err = ingestion.NewPipeline(e.store, extractor, pipelineOpts...)
	if err != nil {
		return err
	}

	retriever, err := search.NewRetriever(e.store, embedder, search.WithLogger(options.logger))
	if err != nil {
		return err
	}

	e.composer, err = qa.NewComposer(e.gate, retriever, e.conversations,
		qa.WithLogger(options.logger),
		qa.WithAliases(options.policy.Aliases),
	)
	return err
}

// Close releases worker pools, the embedding client and the conversation
// database. Calling Close again is a no-op.
func (e *Engine) Close() error {
	if e.pipeline != nil {
		e.pipeline.Release()
	}
	if e.store != nil {
		e.store.Release()
	}

	var errs []error
	e.providerMu.Lock()
	if e.provider != nil {
		if err := e.provider.Close(); err != nil {
			e.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
		e.provider = nil
	}
	e.providerMu.Unlock()

	if e.repo != nil {
		if err := e.repo.Close(); err != nil {
			e.logger.Error("error closing conversation repository", "err", err)
			errs = append(errs, err)
		}
		e.repo = nil
	}
	if e.backend != nil {
		if err := e.backend.Close(); err != nil {
			e.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
		e.backend = nil
	}
	return errors.Join(errs...)
}

// Ingest embeds chunks and adds them to the index under label.
func (e *Engine) Ingest(ctx context.Context, label string, chunks []core.ChunkInput) error {
	return e.pipeline.Ingest(ctx, label, chunks)
}

// IngestFiles extracts and ingests source files.
func (e *Engine) IngestFiles(ctx context.Context, paths []string) (*ingestion.Report, error) {
	return e.pipeline.IngestFiles(ctx, paths)
}

// IngestDirectory ingests every accepted file in dir.
func (e *Engine) IngestDirectory(ctx context.Context, dir string) (*ingestion.Report, error) {
	return e.pipeline.IngestDirectory(ctx, dir)
}

// Watch ingests files added to dir until ctx is done.
func (e *Engine) Watch(ctx context.Context, dir string, debounce time.Duration) error {
	return e.pipeline.Watch(ctx, dir, debounce)
}

// Answer answers query for userID from the documents the user may read.
func (e *Engine) Answer(ctx context.Context, userID, query string, useContext bool) (*core.Answer, error) {
	return e.composer.Answer(ctx, access.NormalizeUserID(userID), query, useContext)
}

// AnswerWithMonitor is Answer with retrieval stages reported to monitor.
func (e *Engine) AnswerWithMonitor(ctx context.Context, userID, query string, useContext bool, monitor search.Monitor) (*core.Answer, error) {
	return e.composer.AnswerWithMonitor(ctx, access.NormalizeUserID(userID), query, useContext, monitor)
}

// ClearConversation forgets userID's conversation history.
func (e *Engine) ClearConversation(ctx context.Context, userID string) error {
	return e.conversations.Clear(ctx, access.NormalizeUserID(userID))
}

// History returns up to limit of userID's most recent turns, oldest first.
func (e *Engine) History(ctx context.Context, userID string, limit int) ([]core.Turn, error) {
	return e.conversations.History(ctx, access.NormalizeUserID(userID), limit)
}

// Users lists the known users when the gate can enumerate them.
func (e *Engine) Users() []string {
	if lister, ok := e.gate.(interface{ Users() []string }); ok {
		return lister.Users()
	}
	return nil
}

// AllowedDocuments returns the sorted labels userID may search.
func (e *Engine) AllowedDocuments(userID string) []string {
	return e.gate.AllowedDocuments(userID).Sorted()
}

// Documents returns the sorted labels present in the index.
func (e *Engine) Documents() []string {
	return e.store.Documents()
}
