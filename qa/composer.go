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


// Package qa answers questions from the documents a user is allowed to read.
//
// A Composer resolves the user's allowed documents, refuses questions that
// name documents outside that set, optionally folds recent conversation into
// the query, retrieves the closest chunks and assembles them into an answer.
// Every answer except a refusal is recorded in the user's conversation.
package qa

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/docqa/access"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/index"
	"github.com/poiesic/docqa/search"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name used for answer spans.
const TracerName = "github.com/poiesic/docqa/qa"

// Defaults for retrieval size, relevance cut-off and fused history.
const (
	DefaultTopK         = 3
	DefaultThreshold    = 0.40
	DefaultContextTurns = 3

	maxAnswerRunes = 1000
	contextHeader  = "\n\nContext from previous conversation:\n"
)

// Outcomes recorded on the qa.answer span.
const (
	OutcomeRefused        = "refused"
	OutcomeNoResults      = "no_results"
	OutcomeBelowThreshold = "below_threshold"
	OutcomeAnswered       = "answered"
)

// Retriever finds the chunks closest to a query among those a filter allows.
type Retriever interface {
	RetrieveWithMonitor(ctx context.Context, query string, filter index.Filter, topK int, monitor search.Monitor) ([]core.SearchResult, error)
}

var _ Retriever = (*search.Retriever)(nil)

// Conversations stores per-user history.
type Conversations interface {
	Append(ctx context.Context, userID string, turn core.Turn) error
	RecentContext(ctx context.Context, userID string, maxEntries int) (string, error)
}

// Composer builds answers. It holds no per-request state and is safe for
// concurrent use.
type Composer struct {
	gate          access.Gate
	retriever     Retriever
	conversations Conversations
	aliases       []access.Alias
	topK          int
	threshold     float64
	contextTurns  int
	tracer        trace.Tracer
	logger        *slog.Logger
}

// Option configures a Composer.
type Option func(*Composer) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Composer) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger.With("component", "qa")
		return nil
	}
}

// WithAliases replaces the mention vocabulary used to detect questions about
// documents the user cannot read. Mentions are reported in slice order.
func WithAliases(aliases []access.Alias) Option {
	return func(c *Composer) error {
		if err := access.ValidateAliases(aliases); err != nil {
			return err
		}
		c.aliases = make([]access.Alias, len(aliases))
		for i, alias := range aliases {
			c.aliases[i] = access.Alias{Name: strings.ToLower(alias.Name), Document: alias.Document}
		}
		return nil
	}
}

// WithTopK sets how many chunks are retrieved and combined.
func WithTopK(k int) Option {
	return func(c *Composer) error {
		if k < 1 {
			return fmt.Errorf("top k must be at least 1: %d", k)
		}
		c.topK = k
		return nil
	}
}

// WithThreshold sets the minimum similarity a chunk needs to be used.
func WithThreshold(threshold float64) Option {
	return func(c *Composer) error {
		if threshold < -1 || threshold > 1 {
			return fmt.Errorf("threshold must be within [-1, 1]: %v", threshold)
		}
		c.threshold = threshold
		return nil
	}
}

// WithContextTurns sets how many previous turns are folded into a query.
func WithContextTurns(n int) Option {
	return func(c *Composer) error {
		if n < 0 {
			return fmt.Errorf("context turns must not be negative: %d", n)
		}
		c.contextTurns = n
		return nil
	}
}

// WithTracer sets the tracer for answer spans.
// Default is the global provider's tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Composer) error {
		if tracer != nil {
			c.tracer = tracer
		}
		return nil
	}
}

// NewComposer creates a Composer.
func NewComposer(gate access.Gate, retriever Retriever, conversations Conversations, opts ...Option) (*Composer, error) {
	if gate == nil {
		return nil, ErrGateRequired
	}
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}
	if conversations == nil {
		return nil, ErrConversationsRequired
	}

	c := &Composer{
		gate:          gate,
		retriever:     retriever,
		conversations: conversations,
		aliases:       access.DefaultAliases(),
		topK:          DefaultTopK,
		threshold:     DefaultThreshold,
		contextTurns:  DefaultContextTurns,
		tracer:        otel.Tracer(TracerName),
		logger:        slog.Default().With("component", "qa"),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Answer answers query for userID.
func (c *Composer) Answer(ctx context.Context, userID, query string, useContext bool) (*core.Answer, error) {
	return c.AnswerWithMonitor(ctx, userID, query, useContext, nil)
}

// AnswerWithMonitor is Answer with retrieval stages reported to monitor.
//
// Refusals, empty retrievals and below-threshold results are normal answers.
// The only error is a retrieval fault, wrapped in ErrRetrievalFailed.
// Conversation failures are logged and do not change the answer.
func (c *Composer) AnswerWithMonitor(ctx context.Context, userID, query string, useContext bool, monitor search.Monitor) (*core.Answer, error) {
	ctx, span := c.tracer.Start(ctx, "qa.answer",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.Bool("qa.use_context", useContext),
			attribute.Int("qa.query_length", len(query)),
		),
	)
	defer span.End()

	allowed := c.gate.AllowedDocuments(userID)
	allowedSorted := allowed.Sorted()
	span.SetAttributes(attribute.Int("qa.allowed_documents", len(allowedSorted)))

	if mentioned := c.unauthorizedMentions(query, allowed); len(mentioned) > 0 {
		c.logger.Info("refusing question about inaccessible documents", "user", userID, "mentioned", mentioned)
		span.SetAttributes(attribute.String("qa.outcome", OutcomeRefused))
		return &core.Answer{
			Answer:  refusalMessage(mentioned, allowedSorted),
			Sources: []core.Source{},
		}, nil
	}

	searchQuery := query
	contextUsed := false
	if useContext && c.contextTurns > 0 {
		history, err := c.conversations.RecentContext(ctx, userID, c.contextTurns)
		if err != nil {
			c.logger.Warn("error reading conversation context", "user", userID, "err", err)
		} else if history != "" {
			searchQuery = query + contextHeader + history
			contextUsed = true
		}
	}

	filter := index.AllowOnly(allowed)
	results, err := c.retriever.RetrieveWithMonitor(ctx, searchQuery, filter, c.topK, monitor)
	if err == nil && len(results) == 0 && contextUsed {
		c.logger.Debug("no results with context, retrying without", "user", userID)
		contextUsed = false
		results, err = c.retriever.RetrieveWithMonitor(ctx, query, filter, c.topK, monitor)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %w", ErrRetrievalFailed, err)
	}

	answer := &core.Answer{Sources: []core.Source{}, ContextUsed: contextUsed}
	outcome := OutcomeAnswered

	if len(results) == 0 {
		answer.Answer = noResultsMessage
		outcome = OutcomeNoResults
	} else {
		relevant := make([]core.SearchResult, 0, len(results))
		for _, result := range results {
			if !allowed.Contains(result.Chunk.Document) {
				c.logger.Warn("dropping result from inaccessible document",
					"user", userID, "document", result.Chunk.Document)
				continue
			}
			if result.Similarity >= c.threshold {
				relevant = append(relevant, result)
			}
		}

		if len(relevant) == 0 {
			answer.Answer = belowThresholdMessage(allowedSorted, c.threshold)
			outcome = OutcomeBelowThreshold
		} else {
			answer.Answer, answer.Sources = c.compose(relevant)
		}
	}

	span.SetAttributes(
		attribute.String("qa.outcome", outcome),
		attribute.Bool("qa.context_used", answer.ContextUsed),
		attribute.Int("qa.sources", len(answer.Sources)),
	)

	documents := make([]string, len(answer.Sources))
	for i, source := range answer.Sources {
		documents[i] = source.Document
	}
	turn := core.Turn{
		Query:               query,
		Answer:              answer.Answer,
		ReferencedDocuments: strings.Join(documents, "; "),
	}
	if err := c.conversations.Append(ctx, userID, turn); err != nil {
		c.logger.Warn("error recording conversation turn", "user", userID, "err", err)
	}

	return answer, nil
}

// unauthorizedMentions returns, in vocabulary order, the uppercased aliases
// found in query whose document is not allowed.
func (c *Composer) unauthorizedMentions(query string, allowed core.DocumentSet) []string {
	lowered := strings.ToLower(query)
	var mentioned []string
	for _, alias := range c.aliases {
		if strings.Contains(lowered, alias.Name) && !allowed.Contains(alias.Document) {
			mentioned = append(mentioned, strings.ToUpper(alias.Name))
		}
	}
	return mentioned
}

// compose joins the best results into answer text and lists their sources.
func (c *Composer) compose(results []core.SearchResult) (string, []core.Source) {
	if len(results) > c.topK {
		results = results[:c.topK]
	}

	parts := make([]string, len(results))
	sources := make([]core.Source, len(results))
	for i, result := range results {
		parts[i] = result.Chunk.Text
		sources[i] = core.Source{
			Document:   result.Chunk.Document,
			Page:       result.Chunk.Page,
			Similarity: fmt.Sprintf("%.2f", result.Similarity),
		}
	}

	text := strings.Join(parts, "\n\n")
	if truncated, cut := truncateRunes(text, maxAnswerRunes); cut {
		text = truncated + "..."
	}
	return text, sources
}

// truncateRunes returns the first n runes of s and whether anything was cut.
func truncateRunes(s string, n int) (string, bool) {
	count := 0
	for i := range s {
		if count == n {
			return s[:i], true
		}
		count++
	}
	return s, false
}
