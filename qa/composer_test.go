package qa

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/poiesic/docqa/access"
	"github.com/poiesic/docqa/ai/mock"
	"github.com/poiesic/docqa/conversation"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/index"
	"github.com/poiesic/docqa/search"
	"github.com/poiesic/docqa/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	docA = "company_a_earnings.pdf"
	docB = "company_b_earnings.pdf"
	docC = "company_c_earnings.pdf"

	textA = "Company A revenue grew to 4.2 billion dollars in the third quarter."
	textB = "Company B margins fell because of higher supply chain costs."
	textC = "Company C margins held steady while it announced a share buyback."
)

type harness struct {
	composer      *Composer
	conversations *conversation.Manager
	embedder      *mock.MockEmbedder
	store         *index.Store
}

// queryVector maps the first line of a query to a 2D vector so fused queries
// embed like the question they start with.
func queryVector(text string) []float32 {
	first, _, _ := strings.Cut(text, "\n")
	first = strings.ToLower(first)
	switch {
	case strings.HasPrefix(first, "fallback") && strings.Contains(text, "Context from previous conversation"):
		return []float32{0, 0}
	case strings.Contains(first, "revenue"):
		return []float32{1, 0}
	case strings.Contains(first, "margins"):
		return []float32{0, 1}
	case strings.Contains(first, "weather"):
		return []float32{-1, 0}
	}
	return []float32{0.7, 0.7}
}

func newHarness(t *testing.T, gate access.Gate, opts ...Option) *harness {
	t.Helper()
	ctx := context.Background()

	chunkVectors := map[string][]float32{
		textA: {1, 0},
		textB: {0, 1},
		textC: {0.6, 0.8},
	}
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if vec, ok := chunkVectors[text]; ok {
			return vec, nil
		}
		return queryVector(text), nil
	}

	store, err := index.NewStore(embedder)
	require.NoError(t, err)
	require.NoError(t, store.Insert(ctx, docA, []core.ChunkInput{{Text: textA, Page: 1}}))
	require.NoError(t, store.Insert(ctx, docB, []core.ChunkInput{{Text: textB, Page: 2}}))
	require.NoError(t, store.Insert(ctx, docC, []core.ChunkInput{{Text: textC, Page: 3}}))

	retriever, err := search.NewRetriever(store, embedder)
	require.NoError(t, err)

	repo, backend, err := badger.NewMemoryConversationRepository()
	require.NoError(t, err)
	manager, err := conversation.NewManager(repo)
	require.NoError(t, err)

	composer, err := NewComposer(gate, retriever, manager, opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Release()
		repo.Close()
		backend.Close()
	})

	return &harness{composer: composer, conversations: manager, embedder: embedder, store: store}
}

func (h *harness) history(t *testing.T, user string) []core.Turn {
	t.Helper()
	turns, err := h.conversations.History(context.Background(), user, 100)
	require.NoError(t, err)
	return turns
}

func TestAnswer_AuthorizedQuestion(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, access.DefaultTable())

	answer, err := h.composer.Answer(ctx, "alice@email.com", "What was revenue growth?", true)
	require.NoError(t, err)

	assert.Equal(t, textA, answer.Answer)
	assert.Equal(t, []core.Source{{Document: docA, Page: 1, Similarity: "1.00"}}, answer.Sources)
	assert.False(t, answer.ContextUsed, "no history yet")

	turns := h.history(t, "alice@email.com")
	require.Len(t, turns, 1)
	assert.Equal(t, "What was revenue growth?", turns[0].Query)
	assert.Equal(t, textA, turns[0].Answer)
	assert.Equal(t, docA, turns[0].ReferencedDocuments)
}

func TestAnswer_RanksAcrossAllowedDocuments(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, access.DefaultTable())

	answer, err := h.composer.Answer(ctx, "bob@email.com", "How did margins change?", false)
	require.NoError(t, err)

	assert.Equal(t, textB+"\n\n"+textC, answer.Answer)
	assert.Equal(t, []core.Source{
		{Document: docB, Page: 2, Similarity: "1.00"},
		{Document: docC, Page: 3, Similarity: "0.80"},
	}, answer.Sources)

	turns := h.history(t, "bob@email.com")
	require.Len(t, turns, 1)
	assert.Equal(t, docB+"; "+docC, turns[0].ReferencedDocuments)
}

func TestAnswer_RefusesUnauthorizedMentions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, access.DefaultTable())

	t.Run("single mention", func(t *testing.T) {
		answer, err := h.composer.Answer(ctx, "alice@email.com", "What about Company B margins?", true)
		require.NoError(t, err)
		assert.Equal(t, "I don't have access to information about COMPANY B. "+
			"I can only search within the documents you have access to: company_a_earnings.pdf. "+
			"Please ask questions about the companies I have access to.", answer.Answer)
		assert.Empty(t, answer.Sources)
		assert.False(t, answer.ContextUsed)
	})

	t.Run("mentions reported in vocabulary order", func(t *testing.T) {
		answer, err := h.composer.Answer(ctx, "alice@email.com", "compare company c with COMPANY_B", false)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(answer.Answer,
			"I don't have access to information about COMPANY_B, COMPANY C. "), answer.Answer)
	})

	t.Run("allowed list is sorted", func(t *testing.T) {
		answer, err := h.composer.Answer(ctx, "test2@email.com", "company_e outlook", false)
		require.NoError(t, err)
		assert.Contains(t, answer.Answer, "you have access to: company_a_earnings.pdf, company_b_earnings.pdf.")
	})

	t.Run("refusals are not recorded and skip retrieval", func(t *testing.T) {
		h.embedder.Reset()
		h.embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
			return queryVector(text), nil
		}
		_, err := h.composer.Answer(ctx, "charlie@email.com", "company a revenue", true)
		require.NoError(t, err)
		assert.Equal(t, 0, h.embedder.CallCount())
		assert.Empty(t, h.history(t, "charlie@email.com"))
		assert.Empty(t, h.history(t, "alice@email.com"))
	})
}

func TestAnswer_AuthorizedMentionIsAnswered(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, access.DefaultTable())

	answer, err := h.composer.Answer(ctx, "bob@email.com", "company b margins", false)
	require.NoError(t, err)
	require.NotEmpty(t, answer.Sources)
	assert.Equal(t, docB, answer.Sources[0].Document)
}

func TestAnswer_ContextFusion(t *testing.T) {
	ctx := context.Background()

	t.Run("uses recent history", func(t *testing.T) {
		h := newHarness(t, access.DefaultTable())
		_, err := h.composer.Answer(ctx, "alice@email.com", "What was revenue growth?", true)
		require.NoError(t, err)

		var embedded []string
		h.embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
			embedded = append(embedded, text)
			return queryVector(text), nil
		}

		answer, err := h.composer.Answer(ctx, "alice@email.com", "Tell me more about revenue", true)
		require.NoError(t, err)
		assert.True(t, answer.ContextUsed)
		require.Len(t, embedded, 1)
		assert.Equal(t, "Tell me more about revenue\n\nContext from previous conversation:\n"+
			"Previous question: What was revenue growth?\n"+
			"Previous answer: "+textA+"...", embedded[0])

		turns := h.history(t, "alice@email.com")
		require.Len(t, turns, 2)
		assert.Equal(t, "Tell me more about revenue", turns[1].Query, "the raw query is recorded")
	})

	t.Run("disabled context", func(t *testing.T) {
		h := newHarness(t, access.DefaultTable())
		_, err := h.composer.Answer(ctx, "alice@email.com", "revenue?", true)
		require.NoError(t, err)

		answer, err := h.composer.Answer(ctx, "alice@email.com", "revenue again?", false)
		require.NoError(t, err)
		assert.False(t, answer.ContextUsed)
	})

	t.Run("falls back to raw query", func(t *testing.T) {
		h := newHarness(t, access.DefaultTable())
		_, err := h.composer.Answer(ctx, "alice@email.com", "revenue?", true)
		require.NoError(t, err)

		answer, err := h.composer.Answer(ctx, "alice@email.com", "fallback revenue", true)
		require.NoError(t, err)
		assert.False(t, answer.ContextUsed)
		assert.Equal(t, textA, answer.Answer)
	})
}

func TestAnswer_BelowThreshold(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, access.DefaultTable())

	answer, err := h.composer.Answer(ctx, "alice@email.com", "weather forecast", false)
	require.NoError(t, err)
	assert.Equal(t, "I couldn't find highly relevant information in the documents you have access to "+
		"(company_a_earnings.pdf). The search results didn't meet the relevance threshold "+
		"(minimum similarity: 0.40). Please try rephrasing your question or asking about topics "+
		"that might be in your accessible documents.", answer.Answer)
	assert.Empty(t, answer.Sources)

	turns := h.history(t, "alice@email.com")
	require.Len(t, turns, 1)
	assert.Equal(t, "", turns[0].ReferencedDocuments)
}

func TestAnswer_NoAccessibleDocuments(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, access.DefaultTable())
	h.embedder.Reset()

	answer, err := h.composer.Answer(ctx, "mallory@email.com", "revenue?", false)
	require.NoError(t, err)
	assert.Equal(t, "I couldn't find relevant information in the documents you have access to. "+
		"Please try rephrasing your question.", answer.Answer)
	assert.Empty(t, answer.Sources)
	assert.Equal(t, 0, h.embedder.CallCount(), "nothing to search, so nothing is embedded")
	assert.Len(t, h.history(t, "mallory@email.com"), 1)
}

func TestAnswer_TruncatesLongAnswers(t *testing.T) {
	ctx := context.Background()
	table := access.NewTable(map[string][]string{"reader": {"long.pdf"}})
	h := newHarness(t, table)

	long := strings.Repeat("é", 500)
	inputs := []core.ChunkInput{
		{Text: "revenue " + long, Page: 1},
		{Text: "revenue " + long, Page: 2},
		{Text: "revenue " + long, Page: 3},
	}
	require.NoError(t, h.store.Insert(ctx, "long.pdf", inputs))

	answer, err := h.composer.Answer(ctx, "reader", "revenue", false)
	require.NoError(t, err)
	assert.Len(t, answer.Sources, 3)
	assert.Equal(t, 1003, utf8.RuneCountInString(answer.Answer))
	assert.True(t, strings.HasSuffix(answer.Answer, "..."))
}

// leakyRetriever returns fixed results regardless of the filter.
type leakyRetriever struct {
	results []core.SearchResult
	err     error
}

func (l *leakyRetriever) RetrieveWithMonitor(ctx context.Context, query string, filter index.Filter, topK int, monitor search.Monitor) ([]core.SearchResult, error) {
	return l.results, l.err
}

type memoryConversations struct {
	turns     []core.Turn
	appendErr error
}

func (m *memoryConversations) Append(ctx context.Context, userID string, turn core.Turn) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.turns = append(m.turns, turn)
	return nil
}

func (m *memoryConversations) RecentContext(ctx context.Context, userID string, maxEntries int) (string, error) {
	return "", nil
}

func TestAnswer_DropsResultsOutsideAllowedSet(t *testing.T) {
	ctx := context.Background()
	retriever := &leakyRetriever{results: []core.SearchResult{
		{Chunk: core.Chunk{Text: textB, Document: docB, Page: 2}, Similarity: 0.95},
		{Chunk: core.Chunk{Text: textA, Document: docA, Page: 1}, Similarity: 0.90, Rank: 1},
	}}
	conversations := &memoryConversations{}
	composer, err := NewComposer(access.DefaultTable(), retriever, conversations)
	require.NoError(t, err)

	answer, err := composer.Answer(ctx, "alice@email.com", "anything", false)
	require.NoError(t, err)
	assert.Equal(t, textA, answer.Answer)
	assert.Equal(t, []core.Source{{Document: docA, Page: 1, Similarity: "0.90"}}, answer.Sources)

	t.Run("only leaked results", func(t *testing.T) {
		retriever.results = retriever.results[:1]
		answer, err := composer.Answer(ctx, "alice@email.com", "anything", false)
		require.NoError(t, err)
		assert.Contains(t, answer.Answer, "relevance threshold")
		assert.Empty(t, answer.Sources)
	})
}

func TestAnswer_RetrievalFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, access.DefaultTable())
	h.embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("connection refused")
	}

	_, err := h.composer.Answer(ctx, "alice@email.com", "revenue?", false)
	assert.ErrorIs(t, err, ErrRetrievalFailed)
	assert.ErrorIs(t, err, search.ErrQueryEmbedding)
	assert.Empty(t, h.history(t, "alice@email.com"))
}

func TestAnswer_ConversationFailureDoesNotFailAnswer(t *testing.T) {
	ctx := context.Background()
	retriever := &leakyRetriever{results: []core.SearchResult{
		{Chunk: core.Chunk{Text: textA, Document: docA, Page: 1}, Similarity: 0.9},
	}}
	conversations := &memoryConversations{appendErr: errors.New("disk full")}
	composer, err := NewComposer(access.DefaultTable(), retriever, conversations)
	require.NoError(t, err)

	answer, err := composer.Answer(ctx, "alice@email.com", "revenue?", true)
	require.NoError(t, err)
	assert.Equal(t, textA, answer.Answer)
}

func TestAnswer_CustomAliasesAndThreshold(t *testing.T) {
	ctx := context.Background()
	retriever := &leakyRetriever{results: []core.SearchResult{
		{Chunk: core.Chunk{Text: "Acme shipped.", Document: "acme.pdf", Page: 1}, Similarity: 0.3},
	}}
	table := access.NewTable(map[string][]string{"dana": {"acme.pdf"}})
	conversations := &memoryConversations{}
	composer, err := NewComposer(table, retriever, conversations,
		WithAliases([]access.Alias{{Name: "Globex", Document: "globex.pdf"}}),
		WithThreshold(0.25),
	)
	require.NoError(t, err)

	answer, err := composer.Answer(ctx, "dana", "how is GLOBEX doing", false)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(answer.Answer, "I don't have access to information about GLOBEX."))

	answer, err = composer.Answer(ctx, "dana", "company_b shipments", false)
	require.NoError(t, err)
	assert.Equal(t, "Acme shipped.", answer.Answer, "default vocabulary was replaced")
	assert.Equal(t, "0.30", answer.Sources[0].Similarity)
}

func TestAnswer_RelevanceThreshold(t *testing.T) {
	bobDocs := []string{docB, "company_c_earnings.pdf"}

	tests := []struct {
		name        string
		similarity  float64
		wantSources []core.Source
		wantAnswer  string
	}{
		{
			name:        "kept at exactly the threshold",
			similarity:  0.40,
			wantSources: []core.Source{{Document: docB, Page: 1, Similarity: "0.40"}},
			wantAnswer:  "Company B margins fell.",
		},
		{
			name:        "kept above the threshold",
			similarity:  0.55,
			wantSources: []core.Source{{Document: docB, Page: 1, Similarity: "0.55"}},
			wantAnswer:  "Company B margins fell.",
		},
		{
			name:        "dropped just below the threshold",
			similarity:  0.3999,
			wantSources: []core.Source{},
			wantAnswer:  belowThresholdMessage(bobDocs, DefaultThreshold),
		},
		{
			name:        "dropped well below the threshold",
			similarity:  0.20,
			wantSources: []core.Source{},
			wantAnswer:  belowThresholdMessage(bobDocs, DefaultThreshold),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retriever := &leakyRetriever{results: []core.SearchResult{
				{Chunk: core.Chunk{Text: "Company B margins fell.", Document: docB, Page: 1}, Similarity: tt.similarity},
			}}
			conversations := &memoryConversations{}
			composer, err := NewComposer(access.DefaultTable(), retriever, conversations)
			require.NoError(t, err)

			answer, err := composer.Answer(context.Background(), "bob@email.com", "How did margins change?", false)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAnswer, answer.Answer)
			assert.Equal(t, tt.wantSources, answer.Sources)
			assert.Len(t, conversations.turns, 1)
		})
	}
}

func TestAnswer_RefusesMentionWithoutSearching(t *testing.T) {
	retriever := &leakyRetriever{results: []core.SearchResult{
		{Chunk: core.Chunk{Text: textA, Document: docA, Page: 1}, Similarity: 0.99},
	}}
	conversations := &memoryConversations{}
	table := access.NewTable(map[string][]string{"dana@email.com": {docB}})
	composer, err := NewComposer(table, retriever, conversations)
	require.NoError(t, err)

	answer, err := composer.Answer(context.Background(), "dana@email.com", "What were company a's earnings?", true)
	require.NoError(t, err)
	assert.Equal(t, refusalMessage([]string{"COMPANY A"}, []string{docB}), answer.Answer)
	assert.Empty(t, answer.Sources)
	assert.False(t, answer.ContextUsed)
	assert.Empty(t, conversations.turns)
}

func TestAnswer_EmptyQueryIsRecorded(t *testing.T) {
	h := newHarness(t, access.DefaultTable())

	answer, err := h.composer.Answer(context.Background(), "alice@email.com", "", false)
	require.NoError(t, err)

	turns := h.history(t, "alice@email.com")
	require.Len(t, turns, 1)
	assert.Empty(t, turns[0].Query)
	assert.Equal(t, answer.Answer, turns[0].Answer)
}

func TestNewComposer_Validation(t *testing.T) {
	retriever := &leakyRetriever{}
	conversations := &memoryConversations{}
	gate := access.DefaultTable()

	_, err := NewComposer(nil, retriever, conversations)
	assert.ErrorIs(t, err, ErrGateRequired)
	_, err = NewComposer(gate, nil, conversations)
	assert.ErrorIs(t, err, ErrRetrieverRequired)
	_, err = NewComposer(gate, retriever, nil)
	assert.ErrorIs(t, err, ErrConversationsRequired)

	_, err = NewComposer(gate, retriever, conversations, WithTopK(0))
	assert.Error(t, err)
	_, err = NewComposer(gate, retriever, conversations, WithThreshold(1.5))
	assert.Error(t, err)
	_, err = NewComposer(gate, retriever, conversations, WithContextTurns(-1))
	assert.Error(t, err)
	_, err = NewComposer(gate, retriever, conversations, WithAliases([]access.Alias{{Name: ""}}))
	assert.ErrorIs(t, err, access.ErrEmptyAliasName)
}

func TestTruncateRunes(t *testing.T) {
	got, cut := truncateRunes("héllo", 3)
	assert.Equal(t, "hél", got)
	assert.True(t, cut)

	got, cut = truncateRunes("héllo", 5)
	assert.Equal(t, "héllo", got)
	assert.False(t, cut)
}
