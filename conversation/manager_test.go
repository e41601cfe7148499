package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	repo, backend, err := badger.NewMemoryConversationRepository()
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})
	m, err := NewManager(repo)
	require.NoError(t, err)
	return m
}

func TestNewManager_RequiresRepository(t *testing.T) {
	_, err := NewManager(nil)
	assert.ErrorIs(t, err, ErrRepositoryRequired)
}

func TestRecentContext(t *testing.T) {
	ctx := context.Background()

	t.Run("empty history", func(t *testing.T) {
		m := newTestManager(t)
		got, err := m.RecentContext(ctx, "alice@email.com", 3)
		require.NoError(t, err)
		assert.Equal(t, "", got)
	})

	t.Run("single turn", func(t *testing.T) {
		m := newTestManager(t)
		require.NoError(t, m.Append(ctx, "alice@email.com", core.Turn{
			Query:  "What was Q3 revenue?",
			Answer: "Revenue grew 12%.",
		}))

		got, err := m.RecentContext(ctx, "alice@email.com", 3)
		require.NoError(t, err)
		assert.Equal(t, "Previous question: What was Q3 revenue?\nPrevious answer: Revenue grew 12%....", got)
	})

	t.Run("keeps last entries oldest first", func(t *testing.T) {
		m := newTestManager(t)
		for i := 1; i <= 5; i++ {
			require.NoError(t, m.Append(ctx, "bob", core.Turn{
				Query:  fmt.Sprintf("q%d", i),
				Answer: fmt.Sprintf("a%d", i),
			}))
		}

		got, err := m.RecentContext(ctx, "bob", 3)
		require.NoError(t, err)
		want := strings.Join([]string{
			"Previous question: q3", "Previous answer: a3...",
			"Previous question: q4", "Previous answer: a4...",
			"Previous question: q5", "Previous answer: a5...",
		}, "\n")
		assert.Equal(t, want, got)
	})

	t.Run("long answers are cut to 200 runes", func(t *testing.T) {
		m := newTestManager(t)
		answer := strings.Repeat("é", 250)
		require.NoError(t, m.Append(ctx, "carol", core.Turn{Query: "q", Answer: answer}))

		got, err := m.RecentContext(ctx, "carol", 3)
		require.NoError(t, err)
		assert.Equal(t, "Previous question: q\nPrevious answer: "+strings.Repeat("é", 200)+"...", got)
	})

	t.Run("does not modify history", func(t *testing.T) {
		m := newTestManager(t)
		require.NoError(t, m.Append(ctx, "dave", core.Turn{Query: "q", Answer: "a"}))
		_, err := m.RecentContext(ctx, "dave", 3)
		require.NoError(t, err)

		turns, err := m.History(ctx, "dave", 10)
		require.NoError(t, err)
		assert.Len(t, turns, 1)
	})
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	t.Run("unknown user is a no-op", func(t *testing.T) {
		assert.NoError(t, m.Clear(ctx, "ghost@email.com"))
	})

	t.Run("clears only the given user", func(t *testing.T) {
		require.NoError(t, m.Append(ctx, "alice", core.Turn{Query: "q1", Answer: "a1"}))
		require.NoError(t, m.Append(ctx, "bob", core.Turn{Query: "q2", Answer: "a2"}))

		require.NoError(t, m.Clear(ctx, "alice"))

		got, err := m.RecentContext(ctx, "alice", 3)
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = m.RecentContext(ctx, "bob", 3)
		require.NoError(t, err)
		assert.NotEmpty(t, got)
	})
}

func TestAppend_Validation(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	assert.ErrorIs(t, m.Append(ctx, "", core.Turn{Query: "q"}), core.ErrEmptyUserID)
	assert.ErrorIs(t, m.Append(ctx, "alice", core.Turn{Query: "q", Timestamp: time.Now().Add(time.Hour)}), core.ErrInvalidTurn)
	assert.NoError(t, m.Append(ctx, "alice", core.Turn{Answer: "a"}))
}

func TestAppend_ConcurrentUsers(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	users := []string{"alice", "bob", "charlie"}
	const perUser = 20

	var wg sync.WaitGroup
	for _, user := range users {
		for i := range perUser {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, m.Append(ctx, user, core.Turn{Query: fmt.Sprintf("%s-%d", user, i)}))
			}()
		}
	}
	wg.Wait()

	for _, user := range users {
		turns, err := m.History(ctx, user, 100)
		require.NoError(t, err)
		assert.Len(t, turns, perUser)
		for _, turn := range turns {
			assert.True(t, strings.HasPrefix(turn.Query, user+"-"))
		}
	}
}

type failingRepo struct{}

var errBroken = errors.New("broken")

func (failingRepo) AppendTurn(context.Context, string, *core.Turn) error { return errBroken }
func (failingRepo) RecentTurns(context.Context, string, int) ([]core.Turn, error) {
	return nil, errBroken
}
func (failingRepo) ClearTurns(context.Context, string) (int, error) { return 0, errBroken }
func (failingRepo) Close() error                                  { return nil }

func TestManager_PropagatesRepositoryErrors(t *testing.T) {
	ctx := context.Background()
	m, err := NewManager(failingRepo{})
	require.NoError(t, err)

	assert.ErrorIs(t, m.Append(ctx, "alice", core.Turn{Query: "q"}), errBroken)
	_, err = m.RecentContext(ctx, "alice", 3)
	assert.ErrorIs(t, err, errBroken)
	assert.ErrorIs(t, m.Clear(ctx, "alice"), errBroken)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "", truncateRunes("", 5))
	assert.Equal(t, "abc", truncateRunes("abc", 5))
	assert.Equal(t, "abc", truncateRunes("abc", 3))
	assert.Equal(t, "ab", truncateRunes("abc", 2))
	assert.Equal(t, "日本", truncateRunes("日本語", 2))
}
