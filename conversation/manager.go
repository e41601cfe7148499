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


// Package conversation keeps per-user question and answer history and renders
// it as context for follow-up questions.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage"
)

const (
	// contextAnswerRunes is how much of each previous answer is carried into context.
	contextAnswerRunes = 200
)

// Manager serializes each user's conversation operations. Different users
// proceed in parallel.
type Manager struct {
	repo   storage.ConversationRepository
	logger *slog.Logger
	locks  sync.Map // userID -> *sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager) error

// WithLogger sets a custom logger for the manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) error {
		if logger == nil {
			logger = slog.Default()
		}
		m.logger = logger.With("component", "conversation")
		return nil
	}
}

// NewManager creates a Manager on top of repo.
func NewManager(repo storage.ConversationRepository, opts ...Option) (*Manager, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}

	m := &Manager{
		repo:   repo,
		logger: slog.Default().With("component", "conversation"),
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Manager) lockFor(userID string) *sync.Mutex {
	lock, _ := m.locks.LoadOrStore(userID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// Append records a turn at the end of the user's history, creating the history
// on first use. A zero Timestamp is set to the current time.
func (m *Manager) Append(ctx context.Context, userID string, turn core.Turn) error {
	if userID == "" {
		return core.ErrEmptyUserID
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}
	if err := core.ValidateTurn(&turn); err != nil {
		return err
	}

	lock := m.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	if err := m.repo.AppendTurn(ctx, userID, &turn); err != nil {
		return err
	}
	m.logger.Debug("turn recorded", "user", userID, "documents", turn.ReferencedDocuments)
	return nil
}

// RecentContext renders the user's last maxEntries turns, oldest first, as
//
//	Previous question: <query>
//	Previous answer: <first 200 runes of answer>...
//
// joined with newlines. It returns "" when the user has no history.
func (m *Manager) RecentContext(ctx context.Context, userID string, maxEntries int) (string, error) {
	if maxEntries <= 0 || userID == "" {
		return "", nil
	}

	lock := m.lockFor(userID)
	lock.Lock()
	turns, err := m.repo.RecentTurns(ctx, userID, maxEntries)
	lock.Unlock()
	if err != nil {
		return "", err
	}

	if len(turns) == 0 {
		return "", nil
	}

	lines := make([]string, 0, len(turns)*2)
	for _, turn := range turns {
		lines = append(lines,
			fmt.Sprintf("Previous question: %s", turn.Query),
			fmt.Sprintf("Previous answer: %s...", truncateRunes(turn.Answer, contextAnswerRunes)),
		)
	}
	return strings.Join(lines, "\n"), nil
}

// Clear removes the user's history. Unknown users are a no-op.
func (m *Manager) Clear(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}

	lock := m.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	removed, err := m.repo.ClearTurns(ctx, userID)
	if err != nil {
		return err
	}
	m.logger.Debug("conversation cleared", "user", userID, "turns", removed)
	return nil
}

// History returns up to limit of the user's most recent turns, oldest first.
func (m *Manager) History(ctx context.Context, userID string, limit int) ([]core.Turn, error) {
	if userID == "" {
		return nil, core.ErrEmptyUserID
	}

	lock := m.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	return m.repo.RecentTurns(ctx, userID, limit)
}

// truncateRunes returns at most n runes of s.
func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
