package storage

import (
	"context"

	"github.com/poiesic/docqa/core"
)

// ConversationRepository stores each user's ordered conversation turns.
// Implementations must be thread-safe; callers serialize operations per user
// when they need read-modify-write consistency.
type ConversationRepository interface {
	// AppendTurn appends a turn to the end of userID's history,
	// creating the history on first use.
	AppendTurn(ctx context.Context, userID string, turn *core.Turn) error

	// RecentTurns returns up to limit of userID's most recent turns, oldest first.
	// Returns an empty slice for unknown users or limit <= 0.
	RecentTurns(ctx context.Context, userID string, limit int) ([]core.Turn, error)

	// ClearTurns removes all of userID's turns and reports how many were removed.
	// Clearing an unknown user is not an error.
	ClearTurns(ctx context.Context, userID string) (int, error)

	// Close releases resources held by the repository.
	Close() error
}
