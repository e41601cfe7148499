package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage"
)

// ConversationRepository implements storage.ConversationRepository for BadgerDB.
// Turns are keyed by user and a global sequence, so a prefix scan over one user
// yields their turns in append order.
type ConversationRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.ConversationRepository = (*ConversationRepository)(nil)

// NewConversationRepository creates a new ConversationRepository.
func NewConversationRepository(backend *Backend) (*ConversationRepository, error) {
	idSeq, err := backend.GetSequence(turnIDSeq)
	if err != nil {
		return nil, err
	}

	return &ConversationRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *ConversationRepository) Close() error {
	return r.idSeq.Release()
}

// AppendTurn stores a turn at the end of the user's conversation.
func (r *ConversationRepository) AppendTurn(ctx context.Context, userID string, turn *core.Turn) error {
	if userID == "" {
		return core.ErrEmptyUserID
	}
	if err := core.ValidateTurn(turn); err != nil {
		return err
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		nextID, err := r.idSeq.Next()
		if err != nil {
			return err
		}
		// BadgerDB sequences can return 0 on first call, so we skip it
		if nextID == 0 {
			nextID, err = r.idSeq.Next()
			if err != nil {
				return err
			}
		}

		if err := tx.Set(makeTurnKey(userID, nextID), storage.MarshalTurn(turn)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// RecentTurns returns up to limit of the user's most recent turns, oldest first.
func (r *ConversationRepository) RecentTurns(ctx context.Context, userID string, limit int) ([]core.Turn, error) {
	if userID == "" {
		return nil, core.ErrEmptyUserID
	}
	if limit <= 0 {
		return []core.Turn{}, nil
	}

	turns := make([]core.Turn, 0, limit)
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = makeTurnUserPrefix(userID)
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Seek(makeLastTurnKey(userID)); it.Valid() && len(turns) < limit; it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var turn *core.Turn
			err := it.Item().Value(func(val []byte) error {
				var err error
				turn, err = storage.UnmarshalTurn(val)
				return err
			})
			if err != nil {
				return err
			}
			turns = append(turns, *turn)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.Reverse(turns)
	return turns, nil
}

// ClearTurns deletes every turn for the user and reports how many were removed.
func (r *ConversationRepository) ClearTurns(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, core.ErrEmptyUserID
	}

	removed := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var keys [][]byte
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = makeTurnUserPrefix(userID)
		it := tx.NewIterator(opts)
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		removed = len(keys)
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}
	return removed, nil
}
