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


package core

import (
	"fmt"
	"strings"
	"time"
)

// ValidateChunkInput validates a chunk before it is embedded.
//
// Validation rules:
//   - Text must contain something other than whitespace
//   - Page must be 1 or greater
func ValidateChunkInput(chunk ChunkInput) error {
	if strings.TrimSpace(chunk.Text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}
	if chunk.Page < 1 {
		return fmt.Errorf("%w: %w: got %d", ErrInvalidChunk, ErrInvalidPage, chunk.Page)
	}
	return nil
}

// ValidateTurn validates a conversation Turn.
//
// Validation rules:
//   - Timestamp must not be in the future
//
// NOT validated:
//   - Query (an empty question still gets an answer, which is recorded)
//   - Answer (no-result answers are still recorded)
//   - ReferencedDocuments (empty when no sources were used)
func ValidateTurn(turn *Turn) error {
	if turn == nil {
		return fmt.Errorf("%w: turn is nil", ErrInvalidTurn)
	}

	if !IsValidTimestamp(turn.Timestamp) {
		return fmt.Errorf("%w: %w", ErrInvalidTurn, ErrInvalidTimestamp)
	}

	return nil
}

// IsValidTimestamp checks if a timestamp is valid (not in the future).
func IsValidTimestamp(ts time.Time) bool {
	return !ts.After(time.Now())
}
