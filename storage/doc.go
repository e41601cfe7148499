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


// Package storage provides the storage abstraction for conversation history.
//
// The chunk index is deliberately in memory and lives in package index; this
// package only covers per-user conversation turns, which may outlive a single
// request and optionally a process.
//
// # Constructor Return Type Pattern
//
// Backend packages return concrete repository types from their constructors and
// assert the interface at compile time:
//
//	var _ storage.ConversationRepository = (*ConversationRepository)(nil)
//
// Consumers such as conversation.Manager accept the interface, so tests and
// alternative backends plug in without changes.
//
// # Usage
//
// Create an on-disk repository:
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//	repo, err := badger.NewConversationRepository(backend)
//
// Use in tests with in-memory storage:
//
//	repo, backend, err := badger.NewMemoryConversationRepository()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
