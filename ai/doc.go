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


// Package ai provides abstractions for the embedding model used by docqa.
//
// The index, the retriever, and the ingestion pipeline depend on the Embedder
// interface rather than on a concrete client, so the model can be swapped or
// faked in tests.
//
// # Implementation Packages
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, openai.NewEmbedder) return INTERFACE
// types. Test utility constructors (mock.NewMockEmbedder) return CONCRETE types
// so tests can inject behavior and inspect call counts.
//
// # Lazy Construction
//
// LazyEmbedder defers building the real client until the first embedding call.
// It is safe for concurrent use and builds the client exactly once on success:
//
//	embedder := ai.NewLazyEmbedder(func() (ai.Embedder, error) {
//	    return openai.NewEmbedder(ai.DefaultConfig())
//	})
//	vec, err := embedder.EmbedText(ctx, "quarterly revenue")
package ai
