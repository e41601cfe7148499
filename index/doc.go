// Package index holds the in-memory chunk store and its access-filtered
// cosine similarity search.
//
//	store, err := index.NewStore(embedder)
//	err = store.Insert(ctx, "company_a_earnings.pdf", chunks)
//	hits, err := store.Search(queryVec, index.AllowOnly(allowed), 3)
package index
