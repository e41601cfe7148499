// Package mock provides test double implementations of AI service interfaces.
//
// # Usage in Tests
//
//	// Deterministic hash-based vectors
//	embedder := mock.NewMockEmbedder()
//	vec, err := embedder.EmbedText(ctx, "test")
//
//	// Pin exact vectors to control similarity scores
//	embedder.WithVector("revenue growth", []float32{1, 0}).
//	    WithVector("Revenue grew 12% over the year.", []float32{0.55, 0.835})
//
//	// Inject failures
//	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
//	    return nil, errors.New("model offline")
//	}
//
//	count := embedder.CallCount()
package mock
