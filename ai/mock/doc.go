// Package mock provides test doubles for the ai interfaces.
//
// MockEmbedder returns deterministic unit vectors derived from an FNV hash of
// the text, so identical text always embeds identically. Behavior can be
// replaced per test:
//
//	embedder := mock.NewMockEmbedder().
//	    WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
//	        return []float32{0.1, 0.2, 0.3}, nil
//	    })
//
// Call counts are tracked atomically, so the mock can be shared with
// concurrent ingestion workers.
package mock
