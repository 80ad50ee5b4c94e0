package embeddings

import "context"

// Embedder maps text to dense vectors. Implementations must be deterministic for
// a fixed model.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	ModelName() string
}
