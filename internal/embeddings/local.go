package embeddings

import (
	"context"
	"crypto/sha1"
	"strings"
)

// LocalEmbedder is an offline, deterministic embedder. Each token hashes to a
// pseudo-random vector and the text vector is their sum, so texts that share
// words point in similar directions.
type LocalEmbedder struct {
	dim int
}

func NewLocal(dim int) *LocalEmbedder { return &LocalEmbedder{dim: dim} }

func (e *LocalEmbedder) ModelName() string { return "local-fixed" }

func (e *LocalEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vecs[i] = textToVector(t, e.dim)
	}
	return vecs, nil
}

func (e *LocalEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return textToVector(text, e.dim), nil
}

func textToVector(s string, dim int) []float32 {
	vec := make([]float32, dim)
	tokens := strings.Fields(strings.ToLower(s))
	if len(tokens) == 0 {
		tokens = []string{s}
	}
	for _, tok := range tokens {
		h := hashToVector(tok, dim)
		for i := range vec {
			vec[i] += h[i]
		}
	}
	return vec
}

func hashToVector(s string, dim int) []float32 {
	h := sha1.Sum([]byte(s))
	vec := make([]float32, dim)
	for i := 0; i < dim; i++ {
		// repeat hash bytes to fill dim and normalize roughly
		b := h[i%len(h)] ^ byte(i/len(h))
		vec[i] = (float32(int8(b)) / 127.0)
	}
	return vec
}
