package embeddingsfx

import (
	"github.com/0x5457/embedcheck/internal/config/configfx"
	"github.com/0x5457/embedcheck/internal/embeddings"
	"go.uber.org/fx"
)

// LocalURL selects the offline hash embedder instead of an HTTP sidecar.
const LocalURL = "local"

// defaultLocalDimension matches all-MiniLM-L6-v2.
const defaultLocalDimension = 384

// Params represents dependencies for embeddings components
type Params struct {
	fx.In

	Config *configfx.Config
}

// NewEmbedder creates a new embedder instance
func NewEmbedder(params Params) embeddings.Embedder {
	cfg := params.Config
	if cfg.EmbedURL == LocalURL {
		dim := cfg.VectorDimension
		if dim <= 0 {
			dim = defaultLocalDimension
		}
		return NewLocalEmbedder(dim)
	}
	opts := []embeddings.ApiOption{embeddings.WithTimeout(cfg.Timeout)}
	if cfg.ModelID != "" {
		opts = append(opts, embeddings.WithModel(cfg.ModelID))
	}
	return embeddings.NewApi(cfg.EmbedURL, opts...)
}

// NewLocalEmbedder creates a local embedder for testing
func NewLocalEmbedder(dimension int) embeddings.Embedder {
	return embeddings.NewLocal(dimension)
}

// Module provides embeddings components
var Module = fx.Module("embeddings",
	fx.Provide(NewEmbedder),
)
