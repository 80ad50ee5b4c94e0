package searchfx

import (
	"github.com/0x5457/embedcheck/internal/config/configfx"
	"github.com/0x5457/embedcheck/internal/embeddings"
	"github.com/0x5457/embedcheck/internal/search"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params represents dependencies for search service
type Params struct {
	fx.In

	Embedder embeddings.Embedder
	Config   *configfx.Config
	Logger   *zap.Logger `optional:"true"`
}

// NewSearchService creates a new search service instance
func NewSearchService(params Params) *search.Service {
	return &search.Service{
		Embedder: params.Embedder,
		Ranker:   search.Ranker{Workers: params.Config.Workers},
		Logger:   params.Logger, // Can be nil
	}
}

// Module provides search components
var Module = fx.Module("search",
	fx.Provide(NewSearchService),
)
