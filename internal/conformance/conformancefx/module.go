package conformancefx

import (
	"github.com/0x5457/embedcheck/internal/compare"
	"github.com/0x5457/embedcheck/internal/config/configfx"
	"github.com/0x5457/embedcheck/internal/conformance"
	"github.com/0x5457/embedcheck/internal/remote"
	"github.com/0x5457/embedcheck/internal/search"
	"github.com/0x5457/embedcheck/internal/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params represents dependencies for the conformance suite
type Params struct {
	fx.In

	Config    *configfx.Config
	Reference *search.Service
	Remote    remote.Client
	Store     storage.ReportStore `optional:"true"`
	Logger    *zap.Logger         `optional:"true"`
}

// NewSuite creates a conformance suite for the configured target
func NewSuite(params Params) *conformance.Suite {
	return &conformance.Suite{
		Reference:  params.Reference,
		Remote:     params.Remote,
		Comparator: compare.New(compare.WithTolerance(params.Config.Tolerance)),
		Store:      params.Store,
		Logger:     params.Logger,
		ModelID:    params.Config.ModelID,
		Target:     params.Config.Target(),
	}
}

// Module provides the conformance suite
var Module = fx.Module("conformance",
	fx.Provide(NewSuite),
)
