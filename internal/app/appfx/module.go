package appfx

import (
	"github.com/0x5457/embedcheck/cmd/cmdsfx"
	"github.com/0x5457/embedcheck/internal/config/configfx"
	"github.com/0x5457/embedcheck/internal/conformance/conformancefx"
	"github.com/0x5457/embedcheck/internal/embeddings/embeddingsfx"
	"github.com/0x5457/embedcheck/internal/logging/loggingfx"
	"github.com/0x5457/embedcheck/internal/mcp/mcpfx"
	"github.com/0x5457/embedcheck/internal/remote/remotefx"
	"github.com/0x5457/embedcheck/internal/search/searchfx"
	"github.com/0x5457/embedcheck/internal/storage/storagefx"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

// Module combines all application modules
var Module = fx.Options(
	configfx.Module,
	loggingfx.Module,
	embeddingsfx.Module,
	storagefx.Module,
	searchfx.Module,
	remotefx.Module,
	conformancefx.Module,
	mcpfx.Module,
	cmdsfx.Module,
)

// NewAppWithConfig creates an Fx app configured from v. Fx events go to the
// application logger at debug level.
func NewAppWithConfig(v *viper.Viper, opts ...fx.Option) *fx.App {
	return fx.New(
		Module,
		fx.Supply(v),
		fx.WithLogger(loggingfx.EventLogger),
		fx.Options(opts...),
	)
}

// NewApp creates an Fx app with default configuration
func NewApp(opts ...fx.Option) *fx.App {
	return fx.New(
		Module,
		fx.WithLogger(loggingfx.EventLogger),
		fx.Options(opts...),
	)
}
