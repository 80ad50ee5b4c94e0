package remotefx

import (
	"fmt"

	"github.com/0x5457/embedcheck/internal/config/configfx"
	"github.com/0x5457/embedcheck/internal/remote"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params represents dependencies for the remote client
type Params struct {
	fx.In

	Config    *configfx.Config
	Logger    *zap.Logger      `optional:"true"`
	Commander remote.Commander `optional:"true"`
}

// NewClient builds the client for the configured transport. An empty target
// is allowed here; commands that call out check it before running.
func NewClient(params Params) (remote.Client, error) {
	cfg := params.Config
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Transport {
	case remote.TransportHTTP:
		opts := []remote.HTTPOption{
			remote.WithHTTPTimeout(cfg.Timeout),
			remote.WithHTTPLogger(logger),
		}
		if cfg.Insecure {
			opts = append(opts, remote.WithInsecureTLS())
		}
		return remote.NewHTTP(cfg.TargetURL, cfg.ModelID, opts...), nil
	case remote.TransportGRPC:
		opts := []remote.GRPCOption{
			remote.WithInsecure(cfg.Insecure),
			remote.WithGRPCLogger(logger),
		}
		if params.Commander != nil {
			opts = append(opts, remote.WithCommander(params.Commander))
		}
		return remote.NewGRPC(cfg.GRPCHost, cfg.ModelID, opts...), nil
	default:
		return nil, fmt.Errorf("unsupported transport: %s (supported: http, grpc)", cfg.Transport)
	}
}

// Module provides the remote client
var Module = fx.Module("remote",
	fx.Provide(NewClient),
)
