package loggingfx

import (
	"context"

	"github.com/0x5457/embedcheck/internal/config/configfx"
	"github.com/0x5457/embedcheck/internal/logging"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Params represents dependencies for the logger
type Params struct {
	fx.In

	Config    *configfx.Config
	Lifecycle fx.Lifecycle
}

// NewLogger builds the application logger and flushes it on stop
func NewLogger(params Params) (*zap.Logger, error) {
	logger, err := logging.New(params.Config.LogLevel, params.Config.LogFormat)
	if err != nil {
		return nil, err
	}
	params.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			// stderr sync fails on some terminals
			_ = logger.Sync()
			return nil
		},
	})
	return logger, nil
}

// EventLogger routes fx's own events through zap at debug level.
func EventLogger(logger *zap.Logger) fxevent.Logger {
	l := &fxevent.ZapLogger{Logger: logger}
	l.UseLogLevel(zap.DebugLevel)
	return l
}

// Module provides the logger
var Module = fx.Module("logging",
	fx.Provide(NewLogger),
)
