package storagefx

import (
	"context"
	"fmt"

	"github.com/0x5457/embedcheck/internal/config/configfx"
	"github.com/0x5457/embedcheck/internal/storage"
	"github.com/0x5457/embedcheck/internal/storage/memory"
	"github.com/0x5457/embedcheck/internal/storage/sqlite"
	"github.com/0x5457/embedcheck/internal/storage/sqlvec"
	"go.uber.org/fx"
)

// Params represents dependencies for storage components
type Params struct {
	fx.In

	Config    *configfx.Config
	Lifecycle fx.Lifecycle
}

// NewReportStore opens the run history database
func NewReportStore(params Params) (storage.ReportStore, error) {
	if params.Config.DBPath == "" {
		return nil, fmt.Errorf("database path must be specified")
	}
	store, err := sqlite.New(params.Config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open report store: %w", err)
	}
	params.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error { return store.Close() },
	})
	return store, nil
}

// NewVectorStore creates a new vector store instance. Without a vector
// database path the corpus lives in memory.
func NewVectorStore(params Params) (storage.VectorStore, error) {
	var store storage.VectorStore
	if params.Config.VectorDBPath == "" {
		store = memory.NewInMemoryVectorStore().WithWorkers(params.Config.Workers)
	} else {
		vs, err := sqlvec.New(params.Config.VectorDBPath, params.Config.VectorDimension)
		if err != nil {
			return nil, fmt.Errorf("open vector store: %w", err)
		}
		store = vs
	}
	params.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error { return store.Close() },
	})
	return store, nil
}

// Module provides storage components
var Module = fx.Module("storage",
	fx.Provide(
		NewReportStore,
		NewVectorStore,
	),
)
