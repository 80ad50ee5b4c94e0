package appfx

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/0x5457/embedcheck/cmd/cmdsfx"
	"github.com/0x5457/embedcheck/internal/config/configfx"
	"github.com/0x5457/embedcheck/internal/conformance"
	"github.com/0x5457/embedcheck/internal/remote"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

func TestAppModule(t *testing.T) {
	// Test that all modules can be loaded together
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	var (
		runner    *cmdsfx.CommandRunner
		suite     *conformance.Suite
		mcpServer *server.MCPServer
	)

	app := fx.New(
		Module,
		fx.Supply(
			fx.Annotate(dbPath, fx.ResultTags(`name:"dbPath"`)),
			fx.Annotate("local", fx.ResultTags(`name:"embedURL"`)),
		),
		fx.Populate(&runner, &suite, &mcpServer),
	)

	ctx := context.Background()
	require.NoError(t, app.Start(ctx))
	defer func() {
		require.NoError(t, app.Stop(ctx))
	}()

	assert.NotNil(t, runner)
	assert.NotNil(t, mcpServer)
	require.NotNil(t, suite)
	assert.Equal(t, remote.TransportHTTP, suite.Remote.Transport())
}

func TestNewAppWithConfig(t *testing.T) {
	v := viper.New()
	configfx.SetDefaults(v)
	v.Set("db_path", filepath.Join(t.TempDir(), "test.db"))
	v.Set("vector_db_path", filepath.Join(t.TempDir(), "vectors.db"))
	v.Set("embed_url", "local")
	v.Set("transport", "grpc")
	v.Set("grpc_host", "model.example.com")
	v.Set("model_id", "mini")
	v.Set("log_level", "debug")

	var suite *conformance.Suite
	app := NewAppWithConfig(v, fx.Populate(&suite))

	ctx := context.Background()
	require.NoError(t, app.Start(ctx))
	defer func() {
		require.NoError(t, app.Stop(ctx))
	}()

	require.NotNil(t, suite)
	assert.Equal(t, remote.TransportGRPC, suite.Remote.Transport())
	assert.Equal(t, "model.example.com", suite.Target)
	assert.Equal(t, "mini", suite.ModelID)
}

func TestNewAppRejectsBadConfig(t *testing.T) {
	v := viper.New()
	configfx.SetDefaults(v)
	v.Set("db_path", filepath.Join(t.TempDir(), "test.db"))
	v.Set("transport", "carrier-pigeon")

	app := NewAppWithConfig(v, fx.Invoke(func(*cmdsfx.CommandRunner) {}))
	assert.Error(t, app.Err())
}
