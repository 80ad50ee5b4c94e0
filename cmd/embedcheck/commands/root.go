package commands

import (
	"context"
	"fmt"

	"github.com/0x5457/embedcheck/cmd/cmdsfx"
	"github.com/0x5457/embedcheck/internal/app/appfx"
	"github.com/0x5457/embedcheck/internal/config/configfx"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

// flagKeys maps persistent flags to configuration keys.
var flagKeys = map[string]string{
	"db":         "db_path",
	"vector-db":  "vector_db_path",
	"embed-url":  "embed_url",
	"embed-dim":  "embed_dim",
	"model-id":   "model_id",
	"target":     "target_url",
	"grpc-host":  "grpc_host",
	"transport":  "transport",
	"insecure":   "insecure",
	"timeout":    "timeout",
	"log-level":  "log_level",
	"log-format": "log_format",
	"tolerance":  "tolerance",
	"workers":    "workers",
}

// NewRootCommand builds the embedcheck command tree.
func NewRootCommand(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "embedcheck",
		Short: "Check served embedding models against a reference engine",
		Long: `embedcheck compares the embedding, sentence-similarity and rerank
tasks of a served model against a local reference implementation, over
REST or gRPC, and keeps a history of every run.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (yaml, json or toml)")
	pf.String("db", configfx.DefaultDBPath, "SQLite database for run history")
	pf.String("vector-db", "", "sqlite-vec database for the search corpus (in-memory when empty)")
	pf.String("embed-url", configfx.DefaultEmbedURL, "reference embedding API URL, or \"local\"")
	pf.Int("embed-dim", 0, "embedding dimension (inferred when 0)")
	pf.String("model-id", "", "model id sent to the served runtime")
	pf.String("target", "", "REST base URL of the served runtime")
	pf.String("grpc-host", "", "gRPC host of the served runtime (port 443 when omitted)")
	pf.StringP("transport", "t", configfx.DefaultTransport, "transport to the served runtime (http, grpc)")
	pf.Bool("insecure", false, "skip TLS verification")
	pf.Duration("timeout", configfx.DefaultTimeout, "per-request timeout")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "console", "log format (console, json)")
	pf.Float64("tolerance", configfx.DefaultTolerance, "absolute score tolerance (must be positive)")
	pf.Int("workers", 1, "ranking workers")

	root.AddCommand(
		NewRunCommand(),
		NewSearchCommand(),
		NewCompareCommand(),
		NewHistoryCommand(),
		NewCrosscheckCommand(),
		NewMCPServeCommand(),
		NewMCPClientCommand(),
	)
	return root
}

// newViper layers changed flags over the config file, environment and defaults.
func newViper(cmd *cobra.Command) (*viper.Viper, error) {
	flags := cmd.Root().PersistentFlags()
	configFile, _ := flags.GetString("config")
	v, err := configfx.NewViper(configFile)
	if err != nil {
		return nil, err
	}
	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return nil, fmt.Errorf("bind --%s: %w", flag, err)
		}
	}
	return v, nil
}

// startApp builds and starts the application for cmd. The caller stops it.
func startApp(cmd *cobra.Command, opts ...fx.Option) (*fx.App, error) {
	v, err := newViper(cmd)
	if err != nil {
		return nil, err
	}
	app := appfx.NewAppWithConfig(v, opts...)
	if err := app.Start(cmd.Context()); err != nil {
		return nil, err
	}
	return app, nil
}

// withRunner runs fn against a started application.
func withRunner(cmd *cobra.Command, fn func(context.Context, *cmdsfx.CommandRunner) error) error {
	var runner *cmdsfx.CommandRunner
	app, err := startApp(cmd, fx.Populate(&runner))
	if err != nil {
		return err
	}
	defer app.Stop(context.WithoutCancel(cmd.Context())) //nolint:errcheck

	runner.SetOutput(cmd.OutOrStdout())
	return fn(cmd.Context(), runner)
}
