package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	appmcp "github.com/0x5457/embedcheck/internal/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

const (
	transportStdio  = "stdio"
	transportHTTP   = "http"
	transportSSE    = "sse"
	transportInproc = "inproc"
)

// NewMCPClientCommand creates commands for connecting to and interacting with MCP servers
func NewMCPClientCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-client",
		Short: "MCP client commands",
		Long:  "Commands for connecting to and interacting with MCP servers",
	}

	cmd.AddCommand(
		newMCPCallCommand(),
		newMCPListToolsCommand(),
	)

	cmd.PersistentFlags().String("mcp-transport", transportStdio, "transport (stdio, http, sse, inproc)")
	cmd.PersistentFlags().StringP("address", "a", "", "server URL for http and sse")

	return cmd
}

// parseToolArgs turns key=value pairs into tool arguments. Values are read
// as JSON when they parse, so arrays and objects can be passed inline.
func parseToolArgs(pairs []string) (map[string]any, error) {
	toolArgs := make(map[string]any, len(pairs))
	for _, arg := range pairs {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid argument format: %s (expected key=value)", arg)
		}
		if val, err := strconv.Atoi(value); err == nil {
			toolArgs[key] = val
			continue
		}
		if val, err := strconv.ParseBool(value); err == nil {
			toolArgs[key] = val
			continue
		}
		var decoded any
		if json.Unmarshal([]byte(value), &decoded) == nil {
			toolArgs[key] = decoded
			continue
		}
		toolArgs[key] = value
	}
	return toolArgs, nil
}

func newMCPCallCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "call <tool_name> [key=value...]",
		Short: "Call a specific MCP tool",
		Long: `Call a specific MCP tool with arguments.
Arguments are key=value pairs; JSON values are decoded.

Example:
  embedcheck mcp-client call semantic_search query="first" documents='["first sentence","another"]'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			toolArgs, err := parseToolArgs(args[1:])
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			client, stop, err := createMCPClient(ctx, cmd)
			if err != nil {
				return fmt.Errorf("create MCP client failed: %w", err)
			}
			defer stop()
			defer client.Close() //nolint:errcheck

			result, err := client.Call(ctx, args[0], toolArgs)
			if err != nil {
				return fmt.Errorf("call tool failed: %w", err)
			}

			output, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("format result failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(output))
			if result.IsError {
				return fmt.Errorf("tool %s returned an error", args[0])
			}
			return nil
		},
	}
}

func newMCPListToolsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list-tools",
		Short: "List available MCP tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			client, stop, err := createMCPClient(ctx, cmd)
			if err != nil {
				return fmt.Errorf("create MCP client failed: %w", err)
			}
			defer stop()
			defer client.Close() //nolint:errcheck

			tools, err := client.ListTools(ctx)
			if err != nil {
				return fmt.Errorf("failed to list tools: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(tools) == 0 {
				fmt.Fprintln(out, "No tools available")
				return nil
			}

			fmt.Fprintf(out, "Available MCP tools (%d):\n\n", len(tools))
			for i, tool := range tools {
				fmt.Fprintf(out, "%d. %s\n", i+1, tool.Name)
				if tool.Description != "" {
					fmt.Fprintf(out, "   Description: %s\n", tool.Description)
				}
				if len(tool.InputSchema.Properties) > 0 {
					fmt.Fprintf(out, "   Parameters:\n")
					names := make([]string, 0, len(tool.InputSchema.Properties))
					for name := range tool.InputSchema.Properties {
						names = append(names, name)
					}
					slices.Sort(names)
					for _, name := range names {
						required := ""
						if slices.Contains(tool.InputSchema.Required, name) {
							required = " (required)"
						}
						desc := ""
						if propMap, ok := tool.InputSchema.Properties[name].(map[string]any); ok {
							if d, ok := propMap["description"].(string); ok {
								desc = ": " + d
							}
						}
						fmt.Fprintf(out, "     - %s%s%s\n", name, required, desc)
					}
				}
				fmt.Fprintln(out)
			}

			return nil
		},
	}
}

// createMCPClient connects with the transport chosen on cmd. The returned
// stop func releases anything started for the inproc transport.
func createMCPClient(ctx context.Context, cmd *cobra.Command) (*appmcp.Client, func(), error) {
	transport, _ := cmd.Flags().GetString("mcp-transport")
	address, _ := cmd.Flags().GetString("address")
	noop := func() {}

	switch transport {
	case transportStdio:
		self, err := os.Executable()
		if err != nil {
			return nil, nil, err
		}
		args := []string{"mcp"}
		flags := cmd.Root().PersistentFlags()
		for flag := range flagKeys {
			if f := flags.Lookup(flag); f != nil && f.Changed {
				args = append(args, "--"+flag+"="+f.Value.String())
			}
		}
		if f := flags.Lookup("config"); f != nil && f.Changed {
			args = append(args, "--config="+f.Value.String())
		}
		client, err := appmcp.NewStdioClient(ctx, self, args...)
		return client, noop, err
	case transportHTTP:
		if address == "" {
			address = "http://127.0.0.1:8080/mcp"
		}
		client, err := appmcp.NewHTTPClient(ctx, address)
		return client, noop, err
	case transportSSE:
		if address == "" {
			address = "http://127.0.0.1:8080/mcp/sse"
		}
		client, err := appmcp.NewSSEClient(ctx, address)
		return client, noop, err
	case transportInproc:
		var srv *server.MCPServer
		app, err := startApp(cmd, fx.Populate(&srv))
		if err != nil {
			return nil, nil, fmt.Errorf("initialize components failed: %w", err)
		}
		stop := func() { _ = app.Stop(context.WithoutCancel(ctx)) }
		client, err := appmcp.NewInProcessClient(ctx, srv)
		if err != nil {
			stop()
			return nil, nil, err
		}
		return client, stop, nil
	default:
		return nil, nil, fmt.Errorf(
			"unsupported transport: %s (supported: stdio, http, sse, inproc)",
			transport,
		)
	}
}
