package mcpfx

import (
	"github.com/0x5457/embedcheck/internal/config/configfx"
	appmcp "github.com/0x5457/embedcheck/internal/mcp"
	"github.com/0x5457/embedcheck/internal/search"
	"github.com/0x5457/embedcheck/internal/storage"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/fx"
)

// Params represents dependencies for MCP server
type Params struct {
	fx.In

	SearchService *search.Service     `optional:"true"`
	Reports       storage.ReportStore `optional:"true"`
	Config        *configfx.Config
}

// NewMCPServer creates a new MCP server instance
func NewMCPServer(params Params) *server.MCPServer {
	return appmcp.New(
		params.SearchService,
		params.Reports,
		appmcp.WithTolerance(params.Config.Tolerance),
	)
}

// Module provides MCP server components
var Module = fx.Module("mcp",
	fx.Provide(NewMCPServer),
)
