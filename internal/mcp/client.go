package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Client wraps an initialized MCP client.
type Client struct{ c *client.Client }

// NewStdioClient launches binary with args and speaks MCP over its stdio.
func NewStdioClient(ctx context.Context, binary string, args ...string) (*Client, error) {
	tr := transport.NewStdio(binary, nil, args...)
	return start(ctx, client.NewClient(tr))
}

// NewHTTPClient connects to a streamable HTTP endpoint.
func NewHTTPClient(ctx context.Context, url string) (*Client, error) {
	tr, err := transport.NewStreamableHTTP(url)
	if err != nil {
		return nil, fmt.Errorf("new streamable http: %w", err)
	}
	return start(ctx, client.NewClient(tr))
}

// NewSSEClient connects to an SSE endpoint such as http://host/mcp/sse.
func NewSSEClient(ctx context.Context, url string) (*Client, error) {
	tr, err := transport.NewSSE(url)
	if err != nil {
		return nil, fmt.Errorf("new sse: %w", err)
	}
	return start(ctx, client.NewClient(tr))
}

// NewInProcessClient talks to s without any transport.
func NewInProcessClient(ctx context.Context, s *server.MCPServer) (*Client, error) {
	return start(ctx, client.NewClient(transport.NewInProcessTransport(s)))
}

func start(ctx context.Context, cli *client.Client) (*Client, error) {
	ctxStart, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := cli.Start(ctxStart); err != nil {
		return nil, fmt.Errorf("start mcp client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "embedcheck-cli", Version: serverVersion}
	initReq.Params.Capabilities = mcp.ClientCapabilities{}

	if _, err := cli.Initialize(ctx, initReq); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("init mcp client: %w", err)
	}

	return &Client{c: cli}, nil
}

func (c *Client) Close() error { return c.c.Close() }

func (c *Client) Call(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	return c.c.CallTool(ctx, mcp.CallToolRequest{Params: mcp.CallToolParams{Name: name, Arguments: args}})
}

func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	res, err := c.c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, err
	}
	return res.Tools, nil
}
