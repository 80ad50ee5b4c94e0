package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/0x5457/embedcheck/internal/compare"
	"github.com/0x5457/embedcheck/internal/models"
	"github.com/0x5457/embedcheck/internal/search"
	"github.com/0x5457/embedcheck/internal/storage"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	serverName    = "embedcheck/mcp"
	serverVersion = "0.1.0"
)

// Server exposes the reference engine and the comparator as MCP tools.
type Server struct {
	search    *search.Service
	reports   storage.ReportStore
	tolerance float64
}

// Option configures a Server.
type Option func(*Server)

// WithTolerance sets the default tolerance of compare_results.
func WithTolerance(t float64) Option {
	return func(s *Server) { s.tolerance = t }
}

// New returns an MCP server. Either dependency may be nil; the tools that need
// it then answer with a tool error.
func New(svc *search.Service, reports storage.ReportStore, opts ...Option) *server.MCPServer {
	srv := &Server{search: svc, reports: reports, tolerance: compare.DefaultTolerance}
	for _, opt := range opts {
		opt(srv)
	}

	s := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
	)
	s.AddTool(newSemanticSearchTool(), srv.handleSemanticSearch)
	s.AddTool(newSentenceSimilarityTool(), srv.handleSentenceSimilarity)
	s.AddTool(newCompareResultsTool(), srv.handleCompareResults)
	s.AddTool(newListReportsTool(), srv.handleListReports)
	return s
}

// Tool definitions
func newSemanticSearchTool() mcp.Tool {
	return mcp.NewTool(
		"semantic_search",
		mcp.WithDescription("Rank documents against a query with the reference engine"),
		mcp.WithString("query", mcp.Description("Query text"), mcp.Required()),
		mcp.WithArray(
			"documents",
			mcp.Description("Documents: plain strings or objects with a text field"),
			mcp.Required(),
		),
		mcp.WithNumber("top_k", mcp.Description("Top K results, 0 for all"), mcp.DefaultNumber(0)),
	)
}

func newSentenceSimilarityTool() mcp.Tool {
	return mcp.NewTool(
		"sentence_similarity",
		mcp.WithDescription("Cosine similarity of a source sentence against each sentence"),
		mcp.WithString("source_sentence", mcp.Description("Source sentence"), mcp.Required()),
		mcp.WithArray(
			"sentences",
			mcp.Description("Sentences to score"),
			mcp.Required(),
			mcp.WithStringItems(),
		),
	)
}

func newCompareResultsTool() mcp.Tool {
	return mcp.NewTool(
		"compare_results",
		mcp.WithDescription("Compare two ranked result sets by corpus index and score tolerance"),
		mcp.WithArray("expected", mcp.Description("Reference result set"), mcp.Required()),
		mcp.WithArray("actual", mcp.Description("Result set under test"), mcp.Required()),
		mcp.WithNumber("tolerance", mcp.Description("Absolute score tolerance")),
	)
}

func newListReportsTool() mcp.Tool {
	return mcp.NewTool(
		"list_reports",
		mcp.WithDescription("List recent conformance reports"),
		mcp.WithNumber("limit", mcp.Description("Maximum number of reports"), mcp.DefaultNumber(10)),
	)
}

// decodeArg re-encodes an argument and decodes it into dst, so typed JSON
// decoders run on tool input.
func decodeArg(req mcp.CallToolRequest, key string, dst any) error {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return fmt.Errorf("required argument %q not found", key)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("argument %q: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("argument %q: %w", key, err)
	}
	return nil
}

func decodeDocuments(req mcp.CallToolRequest) ([]models.Document, error) {
	var raw json.RawMessage
	if err := decodeArg(req, "documents", &raw); err != nil {
		return nil, err
	}
	return models.DecodeDocuments(raw)
}

// Handlers
func (srv *Server) handleSemanticSearch(
	ctx context.Context,
	req mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	docs, err := decodeDocuments(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if srv.search == nil {
		return mcp.NewToolResultError("search service not initialized"), nil
	}
	topK := req.GetInt("top_k", 0)

	ranked, err := srv.search.Rerank(ctx, query, docs, topK)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultStructuredOnly(map[string]any{"query": query, "scores": ranked}), nil
}

func (srv *Server) handleSentenceSimilarity(
	ctx context.Context,
	req mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	source, err := req.RequireString("source_sentence")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var sentences []string
	if err := decodeArg(req, "sentences", &sentences); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if srv.search == nil {
		return mcp.NewToolResultError("search service not initialized"), nil
	}

	scores, err := srv.search.SentenceSimilarity(ctx, source, sentences)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultStructuredOnly(map[string]any{"scores": scores}), nil
}

type compareResult struct {
	Equivalent  bool     `json:"equivalent"`
	Tolerance   float64  `json:"tolerance"`
	Divergences []string `json:"divergences"`
}

func (srv *Server) handleCompareResults(
	_ context.Context,
	req mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	var expected, actual models.ResultSet
	if err := decodeArg(req, "expected", &expected); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := decodeArg(req, "actual", &actual); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tol := req.GetFloat("tolerance", srv.tolerance)
	if tol <= 0 {
		return mcp.NewToolResultError(fmt.Sprintf("tolerance must be positive, got %g", tol)), nil
	}

	errs := compare.Diff(expected, actual, compare.WithTolerance(tol))
	res := compareResult{
		Equivalent:  len(errs) == 0,
		Tolerance:   tol,
		Divergences: make([]string, len(errs)),
	}
	for i, e := range errs {
		res.Divergences[i] = e.Error()
	}
	return mcp.NewToolResultStructuredOnly(res), nil
}

func (srv *Server) handleListReports(
	ctx context.Context,
	req mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	if srv.reports == nil {
		return mcp.NewToolResultError("report store not configured"), nil
	}
	reports, err := srv.reports.ListReports(ctx, req.GetInt("limit", 10))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if reports == nil {
		reports = []models.Report{}
	}
	return mcp.NewToolResultStructuredOnly(map[string]any{"reports": reports}), nil
}
