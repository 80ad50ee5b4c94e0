package cmdsfx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/0x5457/embedcheck/internal/compare"
	"github.com/0x5457/embedcheck/internal/config/configfx"
	"github.com/0x5457/embedcheck/internal/conformance"
	"github.com/0x5457/embedcheck/internal/models"
	"github.com/0x5457/embedcheck/internal/search"
	"github.com/0x5457/embedcheck/internal/storage"
	"github.com/0x5457/embedcheck/internal/storage/memory"
	"github.com/0x5457/embedcheck/internal/storage/sqlvec"
	"github.com/fatih/color"
	"github.com/k0kubun/pp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/tailscale/hujson"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	// ErrConformanceFailed is returned when at least one task failed.
	ErrConformanceFailed = errors.New("conformance check failed")
	// ErrDivergent is returned when two result files are not equivalent.
	ErrDivergent = errors.New("result sets diverge")
)

var (
	passLabel = color.New(color.FgGreen, color.Bold).SprintFunc()
	failLabel = color.New(color.FgRed, color.Bold).SprintFunc()
	dimLabel  = color.New(color.Faint).SprintFunc()
)

// CommandRunner provides methods to run different application commands
type CommandRunner struct {
	config        *configfx.Config
	suite         *conformance.Suite
	searchService *search.Service
	vectors       storage.VectorStore
	reports       storage.ReportStore
	mcpServer     *server.MCPServer
	logger        *zap.Logger
	out           io.Writer
}

// Params represents dependencies for command runner
type Params struct {
	fx.In

	Config        *configfx.Config
	Suite         *conformance.Suite  `optional:"true"`
	SearchService *search.Service     `optional:"true"`
	Vectors       storage.VectorStore `optional:"true"`
	Reports       storage.ReportStore `optional:"true"`
	MCPServer     *server.MCPServer   `optional:"true"`
	Logger        *zap.Logger         `optional:"true"`
}

// NewCommandRunner creates a new command runner
func NewCommandRunner(params Params) *CommandRunner {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandRunner{
		config:        params.Config,
		suite:         params.Suite,
		searchService: params.SearchService,
		vectors:       params.Vectors,
		reports:       params.Reports,
		mcpServer:     params.MCPServer,
		logger:        logger,
		out:           os.Stdout,
	}
}

// SetOutput redirects everything the runner prints.
func (r *CommandRunner) SetOutput(w io.Writer) { r.out = w }

// RunConformance checks the configured target against the reference engine.
// An empty tasks list runs every task.
func (r *CommandRunner) RunConformance(
	ctx context.Context,
	scenarioPath string,
	tasks []string,
	verbose bool,
) (*models.Report, error) {
	if r.suite == nil {
		return nil, fmt.Errorf("conformance suite not available")
	}
	if r.config.Target() == "" {
		if r.config.Transport == "grpc" {
			return nil, fmt.Errorf("--grpc-host is required for the grpc transport")
		}
		return nil, fmt.Errorf("--target is required for the http transport")
	}
	if r.config.ModelID == "" {
		return nil, fmt.Errorf("--model-id is required")
	}

	sc := conformance.DefaultScenario()
	if scenarioPath != "" {
		var err error
		if sc, err = conformance.LoadScenario(scenarioPath); err != nil {
			return nil, err
		}
	}
	if len(tasks) == 0 {
		tasks = conformance.Tasks
	}

	report, err := r.suite.RunTasks(ctx, sc, tasks)
	if report != nil {
		r.printReport(report, verbose)
	}
	if err != nil {
		return report, err
	}
	if !report.Passed() {
		return report, fmt.Errorf("%w: %d of %d tasks", ErrConformanceFailed, report.Failed(), len(report.Results))
	}
	return report, nil
}

func (r *CommandRunner) printReport(report *models.Report, verbose bool) {
	fmt.Fprintf(r.out, "report %s  model=%s  target=%s  transport=%s\n",
		report.ID, report.ModelID, report.Target, report.Transport)
	for _, res := range report.Results {
		status := passLabel("PASS")
		if !res.Passed {
			status = failLabel("FAIL")
		}
		fmt.Fprintf(r.out, "  %s  %-26s %s\n", status, res.Task, dimLabel(res.Duration.Round(time.Millisecond)))
		if !res.Passed {
			fmt.Fprintf(r.out, "        %s: %s\n", res.Failure, res.Error)
		}
	}
	fmt.Fprintf(r.out, "%d passed, %d failed\n", len(report.Results)-report.Failed(), report.Failed())
	if verbose {
		pp.Fprintln(r.out, report)
	}
}

// RunSearch loads a corpus into the vector store and ranks it against query.
func (r *CommandRunner) RunSearch(ctx context.Context, corpusPath, query string, topK int) error {
	if r.searchService == nil || r.vectors == nil {
		return fmt.Errorf("search service not available")
	}
	docs, err := conformance.LoadDocuments(corpusPath)
	if err != nil {
		return err
	}
	if err := r.index(ctx, r.vectors, docs); err != nil {
		return err
	}

	q, err := r.searchService.Embed(ctx, query)
	if err != nil {
		return err
	}
	hits, err := r.vectors.Query(q, topK)
	if err != nil {
		return err
	}
	for _, hit := range hits {
		fmt.Fprintf(r.out, "[%.4f] #%d %s %s\n", hit.Score, hit.CorpusID, hit.ID, hit.Document.Text())
	}
	return nil
}

// documentID is the document's string "id" field, or its position.
func documentID(doc models.Document, i int) string {
	if raw, ok := doc.Get("id"); ok {
		var id string
		if json.Unmarshal(raw, &id) == nil && id != "" {
			return id
		}
	}
	return "doc-" + strconv.Itoa(i)
}

func (r *CommandRunner) index(ctx context.Context, store storage.VectorStore, docs []models.Document) error {
	embs, err := r.searchService.EmbedAll(ctx, models.DocumentTexts(docs))
	if err != nil {
		return err
	}
	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = documentID(doc, i)
	}
	if err := store.Upsert(ids, docs, embs); err != nil {
		return fmt.Errorf("index corpus: %w", err)
	}
	r.logger.Debug("corpus indexed", zap.Int("documents", len(docs)), zap.Int("stored", store.Len()))
	return nil
}

func readResultSet(path string) (models.ResultSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	var rs models.ResultSet
	if err := json.Unmarshal(std, &rs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return rs, nil
}

// RunCompare checks two result files for equivalence. A non-positive
// tolerance falls back to the configured one.
func (r *CommandRunner) RunCompare(expectedPath, actualPath string, tolerance float64) error {
	if tolerance <= 0 {
		tolerance = r.config.Tolerance
	}
	expected, err := readResultSet(expectedPath)
	if err != nil {
		return err
	}
	actual, err := readResultSet(actualPath)
	if err != nil {
		return err
	}

	errs := compare.Diff(expected, actual, compare.WithTolerance(tolerance))
	if len(errs) == 0 {
		fmt.Fprintf(r.out, "%s  %d queries equivalent within %g\n", passLabel("PASS"), len(expected), tolerance)
		return nil
	}
	fmt.Fprintf(r.out, "%s  %d divergences\n", failLabel("FAIL"), len(errs))
	for _, e := range errs {
		fmt.Fprintf(r.out, "  %v\n", e)
	}
	return ErrDivergent
}

// RunHistory lists recent reports, or prints one report in full when id is set.
func (r *CommandRunner) RunHistory(ctx context.Context, limit int, id string) error {
	if r.reports == nil {
		return fmt.Errorf("report store not available")
	}
	if id != "" {
		report, err := r.reports.GetReport(ctx, id)
		if err != nil {
			return err
		}
		r.printReport(report, false)
		return nil
	}

	reports, err := r.reports.ListReports(ctx, limit)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		fmt.Fprintln(r.out, "no reports")
		return nil
	}
	for _, rep := range reports {
		status := passLabel("PASS")
		if !rep.Passed() {
			status = failLabel("FAIL")
		}
		fmt.Fprintf(r.out, "%s  %s  %s  %s  %s  %d/%d\n",
			status,
			rep.StartedAt.Format(time.RFC3339),
			rep.ID,
			rep.ModelID,
			rep.Transport,
			len(rep.Results)-rep.Failed(),
			len(rep.Results),
		)
	}
	return nil
}

// RunCrosscheck ranks a corpus with the reference ranker, the in-memory
// store and the sqlite-vec store, and requires all three to agree.
func (r *CommandRunner) RunCrosscheck(ctx context.Context, corpusPath string, queries []string, topK int) error {
	if r.searchService == nil {
		return fmt.Errorf("search service not available")
	}
	if len(queries) == 0 {
		return fmt.Errorf("at least one query is required")
	}
	docs, err := conformance.LoadDocuments(corpusPath)
	if err != nil {
		return err
	}
	if topK <= 0 || topK > len(docs) {
		topK = len(docs)
	}

	expected, err := r.searchService.RerankAll(ctx, queries, docs, topK)
	if err != nil {
		return err
	}

	mem := memory.NewInMemoryVectorStore().WithWorkers(r.config.Workers)
	dir, err := os.MkdirTemp("", "embedcheck-crosscheck-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)
	vec, err := sqlvec.New(filepath.Join(dir, "vectors.db"), 0)
	if err != nil {
		return err
	}
	defer vec.Close()

	stores := []struct {
		name  string
		store storage.VectorStore
	}{
		{"memory", mem},
		{"sqlite-vec", vec},
	}

	failed := false
	for _, s := range stores {
		if err := r.index(ctx, s.store, docs); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		actual, err := r.queryAll(ctx, s.store, queries, topK)
		if err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		errs := compare.Diff(expected, actual, compare.WithTolerance(r.config.Tolerance))
		if len(errs) == 0 {
			fmt.Fprintf(r.out, "%s  %s\n", passLabel("PASS"), s.name)
			continue
		}
		failed = true
		fmt.Fprintf(r.out, "%s  %s\n", failLabel("FAIL"), s.name)
		for _, e := range errs {
			fmt.Fprintf(r.out, "  %v\n", e)
		}
	}
	if failed {
		return ErrDivergent
	}
	return nil
}

func (r *CommandRunner) queryAll(
	ctx context.Context,
	store storage.VectorStore,
	queries []string,
	topK int,
) (models.ResultSet, error) {
	qs, err := r.searchService.EmbedAll(ctx, queries)
	if err != nil {
		return nil, err
	}
	rs := make(models.ResultSet, len(qs))
	for i, q := range qs {
		hits, err := store.Query(q, topK)
		if err != nil {
			return nil, err
		}
		ranked := make(models.RankedResult, len(hits))
		for j, h := range hits {
			ranked[j] = models.Hit{CorpusID: h.CorpusID, Score: h.Score}
		}
		rs[i] = ranked
	}
	return rs, nil
}

// RunMCPServer executes the MCP server
func (r *CommandRunner) RunMCPServer(transport, address string) error {
	if r.mcpServer == nil {
		return fmt.Errorf("MCP server not available")
	}

	switch transport {
	case "stdio":
		return server.ServeStdio(r.mcpServer)
	case "http":
		// Streamable HTTP server on address, default ":8080" if empty
		addr := address
		if addr == "" {
			addr = ":8080"
		}
		r.logger.Info("serving mcp", zap.String("transport", transport), zap.String("address", addr))
		httpSrv := server.NewStreamableHTTPServer(r.mcpServer)
		return httpSrv.Start(addr)
	case "sse":
		// SSE server exposes two endpoints; default base path "/mcp"
		addr := address
		if addr == "" {
			addr = ":8080"
		}
		r.logger.Info("serving mcp", zap.String("transport", transport), zap.String("address", addr))
		sseSrv := server.NewSSEServer(r.mcpServer,
			server.WithBaseURL(""),
			server.WithStaticBasePath("/mcp"),
		)
		return sseSrv.Start(addr)
	default:
		return fmt.Errorf(
			"unsupported transport: %s (supported: stdio, http, sse)",
			transport,
		)
	}
}

// Module provides command runner
var Module = fx.Module("commands",
	fx.Provide(NewCommandRunner),
)
