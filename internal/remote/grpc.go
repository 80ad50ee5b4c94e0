package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/0x5457/embedcheck/internal/models"
	"go.uber.org/zap"
)

const (
	nlpService  = "caikit.runtime.Nlp.NlpService/"
	defaultPort = "443"
)

// Commander abstracts shell command execution for testability.
type Commander interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecCommander implements Commander using os/exec. Stdout is returned on
// success; stderr is folded into the error otherwise.
type ExecCommander struct{}

func (ExecCommander) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// GRPCClient reaches the caikit NlpService through the grpcurl binary.
type GRPCClient struct {
	target    string
	modelID   string
	binary    string
	insecure  bool
	commander Commander
	logger    *zap.Logger
}

// GRPCOption configures a GRPCClient.
type GRPCOption func(*GRPCClient)

// WithCommander sets the command executor.
func WithCommander(c Commander) GRPCOption {
	return func(g *GRPCClient) { g.commander = c }
}

// WithBinary overrides the grpcurl executable path.
func WithBinary(path string) GRPCOption {
	return func(g *GRPCClient) { g.binary = path }
}

// WithInsecure passes -insecure to grpcurl.
func WithInsecure(insecure bool) GRPCOption {
	return func(g *GRPCClient) { g.insecure = insecure }
}

// WithGRPCLogger sets the logger used for call tracing.
func WithGRPCLogger(l *zap.Logger) GRPCOption {
	return func(g *GRPCClient) { g.logger = l }
}

// NewGRPC targets host, adding port 443 when host carries none.
func NewGRPC(host, modelID string, opts ...GRPCOption) *GRPCClient {
	target := host
	if !strings.Contains(target, ":") {
		target += ":" + defaultPort
	}
	g := &GRPCClient{
		target:    target,
		modelID:   modelID,
		binary:    "grpcurl",
		commander: ExecCommander{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GRPCClient) Transport() string { return TransportGRPC }

// Target is the host:port grpcurl dials.
func (g *GRPCClient) Target() string { return g.target }

func (g *GRPCClient) Embedding(ctx context.Context, text string) ([]float64, error) {
	body, err := g.call(ctx, "EmbeddingTaskPredict", KindEmbedding, map[string]any{"text": text})
	if err != nil {
		return nil, err
	}
	return decodeEmbedding(body)
}

func (g *GRPCClient) Embeddings(ctx context.Context, texts []string) ([][]float64, error) {
	body, err := g.call(ctx, "EmbeddingTasksPredict", KindEmbeddings, map[string]any{"texts": texts})
	if err != nil {
		return nil, err
	}
	return decodeEmbeddings(body)
}

func (g *GRPCClient) SentenceSimilarity(ctx context.Context, source string, sentences []string) ([]float64, error) {
	payload := map[string]any{"source_sentence": source, "sentences": sentences}
	body, err := g.call(ctx, "SentenceSimilarityTaskPredict", KindSimilarity, payload)
	if err != nil {
		return nil, err
	}
	return decodeSimilarity(body)
}

func (g *GRPCClient) SentenceSimilarities(ctx context.Context, sources, sentences []string) ([][]float64, error) {
	payload := map[string]any{"source_sentences": sources, "sentences": sentences}
	body, err := g.call(ctx, "SentenceSimilarityTasksPredict", KindSimilarities, payload)
	if err != nil {
		return nil, err
	}
	return decodeSimilarities(body)
}

func (g *GRPCClient) Rerank(ctx context.Context, query string, docs []models.Document, n int) (models.RankedResult, error) {
	payload := map[string]any{"query": query, "documents": docs, "top_n": topN(n, docs)}
	body, err := g.call(ctx, "RerankTaskPredict", KindRerank, payload)
	if err != nil {
		return nil, err
	}
	return decodeRerank(body)
}

func (g *GRPCClient) RerankAll(ctx context.Context, queries []string, docs []models.Document, n int) (models.ResultSet, error) {
	payload := map[string]any{"queries": queries, "documents": docs, "top_n": topN(n, docs)}
	body, err := g.call(ctx, "RerankTasksPredict", KindRerankTasks, payload)
	if err != nil {
		return nil, err
	}
	return decodeRerankTasks(body)
}

// Args builds the grpcurl argument vector. The payload travels as a single
// argument so no shell quoting is involved.
func (g *GRPCClient) Args(method string, payload []byte) []string {
	args := make([]string, 0, 7)
	if g.insecure {
		args = append(args, "-insecure")
	}
	return append(args,
		"-d", string(payload),
		"-H", "mm-model-id: "+g.modelID,
		g.target,
		nlpService+method,
	)
}

func (g *GRPCClient) call(ctx context.Context, method, kind string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	out, err := g.commander.Run(ctx, g.binary, g.Args(method, data)...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	g.logger.Debug("grpc call",
		zap.String("method", method),
		zap.String("target", g.target),
		zap.Int("bytes", len(out)),
		zap.Duration("elapsed", time.Since(start)),
	)
	if err := Validate(kind, out); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return out, nil
}
