package remote

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/0x5457/embedcheck/internal/models"
	"go.uber.org/zap"
)

const taskPath = "/api/v1/task/"

// HTTPClient calls the caikit REST task endpoints.
type HTTPClient struct {
	baseURL  string
	modelID  string
	client   *http.Client
	insecure bool
	logger   *zap.Logger
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPClient) { h.client = c }
}

// WithInsecureTLS skips certificate verification, as self-signed routes need.
// It applies after every other option, on a copy of the client's transport.
func WithInsecureTLS() HTTPOption {
	return func(h *HTTPClient) { h.insecure = true }
}

// WithHTTPTimeout sets the per-request timeout.
func WithHTTPTimeout(d time.Duration) HTTPOption {
	return func(h *HTTPClient) { h.client.Timeout = d }
}

// WithHTTPLogger sets the logger used for request tracing.
func WithHTTPLogger(l *zap.Logger) HTTPOption {
	return func(h *HTTPClient) { h.logger = l }
}

func NewHTTP(baseURL, modelID string, opts ...HTTPOption) *HTTPClient {
	h := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		modelID: modelID,
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.insecure {
		h.client = insecureClient(h.client)
	}
	return h
}

// insecureClient returns a copy of c whose transport skips TLS verification.
// c itself is left untouched.
func insecureClient(c *http.Client) *http.Client {
	base, ok := c.Transport.(*http.Transport)
	if !ok || base == nil {
		base = http.DefaultTransport.(*http.Transport)
	}
	tr := base.Clone()
	if tr.TLSClientConfig == nil {
		tr.TLSClientConfig = &tls.Config{}
	}
	tr.TLSClientConfig.InsecureSkipVerify = true //nolint:gosec
	out := *c
	out.Transport = tr
	return &out
}

func (h *HTTPClient) Transport() string { return TransportHTTP }

type similarityInputs struct {
	SourceSentence  string   `json:"source_sentence,omitempty"`
	SourceSentences []string `json:"source_sentences,omitempty"`
	Sentences       []string `json:"sentences"`
}

type rerankInputs struct {
	Documents []models.Document `json:"documents"`
	Query     string            `json:"query,omitempty"`
	Queries   []string          `json:"queries,omitempty"`
}

type rerankParameters struct {
	TopN int `json:"top_n"`
}

type taskRequest struct {
	ModelID    string            `json:"model_id"`
	Inputs     any               `json:"inputs"`
	Parameters *rerankParameters `json:"parameters,omitempty"`
}

func (h *HTTPClient) Embedding(ctx context.Context, text string) ([]float64, error) {
	body, err := h.post(ctx, "embedding", KindEmbedding, taskRequest{ModelID: h.modelID, Inputs: text})
	if err != nil {
		return nil, err
	}
	return decodeEmbedding(body)
}

func (h *HTTPClient) Embeddings(ctx context.Context, texts []string) ([][]float64, error) {
	body, err := h.post(ctx, "embedding-tasks", KindEmbeddings, taskRequest{ModelID: h.modelID, Inputs: texts})
	if err != nil {
		return nil, err
	}
	return decodeEmbeddings(body)
}

func (h *HTTPClient) SentenceSimilarity(ctx context.Context, source string, sentences []string) ([]float64, error) {
	req := taskRequest{
		ModelID: h.modelID,
		Inputs:  similarityInputs{SourceSentence: source, Sentences: sentences},
	}
	body, err := h.post(ctx, "sentence-similarity", KindSimilarity, req)
	if err != nil {
		return nil, err
	}
	return decodeSimilarity(body)
}

func (h *HTTPClient) SentenceSimilarities(ctx context.Context, sources, sentences []string) ([][]float64, error) {
	req := taskRequest{
		ModelID: h.modelID,
		Inputs:  similarityInputs{SourceSentences: sources, Sentences: sentences},
	}
	body, err := h.post(ctx, "sentence-similarity-tasks", KindSimilarities, req)
	if err != nil {
		return nil, err
	}
	return decodeSimilarities(body)
}

func (h *HTTPClient) Rerank(ctx context.Context, query string, docs []models.Document, n int) (models.RankedResult, error) {
	req := taskRequest{
		ModelID:    h.modelID,
		Inputs:     rerankInputs{Documents: docs, Query: query},
		Parameters: &rerankParameters{TopN: topN(n, docs)},
	}
	body, err := h.post(ctx, "rerank", KindRerank, req)
	if err != nil {
		return nil, err
	}
	return decodeRerank(body)
}

func (h *HTTPClient) RerankAll(ctx context.Context, queries []string, docs []models.Document, n int) (models.ResultSet, error) {
	req := taskRequest{
		ModelID:    h.modelID,
		Inputs:     rerankInputs{Documents: docs, Queries: queries},
		Parameters: &rerankParameters{TopN: topN(n, docs)},
	}
	body, err := h.post(ctx, "rerank-tasks", KindRerankTasks, req)
	if err != nil {
		return nil, err
	}
	return decodeRerankTasks(body)
}

func (h *HTTPClient) post(ctx context.Context, endpoint, kind string, payload taskRequest) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	url := h.baseURL + taskPath + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s read body: %w", endpoint, err)
	}
	h.logger.Debug("task request",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)),
	)
	if resp.StatusCode != http.StatusOK {
		msg := bytes.TrimSpace(body)
		if len(msg) > 4096 {
			msg = msg[:4096]
		}
		return nil, &StatusError{Endpoint: endpoint, Code: resp.StatusCode, Body: string(msg)}
	}
	if err := Validate(kind, body); err != nil {
		return nil, fmt.Errorf("%s: %w", endpoint, err)
	}
	return body, nil
}
