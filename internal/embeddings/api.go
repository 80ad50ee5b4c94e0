package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ApiEmbedder calls a sentence-transformers sidecar that accepts
// {"sentences": [...]} and answers with a JSON array of vectors.
type ApiEmbedder struct {
	url    string
	model  string
	client *http.Client
}

// ApiOption configures an ApiEmbedder.
type ApiOption func(*ApiEmbedder)

// WithModel records the model name the sidecar serves.
func WithModel(model string) ApiOption {
	return func(e *ApiEmbedder) { e.model = model }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) ApiOption {
	return func(e *ApiEmbedder) { e.client = c }
}

// WithTimeout sets the request timeout of the default client.
func WithTimeout(d time.Duration) ApiOption {
	return func(e *ApiEmbedder) { e.client.Timeout = d }
}

func NewApi(url string, opts ...ApiOption) *ApiEmbedder {
	e := &ApiEmbedder{url: url, model: "api", client: &http.Client{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *ApiEmbedder) ModelName() string { return e.model }

func (e *ApiEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	embeddings, err := e.embedRequest(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("embed api returned %d vectors for %d texts", len(embeddings), len(texts))
	}
	return embeddings, nil
}

func (e *ApiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

type embedRequest struct {
	Sentences []string `json:"sentences"`
}

func (e *ApiEmbedder) embedRequest(ctx context.Context, texts []string) ([][]float32, error) {
	request := &embedRequest{
		Sentences: texts,
	}
	body, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	response, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer func() { _ = response.Body.Close() }()
	if response.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
		return nil, fmt.Errorf("embed api status %d: %s", response.StatusCode, bytes.TrimSpace(msg))
	}
	var embeddings [][]float32
	if err := json.NewDecoder(response.Body).Decode(&embeddings); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	return embeddings, nil
}
