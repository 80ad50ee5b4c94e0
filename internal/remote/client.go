// Package remote talks to the inference service under test and turns its
// transport-specific payloads into the reference engine's types.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/0x5457/embedcheck/internal/models"
)

const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"
)

var ErrEmptyResponse = errors.New("empty response from service")

// Client is the service under test.
type Client interface {
	Embedding(ctx context.Context, text string) ([]float64, error)
	Embeddings(ctx context.Context, texts []string) ([][]float64, error)
	SentenceSimilarity(ctx context.Context, source string, sentences []string) ([]float64, error)
	SentenceSimilarities(ctx context.Context, sources, sentences []string) ([][]float64, error)
	Rerank(ctx context.Context, query string, docs []models.Document, topN int) (models.RankedResult, error)
	RerankAll(ctx context.Context, queries []string, docs []models.Document, topN int) (models.ResultSet, error)
	Transport() string
}

// StatusError is a non-200 answer from the REST endpoint.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Endpoint, e.Code, e.Body)
}

// topN mirrors the service default: unset means every document.
func topN(n int, docs []models.Document) int {
	if n <= 0 {
		return len(docs)
	}
	return n
}

type vectorData struct {
	Values []float64 `json:"values"`
}

// vector is a caikit Vector1D. REST puts the values under "data"; the gRPC
// gateway names the oneof member after its element type.
type vector struct {
	Data      *vectorData `json:"data"`
	NpFloat32 *vectorData `json:"data_npfloat32sequence"`
	NpFloat64 *vectorData `json:"data_npfloat64sequence"`
	PyFloat   *vectorData `json:"data_pyfloatsequence"`
}

func (v vector) values() []float64 {
	for _, d := range []*vectorData{v.Data, v.NpFloat32, v.NpFloat64, v.PyFloat} {
		if d != nil {
			return d.Values
		}
	}
	return nil
}

type embeddingResponse struct {
	Result vector `json:"result"`
}

type embeddingsResponse struct {
	Results struct {
		Vectors []vector `json:"vectors"`
	} `json:"results"`
}

type scores struct {
	Scores []float64 `json:"scores"`
}

type similarityResponse struct {
	Result scores `json:"result"`
}

type similaritiesResponse struct {
	Results []scores `json:"results"`
}

type rankedScores struct {
	Scores models.RankedResult `json:"scores"`
}

type rerankResponse struct {
	Result rankedScores `json:"result"`
}

type rerankTasksResponse struct {
	Results []rankedScores `json:"results"`
}

func decodeEmbedding(body []byte) ([]float64, error) {
	var resp embeddingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	return resp.Result.values(), nil
}

func decodeEmbeddings(body []byte) ([][]float64, error) {
	var resp embeddingsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode embeddings response: %w", err)
	}
	out := make([][]float64, len(resp.Results.Vectors))
	for i, v := range resp.Results.Vectors {
		out[i] = v.values()
	}
	return out, nil
}

func decodeSimilarity(body []byte) ([]float64, error) {
	var resp similarityResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode similarity response: %w", err)
	}
	return resp.Result.Scores, nil
}

func decodeSimilarities(body []byte) ([][]float64, error) {
	var resp similaritiesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode similarities response: %w", err)
	}
	out := make([][]float64, len(resp.Results))
	for i, r := range resp.Results {
		out[i] = r.Scores
	}
	return out, nil
}

func decodeRerank(body []byte) (models.RankedResult, error) {
	var resp rerankResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	if resp.Result.Scores == nil {
		return models.RankedResult{}, nil
	}
	return resp.Result.Scores, nil
}

func decodeRerankTasks(body []byte) (models.ResultSet, error) {
	var resp rerankTasksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode rerank tasks response: %w", err)
	}
	out := make(models.ResultSet, len(resp.Results))
	for i, r := range resp.Results {
		if r.Scores == nil {
			out[i] = models.RankedResult{}
			continue
		}
		out[i] = r.Scores
	}
	return out, nil
}
