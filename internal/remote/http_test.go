package remote_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/0x5457/embedcheck/internal/models"
	"github.com/0x5457/embedcheck/internal/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// taskServer answers each task path with a canned body and records the last
// request payload per path.
func taskServer(t *testing.T, bodies map[string]string) (*httptest.Server, map[string]map[string]any) {
	t.Helper()
	seen := map[string]map[string]any{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var payload map[string]any
		assert.NoError(t, json.Unmarshal(raw, &payload))
		seen[r.URL.Path] = payload

		body, ok := bodies[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func docs() []models.Document {
	return []models.Document{models.NewDocument("first"), models.NewDocument("second")}
}

func TestHTTPEmbedding(t *testing.T) {
	srv, seen := taskServer(t, map[string]string{
		"/api/v1/task/embedding":       `{"result": {"data": {"values": [0.1, 0.2, 0.3]}}, "producer_id": {"name": "x"}}`,
		"/api/v1/task/embedding-tasks": `{"results": {"vectors": [{"data": {"values": [1, 2]}}, {"data": {"values": [3, 4]}}]}}`,
	})
	c := remote.NewHTTP(srv.URL+"/", "mini")
	assert.Equal(t, remote.TransportHTTP, c.Transport())

	vec, err := c.Embedding(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "mini", seen["/api/v1/task/embedding"]["model_id"])
	assert.Equal(t, "hello", seen["/api/v1/task/embedding"]["inputs"])

	vecs, err := c.Embeddings(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 2}, {3, 4}}, vecs)
	assert.Equal(t, []any{"a", "b"}, seen["/api/v1/task/embedding-tasks"]["inputs"])
}

func TestHTTPSentenceSimilarity(t *testing.T) {
	srv, seen := taskServer(t, map[string]string{
		"/api/v1/task/sentence-similarity":       `{"result": {"scores": [1.0, 0.5]}}`,
		"/api/v1/task/sentence-similarity-tasks": `{"results": [{"scores": [1.0, 0.5]}, {"scores": [0.5, 1.0]}]}`,
	})
	c := remote.NewHTTP(srv.URL, "mini")

	row, err := c.SentenceSimilarity(context.Background(), "a", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0.5}, row)
	inputs := seen["/api/v1/task/sentence-similarity"]["inputs"].(map[string]any)
	assert.Equal(t, "a", inputs["source_sentence"])
	assert.NotContains(t, inputs, "source_sentences")

	grid, err := c.SentenceSimilarities(context.Background(), []string{"a", "b"}, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 0.5}, {0.5, 1}}, grid)
	inputs = seen["/api/v1/task/sentence-similarity-tasks"]["inputs"].(map[string]any)
	assert.Equal(t, []any{"a", "b"}, inputs["source_sentences"])
}

func TestHTTPRerank(t *testing.T) {
	srv, seen := taskServer(t, map[string]string{
		"/api/v1/task/rerank": `{"result": {"query": "q", "scores": [
			{"index": 1, "score": 0.9, "text": "second"},
			{"score": 0.4, "text": "first"}
		]}}`,
		"/api/v1/task/rerank-tasks": `{"results": [
			{"scores": [{"index": "1", "score": "0.9"}]},
			{"scores": []}
		]}`,
	})
	c := remote.NewHTTP(srv.URL, "mini")

	res, err := c.Rerank(context.Background(), "q", docs(), 0)
	require.NoError(t, err)
	assert.Equal(t, models.RankedResult{{CorpusID: 1, Score: 0.9}, {CorpusID: 0, Score: 0.4}}, res)

	req := seen["/api/v1/task/rerank"]
	assert.Equal(t, float64(2), req["parameters"].(map[string]any)["top_n"])
	sent := req["inputs"].(map[string]any)["documents"].([]any)
	assert.Equal(t, map[string]any{"text": "first"}, sent[0])

	rs, err := c.RerankAll(context.Background(), []string{"q", "r"}, docs(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.ResultSet{{{CorpusID: 1, Score: 0.9}}, {}}, rs)
	assert.Equal(t, float64(1), seen["/api/v1/task/rerank-tasks"]["parameters"].(map[string]any)["top_n"])
}

func TestHTTPStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := remote.NewHTTP(srv.URL, "missing").Embedding(context.Background(), "a")
	var status *remote.StatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusNotFound, status.Code)
	assert.Equal(t, "embedding", status.Endpoint)
	assert.Contains(t, status.Body, "model not found")
}

func TestHTTPSchemaError(t *testing.T) {
	srv, _ := taskServer(t, map[string]string{
		"/api/v1/task/sentence-similarity": `{"result": {"scores": "nope"}}`,
	})
	_, err := remote.NewHTTP(srv.URL, "mini").SentenceSimilarity(context.Background(), "a", []string{"b"})
	var schema *remote.SchemaError
	require.ErrorAs(t, err, &schema)
	assert.Equal(t, remote.KindSimilarity, schema.Kind)
	assert.NotEmpty(t, schema.Problems)
}

func TestHTTPInsecureTLS(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"result": {"data": {"values": [1, 0]}}}`)
	}))
	t.Cleanup(srv.Close)

	supplied := &http.Client{}

	t.Run("applies regardless of option order", func(t *testing.T) {
		c := remote.NewHTTP(srv.URL, "mini", remote.WithInsecureTLS(), remote.WithHTTPClient(supplied))
		vec, err := c.Embedding(context.Background(), "hello")
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 0}, vec)
		assert.Nil(t, supplied.Transport)
	})

	t.Run("verifies certificates by default", func(t *testing.T) {
		c := remote.NewHTTP(srv.URL, "mini", remote.WithHTTPClient(supplied))
		_, err := c.Embedding(context.Background(), "hello")
		assert.Error(t, err)
	})
}
