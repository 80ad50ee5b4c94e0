package search_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/0x5457/embedcheck/internal/embeddings"
	"github.com/0x5457/embedcheck/internal/models"
	"github.com/0x5457/embedcheck/internal/search"
	"github.com/0x5457/embedcheck/internal/similarity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func documents(t *testing.T) []models.Document {
	t.Helper()
	raw := `[
		{"text": "first sentence", "title": "first title"},
		{"text": "another sentence", "more": "more attributes here"},
		{"text": "a doc with nested metadata", "meta": {"foo": "bar", "i": 999, "f": 12.34}}
	]`
	var docs []models.Document
	require.NoError(t, json.Unmarshal([]byte(raw), &docs))
	return docs
}

func newService(t *testing.T) *search.Service {
	return &search.Service{
		Embedder: embeddings.NewLocal(64),
		Logger:   zaptest.NewLogger(t),
	}
}

func TestRerankEndToEnd(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	docs := documents(t)

	first, err := svc.Rerank(ctx, "test first sentence", docs, 3)
	require.NoError(t, err)
	require.Len(t, first, 3)

	ids := first.CorpusIDs()
	assert.ElementsMatch(t, []int{0, 1, 2}, ids)
	for i := 1; i < len(first); i++ {
		assert.LessOrEqual(t, first[i].Score, first[i-1].Score)
	}

	// Scores agree with an independent cosine computation.
	q, err := svc.Embed(ctx, "test first sentence")
	require.NoError(t, err)
	docVecs, err := svc.EmbedAll(ctx, models.DocumentTexts(docs))
	require.NoError(t, err)
	for _, hit := range first {
		want, err := similarity.Cosine(q, docVecs[hit.CorpusID])
		require.NoError(t, err)
		assert.InDelta(t, want, hit.Score, 1e-5)
	}

	again, err := svc.Rerank(ctx, "test first sentence", docs, 3)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestRerankTopNDefaultsToAll(t *testing.T) {
	svc := newService(t)
	res, err := svc.Rerank(context.Background(), "another", documents(t), 0)
	require.NoError(t, err)
	assert.Len(t, res, 3)

	res, err = svc.Rerank(context.Background(), "another", documents(t), 1)
	require.NoError(t, err)
	assert.Len(t, res, 1)
}

func TestRerankAllOneResultPerQuery(t *testing.T) {
	svc := newService(t)
	queries := []string{"test first sentence", "another test sentence"}
	rs, err := svc.RerankAll(context.Background(), queries, documents(t), 2)
	require.NoError(t, err)
	require.Len(t, rs, 2)

	for i, q := range queries {
		single, err := svc.Rerank(context.Background(), q, documents(t), 2)
		require.NoError(t, err)
		assert.Equal(t, single, rs[i])
	}
}

func TestRerankNoDocuments(t *testing.T) {
	_, err := newService(t).Rerank(context.Background(), "q", nil, 3)
	assert.ErrorIs(t, err, similarity.ErrEmptyCandidatePool)
}

func TestSentenceSimilarity(t *testing.T) {
	svc := newService(t)
	texts := []string{"test first sentence", "another test sentence"}

	scores, err := svc.SentenceSimilarity(context.Background(), texts[0], texts)
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.InDelta(t, 1.0, scores[0], 1e-5)
	assert.Less(t, scores[1], scores[0])

	grid, err := svc.SentenceSimilarities(context.Background(), texts, texts)
	require.NoError(t, err)
	require.Len(t, grid, 2)
	assert.InDelta(t, 1.0, grid[1][1], 1e-5)
	assert.InDelta(t, grid[0][1], grid[1][0], 1e-6)
}

func TestEmbedReturnsRawVectors(t *testing.T) {
	svc := newService(t)
	raw, err := embeddings.NewLocal(64).EmbedQuery(context.Background(), "hello world")
	require.NoError(t, err)
	got, err := svc.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}
