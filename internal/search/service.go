package search

import (
	"context"
	"fmt"

	"github.com/0x5457/embedcheck/internal/embeddings"
	"github.com/0x5457/embedcheck/internal/models"
	"github.com/0x5457/embedcheck/internal/similarity"
	"go.uber.org/zap"
)

// Service is the reference engine: it embeds text with Embedder and answers the
// embedding, similarity and rerank tasks that a served model is checked against.
type Service struct {
	Embedder embeddings.Embedder
	Ranker   Ranker
	Logger   *zap.Logger
}

func (s *Service) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// Embed returns the raw (unnormalized) embedding of text.
func (s *Service) Embed(ctx context.Context, text string) (models.Embedding, error) {
	vec, err := s.Embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	s.log().Debug("embedded text", zap.Int("dim", len(vec)))
	return vec, nil
}

// EmbedAll returns the raw embeddings of texts in input order.
func (s *Service) EmbedAll(ctx context.Context, texts []string) ([]models.Embedding, error) {
	vecs, err := s.Embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed texts: %w", err)
	}
	s.log().Debug("embedded texts", zap.Int("count", len(vecs)))
	return vecs, nil
}

// SentenceSimilarity scores source against each sentence by cosine similarity.
func (s *Service) SentenceSimilarity(
	ctx context.Context,
	source string,
	sentences []string,
) ([]float64, error) {
	rows, err := s.SentenceSimilarities(ctx, []string{source}, sentences)
	if err != nil {
		return nil, err
	}
	return rows[0], nil
}

// SentenceSimilarities returns the cosine similarity grid of sources × sentences.
func (s *Service) SentenceSimilarities(
	ctx context.Context,
	sources, sentences []string,
) ([][]float64, error) {
	srcVecs, err := s.EmbedAll(ctx, sources)
	if err != nil {
		return nil, err
	}
	sentVecs, err := s.EmbedAll(ctx, sentences)
	if err != nil {
		return nil, err
	}
	queries := make([]models.Embedding, len(srcVecs))
	for i, v := range srcVecs {
		queries[i] = similarity.NormalizeOrZero(v)
	}
	pool := make([]models.Embedding, len(sentVecs))
	for i, v := range sentVecs {
		pool[i] = similarity.NormalizeOrZero(v)
	}
	grid, err := similarity.Matrix(queries, pool)
	if err != nil {
		return nil, fmt.Errorf("score sentences: %w", err)
	}
	s.log().Debug("scored sentence similarity",
		zap.Int("sources", len(sources)),
		zap.Int("sentences", len(sentences)),
	)
	return grid, nil
}

// Rerank orders docs by similarity to query. topN <= 0 keeps every document.
func (s *Service) Rerank(
	ctx context.Context,
	query string,
	docs []models.Document,
	topN int,
) (models.RankedResult, error) {
	rs, err := s.RerankAll(ctx, []string{query}, docs, topN)
	if err != nil {
		return nil, err
	}
	return rs[0], nil
}

// RerankAll ranks docs for every query. topN <= 0 keeps every document.
func (s *Service) RerankAll(
	ctx context.Context,
	queries []string,
	docs []models.Document,
	topN int,
) (models.ResultSet, error) {
	if topN <= 0 {
		topN = Unbounded
	}
	queryVecs, err := s.EmbedAll(ctx, queries)
	if err != nil {
		return nil, err
	}
	docVecs, err := s.EmbedAll(ctx, models.DocumentTexts(docs))
	if err != nil {
		return nil, err
	}
	rs, err := s.Ranker.Search(queryVecs, docVecs, topN)
	if err != nil {
		return nil, fmt.Errorf("rank documents: %w", err)
	}
	s.log().Debug("reranked documents",
		zap.Int("queries", len(queries)),
		zap.Int("documents", len(docs)),
		zap.Int("top_n", topN),
	)
	return rs, nil
}
