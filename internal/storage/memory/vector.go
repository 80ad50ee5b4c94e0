package memory

import (
	"fmt"
	"slices"
	"sync"

	"github.com/0x5457/embedcheck/internal/models"
	"github.com/0x5457/embedcheck/internal/search"
)

// InMemoryVectorStore ranks with the reference ranker, so its hits follow the
// same ordering and tie-break rules as every other reference result. The
// corpus index of a document is its first insertion position.
type InMemoryVectorStore struct {
	mu     sync.RWMutex
	ranker search.Ranker
	ids    []string
	docs   []models.Document
	vecs   []models.Embedding
	index  map[string]int
}

func NewInMemoryVectorStore() *InMemoryVectorStore {
	return &InMemoryVectorStore{index: make(map[string]int)}
}

// WithWorkers sets the ranker's parallelism.
func (s *InMemoryVectorStore) WithWorkers(n int) *InMemoryVectorStore {
	s.ranker.Workers = n
	return s
}

// Upsert adds documents, replacing in place any id already stored.
func (s *InMemoryVectorStore) Upsert(ids []string, docs []models.Document, embeddings [][]float32) error {
	if len(ids) != len(docs) || len(ids) != len(embeddings) {
		return fmt.Errorf("ids, docs and embeddings length mismatch: %d, %d, %d",
			len(ids), len(docs), len(embeddings))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, id := range ids {
		vec := slices.Clone(embeddings[i])
		if pos, ok := s.index[id]; ok {
			s.docs[pos] = docs[i]
			s.vecs[pos] = vec
			continue
		}
		s.index[id] = len(s.ids)
		s.ids = append(s.ids, id)
		s.docs = append(s.docs, docs[i])
		s.vecs = append(s.vecs, vec)
	}
	return nil
}

// Query returns the topK nearest documents. topK <= 0 returns all of them.
func (s *InMemoryVectorStore) Query(embedding []float32, topK int) ([]models.DocumentHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = search.Unbounded
	}
	rs, err := s.ranker.Search([]models.Embedding{embedding}, s.vecs, topK)
	if err != nil {
		return nil, fmt.Errorf("query vector store: %w", err)
	}
	hits := make([]models.DocumentHit, len(rs[0]))
	for i, h := range rs[0] {
		hits[i] = models.DocumentHit{
			ID:       s.ids[h.CorpusID],
			Document: s.docs[h.CorpusID],
			CorpusID: h.CorpusID,
			Score:    h.Score,
		}
	}
	return hits, nil
}

func (s *InMemoryVectorStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

func (s *InMemoryVectorStore) Close() error { return nil }
