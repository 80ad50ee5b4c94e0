package sqlvec_test

import (
	"path/filepath"
	"testing"

	"github.com/0x5457/embedcheck/internal/compare"
	"github.com/0x5457/embedcheck/internal/models"
	"github.com/0x5457/embedcheck/internal/similarity"
	"github.com/0x5457/embedcheck/internal/storage"
	"github.com/0x5457/embedcheck/internal/storage/memory"
	"github.com/0x5457/embedcheck/internal/storage/sqlvec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, dim int) *sqlvec.Store {
	t.Helper()
	s, err := sqlvec.New(filepath.Join(t.TempDir(), "vec.db"), dim)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func corpus() ([]string, []models.Document, [][]float32) {
	ids := []string{"a", "b", "c"}
	docs := []models.Document{
		models.NewDocument("alpha"),
		models.NewDocument("beta"),
		models.NewDocument("gamma"),
	}
	vecs := [][]float32{{1, 0, 0}, {0, 1, 0}, {0.6, 0.8, 0}}
	return ids, docs, vecs
}

func TestUpsertAndQuery(t *testing.T) {
	s := newStore(t, 3)
	var _ storage.VectorStore = s
	ids, docs, vecs := corpus()
	require.NoError(t, s.Upsert(ids, docs, vecs))
	assert.Equal(t, 3, s.Len())

	hits, err := s.Query([]float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
	assert.Equal(t, 0, hits[0].CorpusID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-5)
	assert.Equal(t, "c", hits[1].ID)
	assert.InDelta(t, 0.6, hits[1].Score, 1e-5)
	assert.Equal(t, "gamma", hits[1].Document.Text())
}

func TestUpsertKeepsCorpusIndex(t *testing.T) {
	s := newStore(t, 0)
	ids, docs, vecs := corpus()
	require.NoError(t, s.Upsert(ids, docs, vecs))
	require.NoError(t, s.Upsert([]string{"a"}, []models.Document{models.NewDocument("alpha 2")}, [][]float32{{0, 0, 1}}))
	assert.Equal(t, 3, s.Len())

	hits, err := s.Query([]float32{0, 0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ID)
	assert.Equal(t, 0, hits[0].CorpusID)
	assert.Equal(t, "alpha 2", hits[0].Document.Text())
}

func TestQueryErrors(t *testing.T) {
	s := newStore(t, 3)
	_, err := s.Query([]float32{1, 0, 0}, 1)
	assert.ErrorIs(t, err, similarity.ErrEmptyCandidatePool)

	ids, docs, vecs := corpus()
	require.NoError(t, s.Upsert(ids, docs, vecs))
	_, err = s.Query([]float32{1, 0}, 1)
	assert.ErrorIs(t, err, similarity.ErrDimensionMismatch)
	assert.ErrorIs(t, s.Upsert([]string{"x"}, []models.Document{models.NewDocument("x")}, [][]float32{{1}}),
		similarity.ErrDimensionMismatch)
}

func TestAgreesWithMemoryStore(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	docs := make([]models.Document, len(ids))
	for i, id := range ids {
		docs[i] = models.NewDocument(id)
	}
	vecs := [][]float32{
		{0.9, 0.1, 0.3, 0.2},
		{0.1, 0.8, 0.5, 0.1},
		{0.4, 0.4, 0.4, 0.4},
		{0.7, 0.2, 0.1, 0.9},
		{0.2, 0.3, 0.9, 0.1},
	}
	vec := newStore(t, 4)
	mem := memory.NewInMemoryVectorStore()
	require.NoError(t, vec.Upsert(ids, docs, vecs))
	require.NoError(t, mem.Upsert(ids, docs, vecs))

	query := []float32{0.5, 0.2, 0.6, 0.3}
	vhits, err := vec.Query(query, 0)
	require.NoError(t, err)
	mhits, err := mem.Query(query, 0)
	require.NoError(t, err)

	toResult := func(hits []models.DocumentHit) models.RankedResult {
		out := make(models.RankedResult, len(hits))
		for i, h := range hits {
			out[i] = models.Hit{CorpusID: h.CorpusID, Score: h.Score}
		}
		return out
	}
	assert.NoError(t, compare.Compare(
		models.ResultSet{toResult(mhits)},
		models.ResultSet{toResult(vhits)},
	))
}
