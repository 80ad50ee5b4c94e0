package search

import (
	"container/heap"
	"math"
	"slices"

	"github.com/0x5457/embedcheck/internal/models"
	"github.com/0x5457/embedcheck/internal/similarity"
	"golang.org/x/sync/errgroup"
)

// Unbounded asks for every candidate in the pool.
const Unbounded = -1

// Ranker selects the top-k candidates per query. The zero value ranks queries
// sequentially.
type Ranker struct {
	// Workers > 1 ranks queries in parallel. Output is identical either way.
	Workers int
}

// SemanticSearch ranks pool against every query with a sequential Ranker.
func SemanticSearch(queries, pool []models.Embedding, k int) (models.ResultSet, error) {
	return Ranker{}.Search(queries, pool, k)
}

// Search normalizes queries and candidates, scores every candidate by dot
// product and keeps the best min(k, len(pool)) per query, ordered by score
// descending and then by ascending corpus index. A negative k means unbounded.
func (r Ranker) Search(queries, pool []models.Embedding, k int) (models.ResultSet, error) {
	if len(pool) == 0 {
		return nil, &similarity.EmptyCandidatePoolError{}
	}
	if err := similarity.CheckDimensions(len(pool[0]), pool); err != nil {
		return nil, err
	}
	if k < 0 || k > len(pool) {
		k = len(pool)
	}

	normPool := make([]models.Embedding, len(pool))
	for i, c := range pool {
		normPool[i] = similarity.NormalizeOrZero(c)
	}

	results := make(models.ResultSet, len(queries))
	rank := func(qi int) error {
		q := similarity.NormalizeOrZero(queries[qi])
		scores, err := similarity.Scores(q, normPool)
		if err != nil {
			return err
		}
		results[qi] = topK(scores, k)
		return nil
	}

	if r.Workers <= 1 || len(queries) < 2 {
		for qi := range queries {
			if err := rank(qi); err != nil {
				return nil, err
			}
		}
		return results, nil
	}

	var g errgroup.Group
	g.SetLimit(r.Workers)
	for qi := range queries {
		g.Go(func() error { return rank(qi) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// better orders hits by score descending, then corpus index ascending. NaN
// ranks below every number.
func better(a, b models.Hit) bool {
	aNaN, bNaN := math.IsNaN(a.Score), math.IsNaN(b.Score)
	switch {
	case aNaN && bNaN:
		return a.CorpusID < b.CorpusID
	case aNaN:
		return false
	case bNaN:
		return true
	case a.Score != b.Score:
		return a.Score > b.Score
	}
	return a.CorpusID < b.CorpusID
}

func compareHits(a, b models.Hit) int {
	switch {
	case better(a, b):
		return -1
	case better(b, a):
		return 1
	}
	return 0
}

// worstFirst is a heap whose root is the weakest hit kept so far.
type worstFirst []models.Hit

func (h worstFirst) Len() int           { return len(h) }
func (h worstFirst) Less(i, j int) bool { return better(h[j], h[i]) }
func (h worstFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *worstFirst) Push(x any)        { *h = append(*h, x.(models.Hit)) }
func (h *worstFirst) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func topK(scores []float64, k int) models.RankedResult {
	if k == 0 {
		return models.RankedResult{}
	}
	h := make(worstFirst, 0, k)
	for i, s := range scores {
		hit := models.Hit{CorpusID: i, Score: s}
		if len(h) < k {
			heap.Push(&h, hit)
			continue
		}
		if better(hit, h[0]) {
			h[0] = hit
			heap.Fix(&h, 0)
		}
	}
	out := models.RankedResult(h)
	slices.SortFunc(out, compareHits)
	return out
}
