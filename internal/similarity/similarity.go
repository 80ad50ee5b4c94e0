// Package similarity holds the vector primitives of the reference engine:
// L2 normalization and dot-product scoring.
package similarity

import (
	"math"

	"github.com/0x5457/embedcheck/internal/models"
)

// Norm returns the Euclidean norm of v.
func Norm(v models.Embedding) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-length copy of v. Zero-norm and empty inputs yield a
// *DegenerateVectorError.
func Normalize(v models.Embedding) (models.Embedding, error) {
	norm := Norm(v)
	if norm == 0 {
		return nil, &DegenerateVectorError{Dim: len(v)}
	}
	out := make(models.Embedding, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, nil
}

// NormalizeOrZero is Normalize with the lenient policy used for ranking: a
// degenerate vector is returned as a zero vector of the same length, so it
// scores 0 against everything.
func NormalizeOrZero(v models.Embedding) models.Embedding {
	out, err := Normalize(v)
	if err != nil {
		return make(models.Embedding, len(v))
	}
	return out
}

// NormalizeAll normalizes every vector, failing on the first degenerate one.
func NormalizeAll(vs []models.Embedding) ([]models.Embedding, error) {
	out := make([]models.Embedding, len(vs))
	for i, v := range vs {
		n, err := Normalize(v)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// Dot returns the dot product of a and b, accumulated in float64. The caller
// guarantees equal length.
func Dot(a, b models.Embedding) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// Scores computes the dot product of query against every candidate in pool.
// Inputs are expected to be normalized already.
func Scores(query models.Embedding, pool []models.Embedding) ([]float64, error) {
	if len(pool) == 0 {
		return nil, &EmptyCandidatePoolError{}
	}
	if err := CheckDimensions(len(query), pool); err != nil {
		return nil, err
	}
	scores := make([]float64, len(pool))
	for i, c := range pool {
		scores[i] = Dot(query, c)
	}
	return scores, nil
}

// Matrix scores every query against every candidate. Row i holds the scores of
// queries[i].
func Matrix(queries, pool []models.Embedding) ([][]float64, error) {
	out := make([][]float64, len(queries))
	for i, q := range queries {
		row, err := Scores(q, pool)
		if err != nil {
			return nil, err
		}
		out[i] = row
	}
	return out, nil
}

// Cosine returns the cosine similarity of two raw vectors. Degenerate inputs
// score 0.
func Cosine(a, b models.Embedding) (float64, error) {
	if len(a) != len(b) {
		return 0, &DimensionMismatchError{Expected: len(a), Actual: len(b)}
	}
	return Dot(NormalizeOrZero(a), NormalizeOrZero(b)), nil
}

// CheckDimensions verifies every candidate has dimension dim.
func CheckDimensions(dim int, pool []models.Embedding) error {
	for i, c := range pool {
		if len(c) != dim {
			return &DimensionMismatchError{Expected: dim, Actual: len(c), Position: i}
		}
	}
	return nil
}
