package similarity

import (
	"errors"
	"fmt"
)

var (
	ErrDegenerateVector   = errors.New("degenerate vector")
	ErrDimensionMismatch  = errors.New("dimension mismatch")
	ErrEmptyCandidatePool = errors.New("empty candidate pool")
)

// DegenerateVectorError is returned when a vector with zero norm is normalized.
type DegenerateVectorError struct {
	Dim int
}

func (e *DegenerateVectorError) Error() string {
	if e.Dim == 0 {
		return "degenerate vector: empty embedding"
	}
	return fmt.Sprintf("degenerate vector: zero norm over %d dimensions", e.Dim)
}

func (e *DegenerateVectorError) Is(target error) bool { return target == ErrDegenerateVector }

// DimensionMismatchError is returned when a candidate does not share the query's
// dimensionality. Position is the candidate's pool index.
type DimensionMismatchError struct {
	Expected int
	Actual   int
	Position int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf(
		"dimension mismatch at candidate %d: expected %d, got %d",
		e.Position, e.Expected, e.Actual,
	)
}

func (e *DimensionMismatchError) Is(target error) bool { return target == ErrDimensionMismatch }

// EmptyCandidatePoolError is returned when there is nothing to score or rank.
type EmptyCandidatePoolError struct{}

func (e *EmptyCandidatePoolError) Error() string { return "empty candidate pool: nothing to rank" }

func (e *EmptyCandidatePoolError) Is(target error) bool { return target == ErrEmptyCandidatePool }
