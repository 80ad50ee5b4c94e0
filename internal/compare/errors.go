package compare

import (
	"errors"
	"fmt"
)

var (
	ErrIndexMismatch      = errors.New("index mismatch")
	ErrToleranceExceeded  = errors.New("tolerance exceeded")
	ErrQueryCountMismatch = errors.New("query count mismatch")
	ErrLengthMismatch     = errors.New("length mismatch")
)

// IndexMismatchError reports the first rank position where the corpus indices of
// two ranked results differ. A side that ran out of hits reports -1.
type IndexMismatchError struct {
	Query    int
	Position int
	Expected int
	Actual   int
}

func (e *IndexMismatchError) Error() string {
	return fmt.Sprintf(
		"query %d: corpus index mismatch at rank %d: expected %d, got %d",
		e.Query, e.Position, e.Expected, e.Actual,
	)
}

func (e *IndexMismatchError) Is(target error) bool { return target == ErrIndexMismatch }

// ToleranceExceededError reports a value further than Tolerance from its
// reference. CorpusID is -1 for dense vectors and similarity rows.
type ToleranceExceededError struct {
	Query     int
	Position  int
	CorpusID  int
	Expected  float64
	Actual    float64
	Tolerance float64
}

// Delta is the absolute difference between the two values.
func (e *ToleranceExceededError) Delta() float64 {
	d := e.Actual - e.Expected
	if d < 0 {
		return -d
	}
	return d
}

func (e *ToleranceExceededError) Error() string {
	where := fmt.Sprintf("position %d", e.Position)
	if e.CorpusID >= 0 {
		where = fmt.Sprintf("rank %d (corpus index %d)", e.Position, e.CorpusID)
	}
	return fmt.Sprintf(
		"query %d: %s: expected %.6f, got %.6f (|delta| %.6f > %g)",
		e.Query, where, e.Expected, e.Actual, e.Delta(), e.Tolerance,
	)
}

func (e *ToleranceExceededError) Is(target error) bool { return target == ErrToleranceExceeded }

// QueryCountMismatchError is returned when two result sets do not align.
type QueryCountMismatchError struct {
	Expected int
	Actual   int
}

func (e *QueryCountMismatchError) Error() string {
	return fmt.Sprintf("query count mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *QueryCountMismatchError) Is(target error) bool { return target == ErrQueryCountMismatch }

// LengthMismatchError is returned when two dense rows differ in length.
type LengthMismatchError struct {
	Query    int
	Expected int
	Actual   int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("query %d: length mismatch: expected %d, got %d", e.Query, e.Expected, e.Actual)
}

func (e *LengthMismatchError) Is(target error) bool { return target == ErrLengthMismatch }
