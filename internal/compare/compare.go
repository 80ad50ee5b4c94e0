// Package compare decides whether a served model agrees with the reference.
// Expected is always the reference side and actual the service under test.
package compare

import (
	"math"

	"github.com/0x5457/embedcheck/internal/models"
)

// DefaultTolerance is the absolute per-element tolerance on scores and vector
// components.
const DefaultTolerance = 1e-3

// Comparator checks result sets and dense rows against a reference. Tolerance
// is always positive; exact equality is not offered.
type Comparator struct {
	Tolerance float64
}

// Option configures a Comparator.
type Option func(*Comparator)

// WithTolerance overrides DefaultTolerance. Zero, negative and NaN values are
// ignored and DefaultTolerance stays in effect.
func WithTolerance(t float64) Option {
	return func(c *Comparator) {
		if t > 0 {
			c.Tolerance = t
		}
	}
}

func New(opts ...Option) *Comparator {
	c := &Comparator{Tolerance: DefaultTolerance}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compare returns the first divergence between expected and actual, or nil.
func Compare(expected, actual models.ResultSet, opts ...Option) error {
	return New(opts...).Compare(expected, actual)
}

// Equivalent reports whether Compare finds no divergence.
func Equivalent(expected, actual models.ResultSet, opts ...Option) bool {
	return Compare(expected, actual, opts...) == nil
}

// Diff returns every divergence, at most one per query.
func Diff(expected, actual models.ResultSet, opts ...Option) []error {
	return New(opts...).Diff(expected, actual)
}

// CompareVectors checks dense rows element by element.
func CompareVectors(expected, actual [][]float64, opts ...Option) error {
	return New(opts...).CompareVectors(expected, actual)
}

func (c *Comparator) Compare(expected, actual models.ResultSet) error {
	if len(expected) != len(actual) {
		return &QueryCountMismatchError{Expected: len(expected), Actual: len(actual)}
	}
	for q := range expected {
		if err := c.CompareRanked(q, expected[q], actual[q]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Comparator) Diff(expected, actual models.ResultSet) []error {
	if len(expected) != len(actual) {
		return []error{&QueryCountMismatchError{Expected: len(expected), Actual: len(actual)}}
	}
	var errs []error
	for q := range expected {
		if err := c.CompareRanked(q, expected[q], actual[q]); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// CompareRanked checks one query's ranked results. Every index is checked
// before any score.
func (c *Comparator) CompareRanked(query int, expected, actual models.RankedResult) error {
	n := max(len(expected), len(actual))
	for i := 0; i < n; i++ {
		exp, act := -1, -1
		if i < len(expected) {
			exp = expected[i].CorpusID
		}
		if i < len(actual) {
			act = actual[i].CorpusID
		}
		if exp != act {
			return &IndexMismatchError{Query: query, Position: i, Expected: exp, Actual: act}
		}
	}
	for i := range expected {
		if !c.within(expected[i].Score, actual[i].Score) {
			return &ToleranceExceededError{
				Query:     query,
				Position:  i,
				CorpusID:  expected[i].CorpusID,
				Expected:  expected[i].Score,
				Actual:    actual[i].Score,
				Tolerance: c.Tolerance,
			}
		}
	}
	return nil
}

func (c *Comparator) CompareVectors(expected, actual [][]float64) error {
	if len(expected) != len(actual) {
		return &QueryCountMismatchError{Expected: len(expected), Actual: len(actual)}
	}
	for q := range expected {
		if err := c.CompareRow(q, expected[q], actual[q]); err != nil {
			return err
		}
	}
	return nil
}

// CompareRow checks a single dense row.
func (c *Comparator) CompareRow(query int, expected, actual []float64) error {
	if len(expected) != len(actual) {
		return &LengthMismatchError{Query: query, Expected: len(expected), Actual: len(actual)}
	}
	for i := range expected {
		if !c.within(expected[i], actual[i]) {
			return &ToleranceExceededError{
				Query:     query,
				Position:  i,
				CorpusID:  -1,
				Expected:  expected[i],
				Actual:    actual[i],
				Tolerance: c.Tolerance,
			}
		}
	}
	return nil
}

// within treats two NaNs as equal and a single NaN as a divergence.
func (c *Comparator) within(expected, actual float64) bool {
	eNaN, aNaN := math.IsNaN(expected), math.IsNaN(actual)
	if eNaN || aNaN {
		return eNaN && aNaN
	}
	return math.Abs(expected-actual) <= c.Tolerance
}
