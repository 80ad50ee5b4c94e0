package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Embedding is a dense vector produced by an embedding model.
type Embedding = []float32

// Hit is one ranked candidate: its position in the candidate pool and its score.
type Hit struct {
	CorpusID int     `json:"index"`
	Score    float64 `json:"score"`
}

// UnmarshalJSON accepts both the REST ("index") and the sentence-transformers
// ("corpus_id") naming. corpus_id is used when index is absent or null.
// Integers may arrive string-encoded (protojson int64) and a missing index
// means 0 (proto3 omits default values).
func (h *Hit) UnmarshalJSON(data []byte) error {
	var raw struct {
		Index    json.RawMessage `json:"index"`
		CorpusID json.RawMessage `json:"corpus_id"`
		Score    json.RawMessage `json:"score"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	idx := raw.Index
	if t := bytes.TrimSpace(idx); len(t) == 0 || bytes.Equal(t, []byte("null")) {
		idx = raw.CorpusID
	}
	id, err := flexInt(idx)
	if err != nil {
		return fmt.Errorf("hit index: %w", err)
	}
	score, err := flexFloat(raw.Score)
	if err != nil {
		return fmt.Errorf("hit score: %w", err)
	}
	h.CorpusID = id
	h.Score = score
	return nil
}

func flexInt(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		return strconv.Atoi(s)
	}
	var n int
	err := json.Unmarshal(raw, &n)
	return n, err
}

func flexFloat(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		return strconv.ParseFloat(s, 64)
	}
	var f float64
	err := json.Unmarshal(raw, &f)
	return f, err
}

// RankedResult is the ordered top-k hits for a single query.
type RankedResult []Hit

// CorpusIDs returns the hit indices in rank order.
func (r RankedResult) CorpusIDs() []int {
	ids := make([]int, len(r))
	for i, h := range r {
		ids[i] = h.CorpusID
	}
	return ids
}

// Scores returns the hit scores in rank order.
func (r RankedResult) Scores() []float64 {
	scores := make([]float64, len(r))
	for i, h := range r {
		scores[i] = h.Score
	}
	return scores
}

// ResultSet maps query position to its ranked result.
type ResultSet []RankedResult

// DocumentHit is a vector store hit carrying the stored document.
type DocumentHit struct {
	ID       string   `json:"id"`
	Document Document `json:"document"`
	CorpusID int      `json:"index"`
	Score    float64  `json:"score"`
}

// Task outcome kinds.
type FailureKind string

const (
	FailureNone       FailureKind = ""
	FailureDivergence FailureKind = "divergence"
	FailureTransport  FailureKind = "transport"
	FailureReference  FailureKind = "reference"
)

// TaskResult records the outcome of one conformance check.
type TaskResult struct {
	Task      string        `json:"task"`
	Transport string        `json:"transport"`
	Passed    bool          `json:"passed"`
	Failure   FailureKind   `json:"failure,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Report is a full conformance run.
type Report struct {
	ID        string       `json:"id"`
	ModelID   string       `json:"model_id"`
	Target    string       `json:"target"`
	Transport string       `json:"transport"`
	StartedAt time.Time    `json:"started_at"`
	Results   []TaskResult `json:"results"`
}

// Passed reports whether every task passed.
func (r *Report) Passed() bool {
	for _, res := range r.Results {
		if !res.Passed {
			return false
		}
	}
	return true
}

// Failed returns the number of failing tasks.
func (r *Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if !res.Passed {
			n++
		}
	}
	return n
}
