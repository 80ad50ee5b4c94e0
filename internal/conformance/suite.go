// Package conformance runs the task checks that decide whether a served model
// agrees with the reference engine.
package conformance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/0x5457/embedcheck/internal/compare"
	"github.com/0x5457/embedcheck/internal/models"
	"github.com/0x5457/embedcheck/internal/remote"
	"github.com/0x5457/embedcheck/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	TaskEmbedding               = "embedding"
	TaskEmbeddings              = "embedding-tasks"
	TaskSentenceSimilarity      = "sentence-similarity"
	TaskSentenceSimilarityTasks = "sentence-similarity-tasks"
	TaskRerank                  = "rerank"
	TaskRerankTasks             = "rerank-tasks"
)

// Tasks lists every check in run order.
var Tasks = []string{
	TaskEmbedding,
	TaskEmbeddings,
	TaskSentenceSimilarity,
	TaskSentenceSimilarityTasks,
	TaskRerank,
	TaskRerankTasks,
}

var ErrUnknownTask = errors.New("unknown task")

// Reference computes the expected side of every task. *search.Service
// satisfies it.
type Reference interface {
	Embed(ctx context.Context, text string) (models.Embedding, error)
	EmbedAll(ctx context.Context, texts []string) ([]models.Embedding, error)
	SentenceSimilarity(ctx context.Context, source string, sentences []string) ([]float64, error)
	SentenceSimilarities(ctx context.Context, sources, sentences []string) ([][]float64, error)
	Rerank(ctx context.Context, query string, docs []models.Document, topN int) (models.RankedResult, error)
	RerankAll(ctx context.Context, queries []string, docs []models.Document, topN int) (models.ResultSet, error)
}

// Suite checks Remote against Reference.
type Suite struct {
	Reference  Reference
	Remote     remote.Client
	Comparator *compare.Comparator
	Store      storage.ReportStore
	Logger     *zap.Logger
	ModelID    string
	Target     string
}

// stageError tags an error with the side that produced it.
type stageError struct {
	kind models.FailureKind
	err  error
}

func (e *stageError) Error() string { return fmt.Sprintf("%s: %v", e.kind, e.err) }
func (e *stageError) Unwrap() error { return e.err }

func referenceErr(err error) error { return &stageError{kind: models.FailureReference, err: err} }
func transportErr(err error) error { return &stageError{kind: models.FailureTransport, err: err} }

type taskFunc func(ctx context.Context, s *Suite, sc Scenario) error

var taskFuncs = map[string]taskFunc{
	TaskEmbedding:               checkEmbedding,
	TaskEmbeddings:              checkEmbeddings,
	TaskSentenceSimilarity:      checkSentenceSimilarity,
	TaskSentenceSimilarityTasks: checkSentenceSimilarityTasks,
	TaskRerank:                  checkRerank,
	TaskRerankTasks:             checkRerankTasks,
}

func (s *Suite) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *Suite) comparator() *compare.Comparator {
	if s.Comparator == nil {
		return compare.New()
	}
	return s.Comparator
}

// Run executes every task in order. A failing task does not stop the others;
// only context cancellation does. The report is saved when a Store is set.
func (s *Suite) Run(ctx context.Context, sc Scenario) (*models.Report, error) {
	return s.RunTasks(ctx, sc, Tasks)
}

// RunTasks is Run restricted to the named tasks, executed in the given order.
func (s *Suite) RunTasks(ctx context.Context, sc Scenario, names []string) (*models.Report, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	for _, name := range names {
		if _, ok := taskFuncs[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTask, name)
		}
	}
	report := &models.Report{
		ID:        uuid.NewString(),
		ModelID:   s.ModelID,
		Target:    s.Target,
		Transport: s.Remote.Transport(),
		StartedAt: time.Now().UTC(),
	}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, err := s.RunTask(ctx, name, sc)
		if err != nil {
			return report, err
		}
		report.Results = append(report.Results, res)
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	s.log().Info("conformance run finished",
		zap.String("report_id", report.ID),
		zap.String("model_id", report.ModelID),
		zap.Int("tasks", len(report.Results)),
		zap.Int("failed", report.Failed()),
	)
	if s.Store != nil {
		if err := s.Store.SaveReport(ctx, report); err != nil {
			return report, fmt.Errorf("save report: %w", err)
		}
	}
	return report, nil
}

// RunTask executes one named task. The returned error is only set for an
// unknown task name; check outcomes live in the TaskResult.
func (s *Suite) RunTask(ctx context.Context, name string, sc Scenario) (models.TaskResult, error) {
	fn, ok := taskFuncs[name]
	if !ok {
		return models.TaskResult{}, fmt.Errorf("%w: %q", ErrUnknownTask, name)
	}
	start := time.Now()
	err := fn(ctx, s, sc)
	res := models.TaskResult{
		Task:      name,
		Transport: s.Remote.Transport(),
		Passed:    err == nil,
		Duration:  time.Since(start),
	}
	if err != nil {
		res.Failure = classify(err)
		res.Error = err.Error()
		s.log().Warn("task failed",
			zap.String("task", name),
			zap.String("failure", string(res.Failure)),
			zap.Error(err),
		)
	} else {
		s.log().Info("task passed", zap.String("task", name), zap.Duration("elapsed", res.Duration))
	}
	return res, nil
}

func classify(err error) models.FailureKind {
	var se *stageError
	if errors.As(err, &se) {
		return se.kind
	}
	return models.FailureDivergence
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func checkEmbedding(ctx context.Context, s *Suite, sc Scenario) error {
	expected, err := s.Reference.Embed(ctx, sc.Text)
	if err != nil {
		return referenceErr(err)
	}
	actual, err := s.Remote.Embedding(ctx, sc.Text)
	if err != nil {
		return transportErr(err)
	}
	return s.comparator().CompareVectors([][]float64{toFloat64(expected)}, [][]float64{actual})
}

func checkEmbeddings(ctx context.Context, s *Suite, sc Scenario) error {
	vecs, err := s.Reference.EmbedAll(ctx, sc.Texts)
	if err != nil {
		return referenceErr(err)
	}
	expected := make([][]float64, len(vecs))
	for i, v := range vecs {
		expected[i] = toFloat64(v)
	}
	actual, err := s.Remote.Embeddings(ctx, sc.Texts)
	if err != nil {
		return transportErr(err)
	}
	return s.comparator().CompareVectors(expected, actual)
}

func checkSentenceSimilarity(ctx context.Context, s *Suite, sc Scenario) error {
	expected, err := s.Reference.SentenceSimilarity(ctx, sc.Text, sc.Texts)
	if err != nil {
		return referenceErr(err)
	}
	actual, err := s.Remote.SentenceSimilarity(ctx, sc.Text, sc.Texts)
	if err != nil {
		return transportErr(err)
	}
	return s.comparator().CompareVectors([][]float64{expected}, [][]float64{actual})
}

func checkSentenceSimilarityTasks(ctx context.Context, s *Suite, sc Scenario) error {
	expected, err := s.Reference.SentenceSimilarities(ctx, sc.Texts, sc.Texts)
	if err != nil {
		return referenceErr(err)
	}
	actual, err := s.Remote.SentenceSimilarities(ctx, sc.Texts, sc.Texts)
	if err != nil {
		return transportErr(err)
	}
	return s.comparator().CompareVectors(expected, actual)
}

func checkRerank(ctx context.Context, s *Suite, sc Scenario) error {
	expected, err := s.Reference.Rerank(ctx, sc.Text, sc.Documents, sc.TopK())
	if err != nil {
		return referenceErr(err)
	}
	actual, err := s.Remote.Rerank(ctx, sc.Text, sc.Documents, sc.TopK())
	if err != nil {
		return transportErr(err)
	}
	return s.comparator().Compare(models.ResultSet{expected}, models.ResultSet{actual})
}

func checkRerankTasks(ctx context.Context, s *Suite, sc Scenario) error {
	expected, err := s.Reference.RerankAll(ctx, sc.Texts, sc.Documents, sc.TopK())
	if err != nil {
		return referenceErr(err)
	}
	actual, err := s.Remote.RerankAll(ctx, sc.Texts, sc.Documents, sc.TopK())
	if err != nil {
		return transportErr(err)
	}
	return s.comparator().Compare(expected, actual)
}
