package conformance_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/0x5457/embedcheck/internal/conformance"
	"github.com/0x5457/embedcheck/internal/embeddings"
	"github.com/0x5457/embedcheck/internal/models"
	"github.com/0x5457/embedcheck/internal/remote"
	"github.com/0x5457/embedcheck/internal/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// loopback serves remote calls from a reference service, optionally
// perturbing or failing individual tasks.
type loopback struct {
	svc         *search.Service
	bumpRerank  float64
	failSimilar error
}

func (l *loopback) Transport() string { return "loopback" }

func widen(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func (l *loopback) Embedding(ctx context.Context, text string) ([]float64, error) {
	v, err := l.svc.Embed(ctx, text)
	return widen(v), err
}

func (l *loopback) Embeddings(ctx context.Context, texts []string) ([][]float64, error) {
	vs, err := l.svc.EmbedAll(ctx, texts)
	out := make([][]float64, len(vs))
	for i, v := range vs {
		out[i] = widen(v)
	}
	return out, err
}

func (l *loopback) SentenceSimilarity(ctx context.Context, source string, sentences []string) ([]float64, error) {
	if l.failSimilar != nil {
		return nil, l.failSimilar
	}
	return l.svc.SentenceSimilarity(ctx, source, sentences)
}

func (l *loopback) SentenceSimilarities(ctx context.Context, sources, sentences []string) ([][]float64, error) {
	return l.svc.SentenceSimilarities(ctx, sources, sentences)
}

func (l *loopback) Rerank(ctx context.Context, query string, docs []models.Document, topN int) (models.RankedResult, error) {
	res, err := l.svc.Rerank(ctx, query, docs, topN)
	if err == nil && len(res) > 0 {
		res[len(res)-1].Score += l.bumpRerank
	}
	return res, err
}

func (l *loopback) RerankAll(ctx context.Context, queries []string, docs []models.Document, topN int) (models.ResultSet, error) {
	return l.svc.RerankAll(ctx, queries, docs, topN)
}

var _ remote.Client = (*loopback)(nil)

// memStore records saved reports.
type memStore struct {
	mu      sync.Mutex
	reports []models.Report
}

func (m *memStore) SaveReport(_ context.Context, r *models.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, *r)
	return nil
}

func (m *memStore) ListReports(context.Context, int) ([]models.Report, error) {
	return m.reports, nil
}

func (m *memStore) GetReport(_ context.Context, id string) (*models.Report, error) {
	for i := range m.reports {
		if m.reports[i].ID == id {
			return &m.reports[i], nil
		}
	}
	return nil, errors.New("not found")
}

func newSuite(t *testing.T, rem remote.Client) *conformance.Suite {
	t.Helper()
	logger := zaptest.NewLogger(t)
	ref := &search.Service{Embedder: embeddings.NewLocal(64), Logger: logger}
	return &conformance.Suite{
		Reference: ref,
		Remote:    rem,
		Logger:    logger,
		ModelID:   "mini",
		Target:    "loopback",
	}
}

func reference(t *testing.T) *search.Service {
	return &search.Service{Embedder: embeddings.NewLocal(64), Logger: zaptest.NewLogger(t)}
}

func TestSuitePassesAgainstItself(t *testing.T) {
	store := &memStore{}
	s := newSuite(t, &loopback{svc: reference(t)})
	s.Store = store

	report, err := s.Run(context.Background(), conformance.DefaultScenario())
	require.NoError(t, err)
	require.Len(t, report.Results, len(conformance.Tasks))
	for i, res := range report.Results {
		assert.Equal(t, conformance.Tasks[i], res.Task)
		assert.True(t, res.Passed, "%s: %s", res.Task, res.Error)
		assert.Equal(t, models.FailureNone, res.Failure)
		assert.Equal(t, "loopback", res.Transport)
	}
	assert.True(t, report.Passed())
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, "mini", report.ModelID)

	require.Len(t, store.reports, 1)
	assert.Equal(t, report.ID, store.reports[0].ID)
}

func TestSuitePerturbedScoreFailsOnlyRerank(t *testing.T) {
	s := newSuite(t, &loopback{svc: reference(t), bumpRerank: 0.01})

	report, err := s.Run(context.Background(), conformance.DefaultScenario())
	require.NoError(t, err)
	assert.False(t, report.Passed())
	assert.Equal(t, 1, report.Failed())

	for _, res := range report.Results {
		if res.Task == conformance.TaskRerank {
			assert.False(t, res.Passed)
			assert.Equal(t, models.FailureDivergence, res.Failure)
			assert.Contains(t, res.Error, "corpus index")
			continue
		}
		assert.True(t, res.Passed, res.Task)
	}
}

func TestSuiteTransportFailureContinues(t *testing.T) {
	s := newSuite(t, &loopback{svc: reference(t), failSimilar: errors.New("connection reset")})

	report, err := s.Run(context.Background(), conformance.DefaultScenario())
	require.NoError(t, err)
	require.Len(t, report.Results, len(conformance.Tasks))
	assert.Equal(t, 1, report.Failed())

	res := report.Results[2]
	assert.Equal(t, conformance.TaskSentenceSimilarity, res.Task)
	assert.Equal(t, models.FailureTransport, res.Failure)
	assert.Contains(t, res.Error, "connection reset")
}

func TestRunTask(t *testing.T) {
	s := newSuite(t, &loopback{svc: reference(t)})

	res, err := s.RunTask(context.Background(), conformance.TaskRerankTasks, conformance.DefaultScenario())
	require.NoError(t, err)
	assert.True(t, res.Passed, res.Error)

	_, err = s.RunTask(context.Background(), "summarize", conformance.DefaultScenario())
	assert.ErrorIs(t, err, conformance.ErrUnknownTask)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &memStore{}
	s := newSuite(t, &loopback{svc: reference(t)})
	s.Store = store
	report, err := s.Run(ctx, conformance.DefaultScenario())
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Empty(t, report.Results)
	assert.Empty(t, store.reports)
}

func TestRunRejectsInvalidScenario(t *testing.T) {
	_, err := newSuite(t, &loopback{svc: reference(t)}).Run(context.Background(), conformance.Scenario{})
	assert.Error(t, err)
}

func TestRunTasksSubset(t *testing.T) {
	store := &memStore{}
	s := newSuite(t, &loopback{svc: reference(t), bumpRerank: 0.01})
	s.Store = store

	report, err := s.RunTasks(context.Background(), conformance.DefaultScenario(),
		[]string{conformance.TaskRerankTasks, conformance.TaskEmbedding})
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	assert.Equal(t, conformance.TaskRerankTasks, report.Results[0].Task)
	assert.Equal(t, conformance.TaskEmbedding, report.Results[1].Task)
	assert.True(t, report.Passed())
	assert.Len(t, store.reports, 1)

	_, err = s.RunTasks(context.Background(), conformance.DefaultScenario(), []string{"rerank", "bogus"})
	assert.ErrorIs(t, err, conformance.ErrUnknownTask)
	assert.Len(t, store.reports, 1)
}
