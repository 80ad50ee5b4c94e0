package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/0x5457/embedcheck/internal/models"
	"github.com/0x5457/embedcheck/internal/storage"
	"github.com/0x5457/embedcheck/internal/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *sqlite.ReportStore {
	t.Helper()
	s, err := sqlite.New(filepath.Join(t.TempDir(), "reports.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func report(id string, started time.Time) *models.Report {
	return &models.Report{
		ID:        id,
		ModelID:   "mini",
		Target:    "https://model.example.com",
		Transport: "http",
		StartedAt: started,
		Results: []models.TaskResult{
			{Task: "embedding", Transport: "http", Passed: true, Duration: 12 * time.Millisecond},
			{
				Task:      "rerank",
				Transport: "http",
				Failure:   models.FailureDivergence,
				Error:     "query 0: corpus index mismatch at rank 1: expected 2, got 1",
				Duration:  40 * time.Millisecond,
			},
		},
	}
}

func TestSaveAndGetReport(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	started := time.Date(2026, 3, 1, 12, 0, 0, 500, time.UTC)
	want := report("r1", started)
	require.NoError(t, s.SaveReport(ctx, want))

	got, err := s.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, want.ModelID, got.ModelID)
	assert.Equal(t, want.Target, got.Target)
	assert.True(t, started.Equal(got.StartedAt))
	assert.Equal(t, want.Results, got.Results)
	assert.False(t, got.Passed())
}

func TestSaveReportReplacesResults(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	r := report("r1", time.Now())
	require.NoError(t, s.SaveReport(ctx, r))

	r.Results = r.Results[:1]
	require.NoError(t, s.SaveReport(ctx, r))

	got, err := s.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, got.Results, 1)
	assert.True(t, got.Passed())
}

func TestGetReportNotFound(t *testing.T) {
	_, err := newStore(t).GetReport(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListReportsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveReport(ctx, report("old", base)))
	require.NoError(t, s.SaveReport(ctx, report("new", base.Add(1500*time.Millisecond))))
	require.NoError(t, s.SaveReport(ctx, report("mid", base.Add(time.Second))))

	all, err := s.ListReports(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "new", all[0].ID)
	assert.Equal(t, "mid", all[1].ID)
	assert.Equal(t, "old", all[2].ID)
	assert.Len(t, all[0].Results, 2)

	limited, err := s.ListReports(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "new", limited[0].ID)
}

func TestReportStoreInterface(t *testing.T) {
	var _ storage.ReportStore = newStore(t)
}
