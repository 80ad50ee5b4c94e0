package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/0x5457/embedcheck/internal/models"
	"github.com/0x5457/embedcheck/internal/storage"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so started_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ReportStore persists conformance reports.
type ReportStore struct {
	db *sql.DB
}

func New(path string) (*ReportStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &ReportStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		model_id TEXT NOT NULL,
		target TEXT NOT NULL,
		transport TEXT NOT NULL,
		started_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS task_results (
		report_id TEXT NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		task TEXT NOT NULL,
		transport TEXT NOT NULL,
		passed INTEGER NOT NULL,
		failure TEXT,
		error TEXT,
		duration_ns INTEGER NOT NULL,
		PRIMARY KEY (report_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_reports_started_at ON reports(started_at);`)
	return err
}

func (s *ReportStore) Close() error { return s.db.Close() }

func (s *ReportStore) SaveReport(ctx context.Context, r *models.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO reports(id,model_id,target,transport,started_at)
		VALUES(?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
		model_id=excluded.model_id,
		target=excluded.target,
		transport=excluded.transport,
		started_at=excluded.started_at`,
		r.ID, r.ModelID, r.Target, r.Transport, r.StartedAt.UTC().Format(timeLayout),
	); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_results WHERE report_id = ?`, r.ID); err != nil {
		_ = tx.Rollback()
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO task_results(
		report_id,seq,task,transport,passed,failure,error,duration_ns
	) VALUES(?,?,?,?,?,?,?,?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer func() { _ = stmt.Close() }()
	for i, res := range r.Results {
		if _, err := stmt.ExecContext(ctx,
			r.ID,
			i,
			res.Task,
			res.Transport,
			res.Passed,
			string(res.Failure),
			res.Error,
			int64(res.Duration),
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// ListReports returns the newest reports first. limit <= 0 means no limit.
func (s *ReportStore) ListReports(ctx context.Context, limit int) ([]models.Report, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,model_id,target,transport,started_at FROM reports
		ORDER BY started_at DESC, id ASC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	var out []models.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		out = append(out, *r)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Results, err = s.results(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *ReportStore) GetReport(ctx context.Context, id string) (*models.Report, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,model_id,target,transport,started_at FROM reports WHERE id = ?`,
		id,
	)
	r, err := scanReport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("report %s: %w", id, storage.ErrNotFound)
		}
		return nil, err
	}
	if r.Results, err = s.results(ctx, id); err != nil {
		return nil, err
	}
	return r, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(row scanner) (*models.Report, error) {
	var r models.Report
	var started string
	if err := row.Scan(&r.ID, &r.ModelID, &r.Target, &r.Transport, &started); err != nil {
		return nil, err
	}
	t, err := time.Parse(timeLayout, started)
	if err != nil {
		return nil, fmt.Errorf("report %s: bad started_at: %w", r.ID, err)
	}
	r.StartedAt = t
	return &r, nil
}

func (s *ReportStore) results(ctx context.Context, id string) ([]models.TaskResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT task,transport,passed,failure,error,duration_ns FROM task_results
		WHERE report_id = ? ORDER BY seq`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []models.TaskResult
	for rows.Next() {
		var res models.TaskResult
		var failure, msg sql.NullString
		var dur int64
		if err := rows.Scan(&res.Task, &res.Transport, &res.Passed, &failure, &msg, &dur); err != nil {
			return nil, err
		}
		res.Failure = models.FailureKind(failure.String)
		res.Error = msg.String
		res.Duration = time.Duration(dur)
		out = append(out, res)
	}
	return out, rows.Err()
}
