package sqlvec

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/0x5457/embedcheck/internal/models"
	"github.com/0x5457/embedcheck/internal/similarity"
	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

// Store keeps documents in SQLite and their embeddings in a sqlite-vec vec0
// table using cosine distance. A document's corpus index is its first
// insertion position; the vec0 rowid is that index plus one.
type Store struct {
	db        *sql.DB
	dimension int
}

func New(path string, dimension int) (*Store, error) {
	// enable sqlite-vec for all future connections
	sqlite_vec.Auto()
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := migrate(db, dimension); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, dimension: dimension}, nil
}

func migrate(db *sql.DB, dim int) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		seq INTEGER UNIQUE NOT NULL,
		body TEXT NOT NULL
	);`); err != nil {
		return err
	}
	// If dim <= 0, defer creation until first Upsert when dimension is known.
	if dim > 0 {
		if _, err := db.Exec(vecTableDDL(dim)); err != nil {
			return err
		}
	}
	return nil
}

func vecTableDDL(dim int) string {
	return fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS vec_documents USING vec0(
		embedding float32[%d] distance_metric=cosine
	);`, dim)
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Upsert(ids []string, docs []models.Document, embeddings [][]float32) error {
	if len(ids) != len(docs) || len(ids) != len(embeddings) {
		return fmt.Errorf("ids, docs and embeddings length mismatch: %d, %d, %d",
			len(ids), len(docs), len(embeddings))
	}
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	// Ensure vec table exists with correct dimension
	if err := s.ensureVecTable(tx, embeddings); err != nil {
		_ = tx.Rollback()
		return err
	}

	var next int64
	if err := tx.QueryRow(`SELECT COALESCE(MAX(seq) + 1, 0) FROM documents`).Scan(&next); err != nil {
		_ = tx.Rollback()
		return err
	}
	selectSeqStmt, err := tx.Prepare(`SELECT seq FROM documents WHERE id = ?`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer func() { _ = selectSeqStmt.Close() }()
	docStmt, err := tx.Prepare(`INSERT INTO documents(id, seq, body) VALUES(?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET body=excluded.body`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer func() { _ = docStmt.Close() }()
	// vec0 has no upsert; replace by delete then insert
	deleteVecStmt, err := tx.Prepare(`DELETE FROM vec_documents WHERE rowid = ?`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer func() { _ = deleteVecStmt.Close() }()
	insertVecStmt, err := tx.Prepare(`INSERT INTO vec_documents(rowid, embedding) VALUES(?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer func() { _ = insertVecStmt.Close() }()

	for i, id := range ids {
		if s.dimension > 0 && len(embeddings[i]) != s.dimension {
			_ = tx.Rollback()
			return &similarity.DimensionMismatchError{
				Expected: s.dimension,
				Actual:   len(embeddings[i]),
				Position: i,
			}
		}
		body, err := json.Marshal(docs[i])
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		v, err := sqlite_vec.SerializeFloat32(embeddings[i])
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		// check existing seq
		var seq sql.NullInt64
		if err := selectSeqStmt.QueryRow(id).Scan(&seq); err != nil &&
			!errors.Is(err, sql.ErrNoRows) {
			_ = tx.Rollback()
			return err
		}
		if !seq.Valid {
			seq = sql.NullInt64{Int64: next, Valid: true}
			next++
		}
		if _, err := docStmt.Exec(id, seq.Int64, string(body)); err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := deleteVecStmt.Exec(seq.Int64 + 1); err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := insertVecStmt.Exec(seq.Int64+1, v); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Query returns the topK nearest documents with score = 1 - cosine distance.
// Equal distances are ordered by corpus index. topK <= 0 returns all of them.
func (s *Store) Query(embedding []float32, topK int) ([]models.DocumentHit, error) {
	n := s.Len()
	if n == 0 {
		return nil, &similarity.EmptyCandidatePoolError{}
	}
	if s.dimension > 0 && len(embedding) != s.dimension {
		return nil, &similarity.DimensionMismatchError{Expected: s.dimension, Actual: len(embedding)}
	}
	if topK <= 0 || topK > n {
		topK = n
	}
	v, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return nil, err
	}
	// KNN via MATCH ... ORDER BY distance using sqlite-vec
	rows, err := s.db.Query(`
		WITH knn AS (
			SELECT rowid, distance
			FROM vec_documents
			WHERE embedding MATCH ?
			ORDER BY distance
			LIMIT ?
		)
		SELECT d.id, d.seq, d.body, k.distance
		FROM knn k
		JOIN documents d ON d.seq + 1 = k.rowid
		ORDER BY k.distance ASC, d.seq ASC
	`, v, topK)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	hits := make([]models.DocumentHit, 0, topK)
	for rows.Next() {
		var hit models.DocumentHit
		var body string
		var distance float64
		if err := rows.Scan(&hit.ID, &hit.CorpusID, &body, &distance); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(body), &hit.Document); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", hit.ID, err)
		}
		hit.Score = 1 - distance
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return hits, nil
}

func (s *Store) Len() int {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0
	}
	return n
}

func (s *Store) ensureVecTable(tx *sql.Tx, embeddings [][]float32) error {
	// Check if vec_documents exists
	var name string
	err := tx.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='vec_documents'`).
		Scan(&name)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if name == "vec_documents" {
		return nil
	}
	// Create with inferred dim
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return fmt.Errorf("cannot create vec_documents: unknown embedding dimension")
	}
	dim := len(embeddings[0])
	if _, err := tx.Exec(vecTableDDL(dim)); err != nil {
		return err
	}
	s.dimension = dim
	return nil
}
