package storage

import (
	"context"
	"errors"

	"github.com/0x5457/embedcheck/internal/models"
)

var ErrNotFound = errors.New("not found")

// ReportStore keeps the history of conformance runs.
type ReportStore interface {
	SaveReport(ctx context.Context, report *models.Report) error
	ListReports(ctx context.Context, limit int) ([]models.Report, error)
	GetReport(ctx context.Context, id string) (*models.Report, error)
}

// VectorStore is a document corpus indexed by embedding.
type VectorStore interface {
	Upsert(ids []string, docs []models.Document, embeddings [][]float32) error
	Query(embedding []float32, topK int) ([]models.DocumentHit, error)
	Len() int
	Close() error
}
