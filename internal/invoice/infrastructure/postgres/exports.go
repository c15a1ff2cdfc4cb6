package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	billing "plaza-billing/internal/billing/domain"
)

// ExportRepository records rendered invoices in invoice_exports.
type ExportRepository struct {
	db *sql.DB
}

// NewExportRepository constructs a repository.
func NewExportRepository(db *sql.DB) *ExportRepository {
	return &ExportRepository{db: db}
}

// RecordExport stores an export record.
func (r *ExportRepository) RecordExport(ctx context.Context, billID, documentID, format, status string) error {
	if r == nil || r.db == nil {
		return errors.New("export repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO invoice_exports (id, bill_id, document_id, format, status)
VALUES ($1,$2,$3,$4,$5)`, uuid.NewString(), billID, documentID, format, status)
	if err != nil {
		return fmt.Errorf("%w: record export: %w", billing.ErrPersistence, err)
	}
	return nil
}
