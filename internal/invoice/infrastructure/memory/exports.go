package memory

import (
	"context"
	"sync"
	"time"
)

// ExportRecord is one rendered invoice.
type ExportRecord struct {
	BillID     string
	DocumentID string
	Format     string
	Status     string
	CreatedAt  time.Time
}

// ExportLog keeps export records in memory.
type ExportLog struct {
	mu      sync.Mutex
	records []ExportRecord
}

// NewExportLog constructs an empty log.
func NewExportLog() *ExportLog {
	return &ExportLog{}
}

// RecordExport appends a record.
func (l *ExportLog) RecordExport(_ context.Context, billID, documentID, format, status string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, ExportRecord{
		BillID:     billID,
		DocumentID: documentID,
		Format:     format,
		Status:     status,
		CreatedAt:  time.Now().UTC(),
	})
	return nil
}

// Records returns a copy of the stored records.
func (l *ExportLog) Records() []ExportRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ExportRecord, len(l.records))
	copy(out, l.records)
	return out
}
