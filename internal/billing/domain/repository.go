package billing

import (
	"context"
	"time"
)

// ListFilter narrows bill listings.
type ListFilter struct {
	BusinessID string
	Kind       Kind
	Status     PaymentStatus
	Limit      int
}

// Repository persists bill records.
type Repository interface {
	Create(ctx context.Context, bill *BillRecord) error
	Get(ctx context.Context, id string) (*BillRecord, error)
	List(ctx context.Context, filter ListFilter) ([]BillRecord, error)
	// History returns up to limit bills for the business and kind with a period strictly
	// before the given date, newest first.
	History(ctx context.Context, businessID string, kind Kind, before time.Time, limit int) (History, error)
	UpdateStatus(ctx context.Context, id string, status PaymentStatus, at time.Time) error
}
