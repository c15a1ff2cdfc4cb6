package obligations

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	billing "plaza-billing/internal/billing/domain"
)

// ListFilter narrows config listings.
type ListFilter struct {
	Kind       billing.Kind
	BusinessID string
	Status     Status
}

// MaterializeFunc runs while a config is locked against concurrent generation. It
// returns the bill to insert together with the advanced config. Any error aborts the
// unit of work, leaving the config unadvanced and no bill stored.
type MaterializeFunc func(ctx context.Context, cfg Config) (*billing.BillRecord, *Config, error)

// Repository persists obligation configs.
type Repository interface {
	Create(ctx context.Context, cfg *Config) error
	Get(ctx context.Context, id string) (*Config, error)
	List(ctx context.Context, filter ListFilter) ([]Config, error)
	Update(ctx context.Context, cfg *Config) error
	ListDue(ctx context.Context, now time.Time) ([]Config, error)
	ListReminders(ctx context.Context, now time.Time) ([]Config, error)
	// Materialize serialises the read-modify-write of one config with the creation of
	// its bill: both are stored or neither is.
	Materialize(ctx context.Context, id string, fn MaterializeFunc) (*billing.BillRecord, error)
}

// MeterReadings is the pair of readings a utility occurrence is billed from.
type MeterReadings struct {
	PreviousDate time.Time
	Previous     decimal.Decimal
	CurrentDate  time.Time
	Current      decimal.Decimal
}

// ReadingSource loads meter readings.
type ReadingSource interface {
	// LatestReadings returns the two most recent readings of the meter taken on or
	// before the given date, or ErrNoReadings when fewer than two exist.
	LatestReadings(ctx context.Context, meterID string, onOrBefore time.Time) (MeterReadings, error)
}

// ReadingRecorder stores meter readings, one per meter and date.
type ReadingRecorder interface {
	Record(ctx context.Context, meterID string, at time.Time, value decimal.Decimal) error
}
