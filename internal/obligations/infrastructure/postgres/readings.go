package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	billing "plaza-billing/internal/billing/domain"
	obligations "plaza-billing/internal/obligations/domain"
)

// ReadingSource reads meter readings from the meter_readings table.
type ReadingSource struct {
	db *sql.DB
}

// NewReadingSource constructs a reading source.
func NewReadingSource(db *sql.DB) *ReadingSource {
	return &ReadingSource{db: db}
}

// LatestReadings returns the two most recent readings on or before the date.
func (s *ReadingSource) LatestReadings(ctx context.Context, meterID string, onOrBefore time.Time) (obligations.MeterReadings, error) {
	if s == nil || s.db == nil {
		return obligations.MeterReadings{}, errors.New("reading source: nil db")
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT reading_date, value
FROM meter_readings
WHERE meter_id = $1 AND reading_date <= $2
ORDER BY reading_date DESC
LIMIT 2`, meterID, onOrBefore.UTC())
	if err != nil {
		return obligations.MeterReadings{}, fmt.Errorf("%w: query readings: %w", billing.ErrPersistence, err)
	}
	defer rows.Close()

	var readings obligations.MeterReadings
	count := 0
	for rows.Next() {
		if count == 0 {
			err = rows.Scan(&readings.CurrentDate, &readings.Current)
		} else {
			err = rows.Scan(&readings.PreviousDate, &readings.Previous)
		}
		if err != nil {
			return obligations.MeterReadings{}, fmt.Errorf("%w: scan reading: %w", billing.ErrPersistence, err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return obligations.MeterReadings{}, fmt.Errorf("%w: query readings: %w", billing.ErrPersistence, err)
	}
	if count < 2 {
		return obligations.MeterReadings{}, obligations.ErrNoReadings
	}
	readings.CurrentDate = readings.CurrentDate.UTC()
	readings.PreviousDate = readings.PreviousDate.UTC()
	return readings, nil
}

// Record upserts a reading.
func (s *ReadingSource) Record(ctx context.Context, meterID string, at time.Time, value decimal.Decimal) error {
	if s == nil || s.db == nil {
		return errors.New("reading source: nil db")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO meter_readings (meter_id, reading_date, value)
VALUES ($1,$2,$3)
ON CONFLICT (meter_id, reading_date) DO UPDATE SET value = EXCLUDED.value`, meterID, billing.DateOf(at), value)
	if err != nil {
		return fmt.Errorf("%w: record reading: %w", billing.ErrPersistence, err)
	}
	return nil
}
