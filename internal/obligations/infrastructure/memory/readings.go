package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	billing "plaza-billing/internal/billing/domain"
	obligations "plaza-billing/internal/obligations/domain"
)

// ReadingStore is an in-memory meter reading source.
type ReadingStore struct {
	mu       sync.RWMutex
	readings map[string][]meterReading
}

type meterReading struct {
	at    time.Time
	value decimal.Decimal
}

// NewReadingStore constructs an empty reading store.
func NewReadingStore() *ReadingStore {
	return &ReadingStore{readings: make(map[string][]meterReading)}
}

// Record stores a reading for a meter, replacing one taken on the same date.
func (s *ReadingStore) Record(_ context.Context, meterID string, at time.Time, value decimal.Decimal) error {
	at = billing.DateOf(at)
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.readings[meterID]
	for i := range list {
		if list[i].at.Equal(at) {
			list[i].value = value
			return nil
		}
	}
	list = append(list, meterReading{at: at, value: value})
	sort.Slice(list, func(i, j int) bool { return list[i].at.Before(list[j].at) })
	s.readings[meterID] = list
	return nil
}

// LatestReadings returns the two most recent readings on or before the date.
func (s *ReadingStore) LatestReadings(ctx context.Context, meterID string, onOrBefore time.Time) (obligations.MeterReadings, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	var eligible []meterReading
	for _, r := range s.readings[meterID] {
		if r.at.After(onOrBefore) {
			break
		}
		eligible = append(eligible, r)
	}
	if len(eligible) < 2 {
		return obligations.MeterReadings{}, obligations.ErrNoReadings
	}
	prev, cur := eligible[len(eligible)-2], eligible[len(eligible)-1]
	return obligations.MeterReadings{
		PreviousDate: prev.at,
		Previous:     prev.value,
		CurrentDate:  cur.at,
		Current:      cur.value,
	}, nil
}
