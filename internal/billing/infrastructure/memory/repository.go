package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	billing "plaza-billing/internal/billing/domain"
)

// BillRepository is an in-memory repository for bills.
type BillRepository struct {
	mu       sync.RWMutex
	data     map[string]billing.BillRecord
	byNumber map[string]string
}

// NewBillRepository constructs a repository.
func NewBillRepository() *BillRepository {
	return &BillRepository{
		data:     make(map[string]billing.BillRecord),
		byNumber: make(map[string]string),
	}
}

// Create stores a new bill.
func (r *BillRepository) Create(ctx context.Context, bill *billing.BillRecord) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(bill)
}

// Atomically runs fn while holding the write lock, handing it an insert function.
// Readers never observe a partial result of fn.
func (r *BillRepository) Atomically(fn func(insert func(*billing.BillRecord) error) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var inserted []string
	err := fn(func(bill *billing.BillRecord) error {
		if err := r.insertLocked(bill); err != nil {
			return err
		}
		inserted = append(inserted, bill.ID)
		return nil
	})
	if err != nil {
		for _, id := range inserted {
			delete(r.byNumber, r.data[id].BillNumber)
			delete(r.data, id)
		}
	}
	return err
}

func (r *BillRepository) insertLocked(bill *billing.BillRecord) error {
	if bill == nil {
		return billing.ErrNilBill
	}
	if _, ok := r.byNumber[bill.BillNumber]; ok {
		return billing.ErrDuplicateBill
	}
	if _, ok := r.data[bill.ID]; ok {
		return billing.ErrDuplicateBill
	}
	r.data[bill.ID] = *bill
	r.byNumber[bill.BillNumber] = bill.ID
	return nil
}

// Get loads a bill by id.
func (r *BillRepository) Get(ctx context.Context, id string) (*billing.BillRecord, error) {
	_ = ctx
	r.mu.RLock()
	bill, ok := r.data[id]
	r.mu.RUnlock()
	if !ok {
		return nil, billing.ErrBillNotFound
	}
	return &bill, nil
}

// List returns bills matching the filter, newest period first.
func (r *BillRepository) List(ctx context.Context, filter billing.ListFilter) ([]billing.BillRecord, error) {
	_ = ctx
	r.mu.RLock()
	var result []billing.BillRecord
	for _, bill := range r.data {
		if filter.BusinessID != "" && bill.BusinessID != filter.BusinessID {
			continue
		}
		if filter.Kind != "" && bill.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && bill.Status != filter.Status {
			continue
		}
		result = append(result, bill)
	}
	r.mu.RUnlock()

	sortNewestFirst(result)
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// History returns prior bills of a business and kind, newest first.
func (r *BillRepository) History(ctx context.Context, businessID string, kind billing.Kind, before time.Time, limit int) (billing.History, error) {
	bills, err := r.List(ctx, billing.ListFilter{BusinessID: businessID, Kind: kind})
	if err != nil {
		return nil, err
	}
	history := make(billing.History, 0, len(bills))
	for _, bill := range bills {
		if !bill.PeriodDate.Before(before) {
			continue
		}
		history = append(history, billing.HistoryEntryFromBill(bill))
	}
	if limit <= 0 {
		limit = billing.HistoryLimit
	}
	return history.Truncate(limit), nil
}

// UpdateStatus changes the payment status of a bill.
func (r *BillRepository) UpdateStatus(ctx context.Context, id string, status billing.PaymentStatus, at time.Time) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	bill, ok := r.data[id]
	if !ok {
		return billing.ErrBillNotFound
	}
	bill.Status = status
	bill.UpdatedAt = at.UTC()
	r.data[id] = bill
	return nil
}

func sortNewestFirst(bills []billing.BillRecord) {
	sort.Slice(bills, func(i, j int) bool {
		if bills[i].PeriodDate.Equal(bills[j].PeriodDate) {
			return bills[i].CreatedAt.After(bills[j].CreatedAt)
		}
		return bills[i].PeriodDate.After(bills[j].PeriodDate)
	})
}
