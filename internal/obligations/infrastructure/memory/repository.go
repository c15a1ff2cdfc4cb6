package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	billing "plaza-billing/internal/billing/domain"
	billmemory "plaza-billing/internal/billing/infrastructure/memory"
	obligations "plaza-billing/internal/obligations/domain"
)

// ConfigRepository is an in-memory obligation config repository. Materialisation is
// serialised per config and commits the bill and the advanced config together.
type ConfigRepository struct {
	bills *billmemory.BillRepository

	mu    sync.RWMutex
	data  map[string]obligations.Config
	locks map[string]*sync.Mutex
}

// NewConfigRepository constructs a repository writing occurrences into bills.
func NewConfigRepository(bills *billmemory.BillRepository) *ConfigRepository {
	return &ConfigRepository{
		bills: bills,
		data:  make(map[string]obligations.Config),
		locks: make(map[string]*sync.Mutex),
	}
}

// Create stores a new config.
func (r *ConfigRepository) Create(ctx context.Context, cfg *obligations.Config) error {
	_ = ctx
	if cfg == nil {
		return obligations.ErrNilConfig
	}
	r.mu.Lock()
	r.data[cfg.ID] = cloneConfig(*cfg)
	r.mu.Unlock()
	return nil
}

// Get loads a config.
func (r *ConfigRepository) Get(ctx context.Context, id string) (*obligations.Config, error) {
	_ = ctx
	r.mu.RLock()
	cfg, ok := r.data[id]
	r.mu.RUnlock()
	if !ok {
		return nil, obligations.ErrConfigNotFound
	}
	cfg = cloneConfig(cfg)
	return &cfg, nil
}

// List returns configs matching the filter ordered by next due date.
func (r *ConfigRepository) List(ctx context.Context, filter obligations.ListFilter) ([]obligations.Config, error) {
	_ = ctx
	r.mu.RLock()
	var result []obligations.Config
	for _, cfg := range r.data {
		if filter.Kind != "" && cfg.Kind != filter.Kind {
			continue
		}
		if filter.BusinessID != "" && cfg.BusinessID != filter.BusinessID {
			continue
		}
		if filter.Status != "" && cfg.Status != filter.Status {
			continue
		}
		result = append(result, cloneConfig(cfg))
	}
	r.mu.RUnlock()
	sortByDue(result)
	return result, nil
}

// Update stores operator-editable fields. Scheduler-owned fields (next due date,
// reminder date, occurrence count) are kept as stored.
func (r *ConfigRepository) Update(ctx context.Context, cfg *obligations.Config) error {
	_ = ctx
	if cfg == nil {
		return obligations.ErrNilConfig
	}
	lock := r.lockFor(cfg.ID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.data[cfg.ID]
	if !ok {
		return obligations.ErrConfigNotFound
	}
	if stored.OccurrenceCount > 0 && cfg.Frequency != stored.Frequency {
		return fmt.Errorf("%w: frequency is fixed once occurrences exist", billing.ErrInvalidConfiguration)
	}
	stored.Title = cfg.Title
	stored.Description = cfg.Description
	stored.BaseAmount = cfg.BaseAmount
	stored.Frequency = cfg.Frequency
	stored.AutoGenerate = cfg.AutoGenerate
	stored.Status = cfg.Status
	stored.GraceDays = cfg.GraceDays
	stored.UpdatedAt = cfg.UpdatedAt
	r.data[cfg.ID] = stored
	return nil
}

// ListDue returns active auto-generating configs due at now.
func (r *ConfigRepository) ListDue(ctx context.Context, now time.Time) ([]obligations.Config, error) {
	all, err := r.List(ctx, obligations.ListFilter{Status: obligations.StatusActive})
	if err != nil {
		return nil, err
	}
	due := all[:0]
	for _, cfg := range all {
		ok, err := obligations.IsDue(cfg, now)
		if err != nil {
			return nil, err
		}
		if ok {
			due = append(due, cfg)
		}
	}
	return due, nil
}

// ListReminders returns active configs whose reminder date has been reached.
func (r *ConfigRepository) ListReminders(ctx context.Context, now time.Time) ([]obligations.Config, error) {
	all, err := r.List(ctx, obligations.ListFilter{Status: obligations.StatusActive})
	if err != nil {
		return nil, err
	}
	result := all[:0]
	for _, cfg := range all {
		if obligations.ReminderDue(cfg, now) {
			result = append(result, cfg)
		}
	}
	return result, nil
}

// Materialize runs fn under the config's lock and commits its result atomically.
func (r *ConfigRepository) Materialize(ctx context.Context, id string, fn obligations.MaterializeFunc) (*billing.BillRecord, error) {
	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	cfg, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	bill, advanced, err := fn(ctx, *cfg)
	if err != nil {
		return nil, err
	}
	if bill == nil || advanced == nil {
		return nil, obligations.ErrNotDue
	}

	// Lock order is configs then bills; readers of either store see both writes or neither.
	r.mu.Lock()
	err = r.bills.Atomically(func(insert func(*billing.BillRecord) error) error {
		if err := insert(bill); err != nil {
			return err
		}
		r.data[advanced.ID] = cloneConfig(*advanced)
		return nil
	})
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return bill, nil
}

func (r *ConfigRepository) lockFor(id string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[id] = lock
	}
	return lock
}

func cloneConfig(cfg obligations.Config) obligations.Config {
	if cfg.ReminderDate != nil {
		reminder := *cfg.ReminderDate
		cfg.ReminderDate = &reminder
	}
	return cfg
}

func sortByDue(configs []obligations.Config) {
	sort.Slice(configs, func(i, j int) bool {
		if configs[i].NextDueDate.Equal(configs[j].NextDueDate) {
			return configs[i].ID < configs[j].ID
		}
		return configs[i].NextDueDate.Before(configs[j].NextDueDate)
	})
}
