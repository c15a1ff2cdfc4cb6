package application

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	obligations "plaza-billing/internal/obligations/domain"
)

// Service handles operator edits of obligation configs.
type Service struct {
	repo      obligations.Repository
	clock     Clock
	graceDays int
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithDefaultGraceDays sets the grace period given to configs created without one.
func WithDefaultGraceDays(days int) ServiceOption {
	return func(s *Service) {
		if days > 0 {
			s.graceDays = days
		}
	}
}

// NewService constructs a Service.
func NewService(repo obligations.Repository, clock Clock, opts ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, errors.New("obligation service: nil repository")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	s := &Service{repo: repo, clock: clock}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create validates and stores a new config. A zero grace period takes the
// service default.
func (s *Service) Create(ctx context.Context, in obligations.NewConfigInput) (*obligations.Config, error) {
	if in.GraceDays == 0 {
		in.GraceDays = s.graceDays
	}
	cfg, err := obligations.NewConfig(in, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Get returns a config.
func (s *Service) Get(ctx context.Context, id string) (*obligations.Config, error) {
	return s.repo.Get(ctx, id)
}

// List returns configs matching the filter.
func (s *Service) List(ctx context.Context, filter obligations.ListFilter) ([]obligations.Config, error) {
	return s.repo.List(ctx, filter)
}

// Reminders returns active configs whose reminder date has been reached.
func (s *Service) Reminders(ctx context.Context) ([]obligations.Config, error) {
	return s.repo.ListReminders(ctx, s.clock.Now())
}

// Pause deactivates a config.
func (s *Service) Pause(ctx context.Context, id string) (*obligations.Config, error) {
	return s.mutate(ctx, id, func(cfg *obligations.Config, now time.Time) error {
		cfg.Pause(now)
		return nil
	})
}

// Resume reactivates a config.
func (s *Service) Resume(ctx context.Context, id string) (*obligations.Config, error) {
	return s.mutate(ctx, id, func(cfg *obligations.Config, now time.Time) error {
		cfg.Resume(now)
		return nil
	})
}

// UpdateAmount changes the base amount for future occurrences.
func (s *Service) UpdateAmount(ctx context.Context, id string, amount decimal.Decimal) (*obligations.Config, error) {
	return s.mutate(ctx, id, func(cfg *obligations.Config, now time.Time) error {
		return cfg.UpdateAmount(amount, now)
	})
}

// ChangeFrequency changes the interval of a config without occurrences.
func (s *Service) ChangeFrequency(ctx context.Context, id string, freq obligations.Frequency) (*obligations.Config, error) {
	return s.mutate(ctx, id, func(cfg *obligations.Config, now time.Time) error {
		return cfg.ChangeFrequency(freq, now)
	})
}

func (s *Service) mutate(ctx context.Context, id string, fn func(cfg *obligations.Config, now time.Time) error) (*obligations.Config, error) {
	cfg, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(cfg, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
