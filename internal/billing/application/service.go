package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	billing "plaza-billing/internal/billing/domain"
	"plaza-billing/internal/observability/metrics"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Statement is a bill evaluated at a point in time together with the history it used.
type Statement struct {
	Bill        billing.BillRecord `json:"bill"`
	History     billing.History    `json:"history"`
	Settlement  billing.Settlement `json:"settlement"`
	EvaluatedAt time.Time          `json:"evaluated_at"`
}

// Service issues bills, evaluates settlements and records payments.
type Service struct {
	repo   billing.Repository
	policy Policy
	clock  Clock
	logger *zap.Logger
}

// NewService constructs a Service.
func NewService(repo billing.Repository, policy Policy, clock Clock, logger *zap.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("bill service: nil repository")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, policy: policy, clock: clock, logger: logger.Named("bills")}, nil
}

// Policy returns the active billing policy.
func (s *Service) Policy() Policy {
	return s.policy
}

// IssueUtility stores a utility bill computed from two readings.
func (s *Service) IssueUtility(ctx context.Context, in billing.UtilityBillInput) (*billing.BillRecord, error) {
	if in.GraceDays == 0 {
		in.GraceDays = s.policy.GraceDays
	}
	if in.IssueDate.IsZero() {
		in.IssueDate = s.clock.Now()
	}
	bill, err := billing.NewUtilityBill(in)
	if err != nil {
		return nil, err
	}
	return s.store(ctx, bill)
}

// IssueRent stores a rent bill.
func (s *Service) IssueRent(ctx context.Context, in billing.RentBillInput) (*billing.BillRecord, error) {
	if in.GraceDays == 0 {
		in.GraceDays = s.policy.GraceDays
	}
	if in.IssueDate.IsZero() {
		in.IssueDate = s.clock.Now()
	}
	bill, err := billing.NewRentBill(in)
	if err != nil {
		return nil, err
	}
	return s.store(ctx, bill)
}

func (s *Service) store(ctx context.Context, bill *billing.BillRecord) (*billing.BillRecord, error) {
	if err := s.repo.Create(ctx, bill); err != nil {
		return nil, err
	}
	s.logger.Info("bill issued",
		zap.String("bill_id", bill.ID),
		zap.String("bill_number", bill.BillNumber),
		zap.String("kind", string(bill.Kind)),
		zap.String("amount", bill.Amount.String()),
	)
	return bill, nil
}

// Get returns a bill.
func (s *Service) Get(ctx context.Context, id string) (*billing.BillRecord, error) {
	return s.repo.Get(ctx, id)
}

// List returns bills matching the filter.
func (s *Service) List(ctx context.Context, filter billing.ListFilter) ([]billing.BillRecord, error) {
	return s.repo.List(ctx, filter)
}

// History returns the prior bills of the same business and kind, newest first and
// capped at the policy limit. Expense bills carry no business and have no history.
func (s *Service) History(ctx context.Context, bill *billing.BillRecord) (billing.History, error) {
	if bill == nil {
		return nil, billing.ErrNilBill
	}
	if bill.BusinessID == "" {
		return billing.History{}, nil
	}
	history, err := s.repo.History(ctx, bill.BusinessID, bill.Kind, bill.PeriodDate, s.policy.HistoryLimit)
	if err != nil {
		return nil, err
	}
	return history.Truncate(s.policy.HistoryLimit), nil
}

// Statement evaluates a bill at the current time.
func (s *Service) Statement(ctx context.Context, id string) (*Statement, error) {
	bill, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Evaluate(ctx, bill, s.clock.Now())
}

// Evaluate computes the settlement of a bill at now.
func (s *Service) Evaluate(ctx context.Context, bill *billing.BillRecord, now time.Time) (*Statement, error) {
	history, err := s.History(ctx, bill)
	if err != nil {
		metrics.IncSettlement(metrics.ResultError)
		return nil, err
	}
	settlement, err := billing.ComputeSettlement(billing.SettlementInput{
		BaseAmount:    bill.Amount,
		DueDate:       bill.DueDate,
		Now:           now,
		Paid:          bill.IsPaid(),
		LateSurcharge: s.policy.SurchargeFor(bill.Kind),
		History:       history,
	})
	if err != nil {
		metrics.IncSettlement(metrics.ResultError)
		return nil, err
	}
	metrics.IncSettlement(metrics.ResultSuccess)
	return &Statement{Bill: *bill, History: history, Settlement: settlement, EvaluatedAt: now.UTC()}, nil
}

// UpdateStatus moves a pending bill to a terminal payment status.
func (s *Service) UpdateStatus(ctx context.Context, id string, status billing.PaymentStatus) (*billing.BillRecord, error) {
	if _, ok := billing.ParsePaymentStatus(string(status)); !ok {
		return nil, fmt.Errorf("%w: unknown payment status %q", billing.ErrInvalidInput, status)
	}
	bill, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if bill.Status == status {
		return bill, nil
	}
	if bill.Status.IsTerminal() || status == billing.StatusPending {
		return nil, fmt.Errorf("%w: %s to %s", billing.ErrStatusTransition, bill.Status, status)
	}
	now := s.clock.Now()
	if err := s.repo.UpdateStatus(ctx, id, status, now); err != nil {
		return nil, err
	}
	metrics.IncPaymentStatus(string(status))
	s.logger.Info("payment status changed",
		zap.String("bill_id", id),
		zap.String("from", string(bill.Status)),
		zap.String("to", string(status)),
	)
	bill.Status = status
	bill.UpdatedAt = now.UTC()
	return bill, nil
}
