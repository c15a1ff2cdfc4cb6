package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind identifies what a bill charges for.
type Kind string

const (
	KindRent    Kind = "rent"
	KindUtility Kind = "utility"
	KindExpense Kind = "expense"
)

// ParseKind validates a kind string.
func ParseKind(value string) (Kind, bool) {
	switch Kind(value) {
	case KindRent, KindUtility, KindExpense:
		return Kind(value), true
	default:
		return "", false
	}
}

// PaymentStatus is the settlement state of a bill.
type PaymentStatus string

const (
	StatusPending PaymentStatus = "pending"
	StatusPaid    PaymentStatus = "paid"
	StatusWaived  PaymentStatus = "waived"
	StatusVoid    PaymentStatus = "void"
)

// ParsePaymentStatus validates a payment status string.
func ParsePaymentStatus(value string) (PaymentStatus, bool) {
	switch PaymentStatus(value) {
	case StatusPending, StatusPaid, StatusWaived, StatusVoid:
		return PaymentStatus(value), true
	default:
		return "", false
	}
}

// IsTerminal reports whether no further status change is allowed.
func (s PaymentStatus) IsTerminal() bool {
	return s != StatusPending
}

// DefaultGraceDays is the gap between the period anchor and the due date.
const DefaultGraceDays = 15

// BillRecord is one materialised billing occurrence.
type BillRecord struct {
	ID           string          `json:"id"`
	BusinessID   string          `json:"business_id,omitempty"`
	ObligationID string          `json:"obligation_id,omitempty"`
	Kind         Kind            `json:"kind"`
	ExpenseType  string          `json:"expense_type,omitempty"`
	BillNumber   string          `json:"bill_number"`
	PeriodDate   time.Time       `json:"period_date"`
	IssueDate    time.Time       `json:"issue_date"`
	DueDate      time.Time       `json:"due_date"`
	Status       PaymentStatus   `json:"status"`
	Amount       decimal.Decimal `json:"amount"`

	MeterID         string          `json:"meter_id,omitempty"`
	PreviousReading decimal.Decimal `json:"previous_reading"`
	CurrentReading  decimal.Decimal `json:"current_reading"`
	Units           decimal.Decimal `json:"units"`
	RatePerUnit     decimal.Decimal `json:"rate_per_unit"`

	MonthlyRent decimal.Decimal `json:"monthly_rent"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsPaid reports whether the bill has been settled.
func (b *BillRecord) IsPaid() bool {
	return b != nil && b.Status == StatusPaid
}

// UtilityBillInput carries the raw meter data for a utility bill.
type UtilityBillInput struct {
	BusinessID      string
	ObligationID    string
	MeterID         string
	ReadingDate     time.Time
	IssueDate       time.Time
	PreviousReading decimal.Decimal
	CurrentReading  decimal.Decimal
	RatePerUnit     decimal.Decimal
	GraceDays       int
}

// NewUtilityBill derives units and amount from two readings and a rate.
func NewUtilityBill(in UtilityBillInput) (*BillRecord, error) {
	if in.BusinessID == "" {
		return nil, fmt.Errorf("%w: business id required", ErrInvalidInput)
	}
	if in.ReadingDate.IsZero() {
		return nil, fmt.Errorf("%w: reading date required", ErrInvalidInput)
	}
	if in.PreviousReading.IsNegative() || in.CurrentReading.IsNegative() {
		return nil, fmt.Errorf("%w: negative reading", ErrInvalidInput)
	}
	if in.RatePerUnit.IsNegative() {
		return nil, fmt.Errorf("%w: negative rate per unit", ErrInvalidInput)
	}
	units := in.CurrentReading.Sub(in.PreviousReading)
	if units.IsNegative() {
		return nil, fmt.Errorf("%w: current reading %s below previous reading %s", ErrInvalidInput, in.CurrentReading, in.PreviousReading)
	}

	bill := newBill(KindUtility, in.BusinessID, in.ObligationID, in.ReadingDate, in.IssueDate, in.GraceDays)
	bill.MeterID = in.MeterID
	bill.PreviousReading = in.PreviousReading
	bill.CurrentReading = in.CurrentReading
	bill.Units = units
	bill.RatePerUnit = in.RatePerUnit
	bill.Amount = units.Mul(in.RatePerUnit)
	return bill, nil
}

// RentBillInput carries the data for a flat-rate rent bill.
type RentBillInput struct {
	BusinessID   string
	ObligationID string
	RentMonth    time.Time
	IssueDate    time.Time
	MonthlyRent  decimal.Decimal
	Override     decimal.NullDecimal
	GraceDays    int
}

// NewRentBill builds a rent bill; the amount is the monthly rent unless overridden.
func NewRentBill(in RentBillInput) (*BillRecord, error) {
	if in.BusinessID == "" {
		return nil, fmt.Errorf("%w: business id required", ErrInvalidInput)
	}
	if in.RentMonth.IsZero() {
		return nil, fmt.Errorf("%w: rent month required", ErrInvalidInput)
	}
	if in.MonthlyRent.IsNegative() {
		return nil, fmt.Errorf("%w: negative monthly rent", ErrInvalidInput)
	}
	amount := in.MonthlyRent
	if in.Override.Valid {
		if in.Override.Decimal.IsNegative() {
			return nil, fmt.Errorf("%w: negative rent override", ErrInvalidInput)
		}
		amount = in.Override.Decimal
	}

	bill := newBill(KindRent, in.BusinessID, in.ObligationID, in.RentMonth, in.IssueDate, in.GraceDays)
	bill.MonthlyRent = in.MonthlyRent
	bill.Amount = amount
	return bill, nil
}

// ExpenseBillInput carries a fixed-expense occurrence.
type ExpenseBillInput struct {
	ObligationID string
	ExpenseType  string
	PeriodDate   time.Time
	IssueDate    time.Time
	Amount       decimal.Decimal
	GraceDays    int
}

// NewExpenseBill builds a fixed-expense occurrence that is not tied to a business.
func NewExpenseBill(in ExpenseBillInput) (*BillRecord, error) {
	if in.PeriodDate.IsZero() {
		return nil, fmt.Errorf("%w: period date required", ErrInvalidInput)
	}
	if in.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: negative expense amount", ErrInvalidInput)
	}
	bill := newBill(KindExpense, "", in.ObligationID, in.PeriodDate, in.IssueDate, in.GraceDays)
	bill.ExpenseType = in.ExpenseType
	bill.Amount = in.Amount
	return bill, nil
}

// newBill treats a non-positive grace period as DefaultGraceDays.
func newBill(kind Kind, businessID, obligationID string, period, issue time.Time, graceDays int) *BillRecord {
	if graceDays <= 0 {
		graceDays = DefaultGraceDays
	}
	period = DateOf(period)
	now := time.Now().UTC()
	if issue.IsZero() {
		issue = now
	}
	id := uuid.New()
	return &BillRecord{
		ID:           id.String(),
		BusinessID:   businessID,
		ObligationID: obligationID,
		Kind:         kind,
		BillNumber:   BuildBillNumber(kind, period, id),
		PeriodDate:   period,
		IssueDate:    DateOf(issue),
		DueDate:      period.AddDate(0, 0, graceDays),
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// BuildBillNumber renders a human-legible bill number, e.g. UTL-202401-7F3A9C1E.
func BuildBillNumber(kind Kind, period time.Time, id uuid.UUID) string {
	prefix := "EXP"
	switch kind {
	case KindRent:
		prefix = "RNT"
	case KindUtility:
		prefix = "UTL"
	}
	suffix := strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
	return prefix + "-" + period.Format("200601") + "-" + suffix
}

// DateOf truncates a timestamp to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
