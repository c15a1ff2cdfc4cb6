package obligations

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	billing "plaza-billing/internal/billing/domain"
)

// Status is the lifecycle state of an obligation config.
type Status string

const (
	StatusActive Status = "active"
	StatusPaused Status = "paused"
)

// Expense subtypes for KindExpense configs.
const (
	ExpensePropertyTax = "property_tax"
	ExpenseInsurance   = "insurance"
	ExpenseMaintenance = "maintenance"
	ExpenseOther       = "other"
)

// Config is a template for a periodic charge: rent, utility or a fixed expense.
// For utility configs BaseAmount is the rate per unit.
type Config struct {
	ID              string          `json:"id"`
	Kind            billing.Kind    `json:"kind"`
	ExpenseType     string          `json:"expense_type,omitempty"`
	BusinessID      string          `json:"business_id,omitempty"`
	MeterID         string          `json:"meter_id,omitempty"`
	Title           string          `json:"title"`
	Description     string          `json:"description,omitempty"`
	BaseAmount      decimal.Decimal `json:"base_amount"`
	Frequency       Frequency       `json:"frequency"`
	NextDueDate     time.Time       `json:"next_due_date"`
	AnchorDay       int             `json:"anchor_day"`
	ReminderDate    *time.Time      `json:"reminder_date,omitempty"`
	AutoGenerate    bool            `json:"auto_generate"`
	Status          Status          `json:"status"`
	GraceDays       int             `json:"grace_days"`
	OccurrenceCount int             `json:"occurrence_count"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewConfigInput carries operator-supplied fields for a new config.
type NewConfigInput struct {
	Kind         billing.Kind
	ExpenseType  string
	BusinessID   string
	MeterID      string
	Title        string
	Description  string
	BaseAmount   decimal.Decimal
	Frequency    Frequency
	NextDueDate  time.Time
	ReminderDate *time.Time
	AutoGenerate bool
	GraceDays    int
}

// NewConfig validates the input and builds an active config created at now.
func NewConfig(in NewConfigInput, now time.Time) (*Config, error) {
	if _, ok := billing.ParseKind(string(in.Kind)); !ok {
		return nil, fmt.Errorf("%w: unknown kind %q", billing.ErrInvalidConfiguration, in.Kind)
	}
	if _, err := in.Frequency.Months(); err != nil {
		return nil, err
	}
	switch in.Kind {
	case billing.KindRent, billing.KindUtility:
		if in.BusinessID == "" {
			return nil, fmt.Errorf("%w: business id required for %s", billing.ErrInvalidConfiguration, in.Kind)
		}
	case billing.KindExpense:
		if !validExpenseType(in.ExpenseType) {
			return nil, fmt.Errorf("%w: unknown expense type %q", billing.ErrInvalidConfiguration, in.ExpenseType)
		}
	}
	if in.Kind == billing.KindUtility && in.MeterID == "" {
		return nil, fmt.Errorf("%w: meter id required for utility", billing.ErrInvalidConfiguration)
	}
	if in.Title == "" {
		return nil, fmt.Errorf("%w: title required", billing.ErrInvalidConfiguration)
	}
	if in.BaseAmount.IsNegative() {
		return nil, fmt.Errorf("%w: negative base amount", billing.ErrInvalidConfiguration)
	}
	if in.NextDueDate.IsZero() {
		return nil, fmt.Errorf("%w: next due date required", billing.ErrInvalidConfiguration)
	}
	created := billing.DateOf(now)
	next := billing.DateOf(in.NextDueDate)
	if next.Before(created) {
		return nil, fmt.Errorf("%w: next due date %s before creation date %s", billing.ErrInvalidConfiguration, next.Format(time.DateOnly), created.Format(time.DateOnly))
	}
	if in.GraceDays < 0 {
		return nil, fmt.Errorf("%w: negative grace days", billing.ErrInvalidConfiguration)
	}
	grace := in.GraceDays
	if grace == 0 {
		grace = billing.DefaultGraceDays
	}
	var reminder *time.Time
	if in.ReminderDate != nil && !in.ReminderDate.IsZero() {
		r := billing.DateOf(*in.ReminderDate)
		reminder = &r
	}

	return &Config{
		ID:           uuid.NewString(),
		Kind:         in.Kind,
		ExpenseType:  in.ExpenseType,
		BusinessID:   in.BusinessID,
		MeterID:      in.MeterID,
		Title:        in.Title,
		Description:  in.Description,
		BaseAmount:   in.BaseAmount,
		Frequency:    in.Frequency,
		NextDueDate:  next,
		AnchorDay:    next.Day(),
		ReminderDate: reminder,
		AutoGenerate: in.AutoGenerate,
		Status:       StatusActive,
		GraceDays:    grace,
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}, nil
}

func validExpenseType(value string) bool {
	switch value {
	case ExpensePropertyTax, ExpenseInsurance, ExpenseMaintenance, ExpenseOther:
		return true
	default:
		return false
	}
}

// Pause deactivates the config; it is never deleted.
func (c *Config) Pause(now time.Time) {
	c.Status = StatusPaused
	c.UpdatedAt = now.UTC()
}

// Resume reactivates a paused config.
func (c *Config) Resume(now time.Time) {
	c.Status = StatusActive
	c.UpdatedAt = now.UTC()
}

// UpdateAmount changes the base amount for future occurrences.
func (c *Config) UpdateAmount(amount decimal.Decimal, now time.Time) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: negative base amount", billing.ErrInvalidConfiguration)
	}
	c.BaseAmount = amount
	c.UpdatedAt = now.UTC()
	return nil
}

// ChangeFrequency is only allowed before the first occurrence exists.
func (c *Config) ChangeFrequency(freq Frequency, now time.Time) error {
	if _, err := freq.Months(); err != nil {
		return err
	}
	if c.OccurrenceCount > 0 && freq != c.Frequency {
		return fmt.Errorf("%w: frequency is fixed once occurrences exist", billing.ErrInvalidConfiguration)
	}
	c.Frequency = freq
	c.UpdatedAt = now.UTC()
	return nil
}

// ApplyAdvance moves the config to its next occurrence after one was materialised.
// The reminder date keeps its offset from the due date.
func (c *Config) ApplyAdvance(next time.Time, now time.Time) {
	if c.ReminderDate != nil {
		lead := c.NextDueDate.Sub(*c.ReminderDate)
		r := next.Add(-lead)
		c.ReminderDate = &r
	}
	c.NextDueDate = next
	c.OccurrenceCount++
	c.UpdatedAt = now.UTC()
}
