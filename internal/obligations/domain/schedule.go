package obligations

import (
	"fmt"
	"time"

	billing "plaza-billing/internal/billing/domain"
)

// Frequency is the recurrence interval of a config.
type Frequency string

const (
	FrequencyMonthly    Frequency = "monthly"
	FrequencyQuarterly  Frequency = "quarterly"
	FrequencySemiAnnual Frequency = "semi_annual"
	FrequencyAnnual     Frequency = "annual"
)

// Months returns the interval length in calendar months.
func (f Frequency) Months() (int, error) {
	switch f {
	case FrequencyMonthly:
		return 1, nil
	case FrequencyQuarterly:
		return 3, nil
	case FrequencySemiAnnual:
		return 6, nil
	case FrequencyAnnual:
		return 12, nil
	default:
		return 0, fmt.Errorf("%w: unknown frequency %q", billing.ErrInvalidConfiguration, f)
	}
}

// IsDue reports whether a new occurrence should be materialised at now.
func IsDue(cfg Config, now time.Time) (bool, error) {
	switch cfg.Status {
	case StatusActive:
	case StatusPaused:
		return false, nil
	default:
		return false, fmt.Errorf("%w: unknown status %q", billing.ErrInvalidConfiguration, cfg.Status)
	}
	if !cfg.AutoGenerate {
		return false, nil
	}
	return !cfg.NextDueDate.After(now), nil
}

// ReminderDue reports whether an active config has reached its reminder date.
func ReminderDue(cfg Config, now time.Time) bool {
	if cfg.Status != StatusActive || cfg.ReminderDate == nil {
		return false
	}
	return !cfg.ReminderDate.After(now)
}

// Advance returns the due date one interval after the current next-due date.
// Month-end overflow clamps to the last day of the target month, and the day is
// always taken from the anchor so that 31 Jan advances to 30 Apr and then 31 Jul.
func Advance(cfg Config) (time.Time, error) {
	return AdvanceN(cfg, 1)
}

// AdvanceN returns the due date n intervals after the current next-due date.
func AdvanceN(cfg Config, n int) (time.Time, error) {
	months, err := cfg.Frequency.Months()
	if err != nil {
		return time.Time{}, err
	}
	if cfg.NextDueDate.IsZero() {
		return time.Time{}, fmt.Errorf("%w: next due date missing", billing.ErrInvalidConfiguration)
	}
	anchor := cfg.AnchorDay
	if anchor <= 0 {
		anchor = cfg.NextDueDate.Day()
	}
	return AddMonthsClamped(cfg.NextDueDate, months*n, anchor), nil
}

// AddMonthsClamped adds calendar months to t, placing the result on anchorDay or on
// the last day of the target month when that month is shorter.
func AddMonthsClamped(t time.Time, months int, anchorDay int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, months, 0)
	day := anchorDay
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
