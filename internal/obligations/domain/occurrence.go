package obligations

import (
	"fmt"
	"time"

	billing "plaza-billing/internal/billing/domain"
)

// BuildOccurrence materialises the bill for the config's current next-due date.
// Utility configs need readings; the other kinds ignore them.
func BuildOccurrence(cfg Config, readings *MeterReadings, issuedAt time.Time) (*billing.BillRecord, error) {
	switch cfg.Kind {
	case billing.KindRent:
		return billing.NewRentBill(billing.RentBillInput{
			BusinessID:   cfg.BusinessID,
			ObligationID: cfg.ID,
			RentMonth:    cfg.NextDueDate,
			IssueDate:    issuedAt,
			MonthlyRent:  cfg.BaseAmount,
			GraceDays:    cfg.GraceDays,
		})
	case billing.KindUtility:
		if readings == nil {
			return nil, fmt.Errorf("%w: %w", billing.ErrInvalidInput, ErrNoReadings)
		}
		periodStart, err := AdvanceN(cfg, -1)
		if err != nil {
			return nil, err
		}
		if !readings.CurrentDate.After(periodStart) {
			return nil, fmt.Errorf("%w: %w: latest reading %s predates period start %s", billing.ErrInvalidInput, ErrNoReadings,
				readings.CurrentDate.Format(time.DateOnly), periodStart.Format(time.DateOnly))
		}
		return billing.NewUtilityBill(billing.UtilityBillInput{
			BusinessID:      cfg.BusinessID,
			ObligationID:    cfg.ID,
			MeterID:         cfg.MeterID,
			ReadingDate:     readings.CurrentDate,
			IssueDate:       issuedAt,
			PreviousReading: readings.Previous,
			CurrentReading:  readings.Current,
			RatePerUnit:     cfg.BaseAmount,
			GraceDays:       cfg.GraceDays,
		})
	case billing.KindExpense:
		return billing.NewExpenseBill(billing.ExpenseBillInput{
			ObligationID: cfg.ID,
			ExpenseType:  cfg.ExpenseType,
			PeriodDate:   cfg.NextDueDate,
			IssueDate:    issuedAt,
			Amount:       cfg.BaseAmount,
			GraceDays:    cfg.GraceDays,
		})
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", billing.ErrInvalidConfiguration, cfg.Kind)
	}
}
