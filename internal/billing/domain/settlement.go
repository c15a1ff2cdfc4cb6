package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SettlementInput is everything the engine needs to price one bill.
type SettlementInput struct {
	BaseAmount    decimal.Decimal
	DueDate       time.Time
	Now           time.Time
	Paid          bool
	LateSurcharge decimal.Decimal
	History       History
}

// Settlement holds the two totals a payer may owe depending on payment timing.
// Values are exact; rounding happens only when a document is composed.
type Settlement struct {
	BaseAmount       decimal.Decimal `json:"base_amount"`
	Arrears          decimal.Decimal `json:"arrears"`
	LateSurcharge    decimal.Decimal `json:"late_surcharge"`
	PayWithinDueDate decimal.Decimal `json:"pay_within_due_date"`
	PayAfterDueDate  decimal.Decimal `json:"pay_after_due_date"`
}

// ComputeSettlement derives arrears, surcharge and both totals.
func ComputeSettlement(in SettlementInput) (Settlement, error) {
	if in.BaseAmount.IsNegative() {
		return Settlement{}, fmt.Errorf("%w: negative base amount", ErrInvalidInput)
	}
	if in.DueDate.IsZero() {
		return Settlement{}, fmt.Errorf("%w: due date required", ErrInvalidInput)
	}
	if in.LateSurcharge.IsNegative() {
		return Settlement{}, fmt.Errorf("%w: negative late surcharge", ErrInvalidInput)
	}

	arrears, err := Arrears(in.History)
	if err != nil {
		return Settlement{}, err
	}

	// The due date is payable through its whole calendar day.
	surcharge := decimal.Zero
	if DateOf(in.Now).After(DateOf(in.DueDate)) && !in.Paid {
		surcharge = in.LateSurcharge
	}

	within := in.BaseAmount.Add(arrears)
	return Settlement{
		BaseAmount:       in.BaseAmount,
		Arrears:          arrears,
		LateSurcharge:    surcharge,
		PayWithinDueDate: within,
		PayAfterDueDate:  within.Add(surcharge),
	}, nil
}

// Arrears sums every history entry that is not paid. There is no cap or decay.
func Arrears(history History) (decimal.Decimal, error) {
	total := decimal.Zero
	for i, entry := range history {
		if !entry.Amount.Valid {
			return decimal.Zero, fmt.Errorf("%w: history entry %d has no amount", ErrInvalidInput, i)
		}
		if entry.Status == StatusPaid {
			continue
		}
		total = total.Add(entry.Amount.Decimal)
	}
	return total, nil
}
