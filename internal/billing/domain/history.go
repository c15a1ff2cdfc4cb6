package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// HistoryLimit caps how many prior bills feed arrears and the invoice history.
const HistoryLimit = 12

// HistoryEntry is one prior bill as seen by the calculation engine and the composer.
type HistoryEntry struct {
	BillID     string              `json:"bill_id"`
	BillNumber string              `json:"bill_number"`
	PeriodDate time.Time           `json:"period_date"`
	Units      decimal.Decimal     `json:"units"`
	Amount     decimal.NullDecimal `json:"amount"`
	Status     PaymentStatus       `json:"status"`
}

// PaidAmount returns the amount when the entry is paid and zero otherwise.
func (e HistoryEntry) PaidAmount() decimal.Decimal {
	if e.Status != StatusPaid || !e.Amount.Valid {
		return decimal.Zero
	}
	return e.Amount.Decimal
}

// History is an ordered, newest-first sequence of prior bills.
type History []HistoryEntry

// HistoryEntryFromBill projects a stored bill into a history entry.
func HistoryEntryFromBill(b BillRecord) HistoryEntry {
	return HistoryEntry{
		BillID:     b.ID,
		BillNumber: b.BillNumber,
		PeriodDate: b.PeriodDate,
		Units:      b.Units,
		Amount:     decimal.NewNullDecimal(b.Amount),
		Status:     b.Status,
	}
}

// Truncate keeps at most limit entries; older entries are dropped.
func (h History) Truncate(limit int) History {
	if limit < 0 {
		limit = 0
	}
	if len(h) <= limit {
		return h
	}
	return h[:limit]
}
