package invoice

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// NotAvailable replaces metadata that could not be resolved.
const NotAvailable = "N/A"

const (
	dateLayout  = "02 Jan 2006"
	monthLayout = "January 2006"
)

// FormatMoney rounds to whole currency units.
func FormatMoney(d decimal.Decimal) string {
	return d.Round(0).StringFixed(0)
}

// FormatRate renders a rate per unit with two decimals.
func FormatRate(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FormatQuantity renders readings and units without trailing zeros.
func FormatQuantity(d decimal.Decimal) string {
	return d.String()
}

// FormatDate renders DD Mon YYYY; a zero time renders as N/A.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return NotAvailable
	}
	return t.Format(dateLayout)
}

// FormatMonth renders an upper-case month header such as JANUARY 2024.
func FormatMonth(t time.Time) string {
	if t.IsZero() {
		return NotAvailable
	}
	return strings.ToUpper(t.Format(monthLayout))
}

// SanitizeID replaces every character outside [A-Za-z0-9] with an underscore.
func SanitizeID(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func orNA(value string) string {
	if strings.TrimSpace(value) == "" {
		return NotAvailable
	}
	return value
}
