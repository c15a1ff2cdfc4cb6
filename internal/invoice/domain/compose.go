package invoice

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	billing "plaza-billing/internal/billing/domain"
)

// DefaultContactText is printed when the plaza has no contact details.
const DefaultContactText = "Please pay at the management office"

const defaultIssuer = "Plaza Management"

// Identity is the resolved business shown on the invoice. Empty fields print as N/A.
type Identity struct {
	Name       string
	UnitCode   string
	FloorLabel string
	Category   string
}

// Branding is optional plaza branding and contact text.
type Branding struct {
	DisplayName string
	LogoRef     string
	ContactText string
}

// Input is everything the composer needs; it performs no lookups.
type Input struct {
	Bill       billing.BillRecord
	Settlement billing.Settlement
	History    billing.History
	Identity   Identity
	Branding   Branding
	// Footer overrides the charge categories listed for the bill kind.
	Footer   []string
	Currency string
	Now      time.Time
}

// Compose lays out an invoice. It only fails when the bill itself is unusable;
// missing metadata degrades to placeholders.
func Compose(in Input) (*Document, error) {
	bill := in.Bill
	if strings.TrimSpace(bill.BillNumber) == "" {
		return nil, fmt.Errorf("%w: bill number required", billing.ErrInvalidInput)
	}
	if _, ok := billing.ParseKind(string(bill.Kind)); !ok {
		return nil, fmt.Errorf("%w: unknown bill kind %q", billing.ErrInvalidInput, bill.Kind)
	}
	history := in.History.Truncate(billing.HistoryLimit)

	issuer := in.Branding.DisplayName
	if issuer == "" {
		issuer = defaultIssuer
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	doc := &Document{
		ID:          SanitizeID(bill.BillNumber),
		BillID:      bill.ID,
		BillNumber:  bill.BillNumber,
		Kind:        bill.Kind,
		Title:       titleFor(bill.Kind),
		Issuer:      issuer,
		LogoRef:     in.Branding.LogoRef,
		Currency:    in.Currency,
		GeneratedAt: now.UTC(),
	}
	doc.Sections = []Section{
		billReference(bill),
		customerIdentity(bill, in.Identity),
		historyGrid(bill, history),
		summary(bill, in.Settlement, in.Currency),
		footer(bill.Kind, in.Footer, in.Branding.ContactText),
	}
	return doc, nil
}

func titleFor(kind billing.Kind) string {
	switch kind {
	case billing.KindUtility:
		return "Electricity Bill"
	case billing.KindRent:
		return "Rent Invoice"
	default:
		return "Expense Voucher"
	}
}

func billReference(bill billing.BillRecord) Section {
	periodLabel := "Period Date"
	if bill.Kind == billing.KindUtility {
		periodLabel = "Reading Date"
	}
	return Section{
		Name:    SectionBillReference,
		Title:   "Bill Reference",
		Columns: 5,
		Rows: []Row{
			{Cells: []Cell{header("Reference No"), header("Billing Month"), header(periodLabel), header("Issue Date"), header("Due Date")}},
			{Cells: []Cell{
				text(bill.BillNumber),
				text(FormatMonth(bill.PeriodDate)),
				text(FormatDate(bill.PeriodDate)),
				text(FormatDate(bill.IssueDate)),
				text(FormatDate(bill.DueDate)),
			}},
		},
	}
}

func customerIdentity(bill billing.BillRecord, id Identity) Section {
	numberLabel, number := "Shop No", id.UnitCode
	if bill.Kind == billing.KindUtility {
		numberLabel, number = "Meter No", bill.MeterID
	}
	return Section{
		Name:    SectionCustomerIdentity,
		Title:   "Customer",
		Columns: 5,
		Rows: []Row{
			{Cells: []Cell{header("Unit Code"), header("Floor"), header(numberLabel), header("Category"), header("Name")}},
			{Cells: []Cell{
				text(orNA(id.UnitCode)),
				text(orNA(id.FloorLabel)),
				text(orNA(number)),
				text(orNA(id.Category)),
				text(orNA(id.Name)),
			}},
		},
	}
}

// historyGrid builds the unified grid: the current line on the left of the first data
// row, one history entry per row on the right, and a merged empty block under the
// current line for the remaining rows.
func historyGrid(bill billing.BillRecord, history billing.History) Section {
	var (
		name         SectionName
		title        string
		leftHeaders  []string
		rightHeaders []string
		current      []Cell
		historyRow   func(billing.HistoryEntry) []Cell
	)
	if bill.Kind == billing.KindUtility {
		name, title = SectionReadingsHistory, "Reading Information"
		leftHeaders = []string{"Previous", "Present", "MF", "Units", "Status"}
		rightHeaders = []string{"Month", "Units", "Bill", "Payment"}
		current = []Cell{
			quantity(bill.PreviousReading),
			quantity(bill.CurrentReading),
			quantity(decimal.NewFromInt(1)),
			quantity(bill.Units),
			text(statusLabel(bill.Status)),
		}
		historyRow = func(e billing.HistoryEntry) []Cell {
			return []Cell{text(FormatMonth(e.PeriodDate)), quantity(e.Units), nullMoney(e.Amount), money(e.PaidAmount())}
		}
	} else {
		name, title = SectionRentHistory, "Rent Information"
		amountLabel := "Rent"
		if bill.Kind == billing.KindExpense {
			amountLabel = "Amount"
		}
		leftHeaders = []string{"Month", amountLabel, "Status"}
		rightHeaders = []string{"Month", "Bill", "Payment"}
		current = []Cell{text(FormatMonth(bill.PeriodDate)), money(bill.Amount), text(statusLabel(bill.Status))}
		historyRow = func(e billing.HistoryEntry) []Cell {
			return []Cell{text(FormatMonth(e.PeriodDate)), nullMoney(e.Amount), money(e.PaidAmount())}
		}
	}

	left, right := len(leftHeaders), len(rightHeaders)
	head := make([]Cell, 0, left+right)
	for _, h := range leftHeaders {
		head = append(head, header(h))
	}
	for _, h := range rightHeaders {
		head = append(head, header(h))
	}
	rows := []Row{{Cells: head}}

	dataRows := len(history)
	if dataRows == 0 {
		dataRows = 1
	}
	for i := 0; i < dataRows; i++ {
		var cells []Cell
		switch i {
		case 0:
			cells = append(cells, current...)
		case 1:
			cells = append(cells, Cell{Kind: CellSpan, Span: left, RowSpan: dataRows - 1})
		default:
			cells = append(cells, Cell{Kind: CellCovered, Span: left})
		}
		if i < len(history) {
			cells = append(cells, historyRow(history[i])...)
		} else {
			cells = append(cells, emptyCells(right)...)
		}
		rows = append(rows, Row{Cells: cells})
	}

	return Section{Name: name, Title: title, Columns: left + right, LeftColumns: left, Rows: rows}
}

func summary(bill billing.BillRecord, s billing.Settlement, currency string) Section {
	var left [][2]Cell
	if bill.Kind == billing.KindUtility {
		left = [][2]Cell{
			{text("Total Units"), quantity(bill.Units)},
			{text("Rate Per Unit"), rate(bill.RatePerUnit)},
			{text("Total Charges"), money(bill.Amount)},
			{text("Advance Balance"), money(decimal.Zero)},
			{text("Units x Rate"), text(FormatQuantity(bill.Units) + " x " + FormatRate(bill.RatePerUnit))},
		}
	} else {
		base := bill.MonthlyRent
		label := "Monthly Rent"
		if bill.Kind == billing.KindExpense {
			base, label = bill.Amount, "Expense Amount"
		}
		left = [][2]Cell{
			{text(label), money(base)},
			{text("Total Rent"), money(bill.Amount)},
			{text("Advance Balance"), money(decimal.Zero)},
			{empty(), empty()},
			{empty(), empty()},
		}
		if bill.Kind == billing.KindExpense {
			left[1][0] = text("Total Amount")
		}
	}
	right := [][2]Cell{
		{text("Current Bill"), money(s.BaseAmount)},
		{text("Arrears"), money(s.Arrears)},
		{text("Payable Within Due Date"), money(s.PayWithinDueDate)},
		{text("Late Surcharge"), money(s.LateSurcharge)},
		{text("Payable After Due Date"), money(s.PayAfterDueDate)},
	}

	title := "Calculation Summary"
	if currency != "" {
		title += " (" + currency + ")"
	}
	rows := make([]Row, 0, len(right))
	for i := range right {
		rows = append(rows, Row{Cells: []Cell{left[i][0], left[i][1], right[i][0], right[i][1]}})
	}
	return Section{Name: SectionSummary, Title: title, Columns: 4, LeftColumns: 2, Rows: rows}
}

// FooterCategories lists the charge categories included in a bill kind.
func FooterCategories(kind billing.Kind) []string {
	switch kind {
	case billing.KindUtility:
		return []string{"Unit price", "Consumption cost", "Line charges", "Taxes", "Surcharge", "Other charges"}
	case billing.KindRent:
		return []string{"Monthly rent", "Lease", "Service charges", "Late surcharge"}
	default:
		return []string{"Expense amount", "Taxes", "Late surcharge"}
	}
}

func footer(kind billing.Kind, categories []string, contact string) Section {
	if len(categories) == 0 {
		categories = FooterCategories(kind)
	}
	if strings.TrimSpace(contact) == "" {
		contact = DefaultContactText
	}
	rows := []Row{{Cells: []Cell{header("Charges Included")}}}
	for _, c := range categories {
		rows = append(rows, Row{Cells: []Cell{text(c)}})
	}
	rows = append(rows, Row{Cells: []Cell{text(contact)}})
	return Section{Name: SectionFooter, Title: "Notes", Columns: 1, Rows: rows}
}

func statusLabel(status billing.PaymentStatus) string {
	if status == "" {
		return NotAvailable
	}
	return strings.ToUpper(string(status))
}

func money(d decimal.Decimal) Cell {
	return Cell{Kind: CellMoney, Text: FormatMoney(d), Align: AlignRight}
}

func nullMoney(d decimal.NullDecimal) Cell {
	if !d.Valid {
		return Cell{Kind: CellText, Text: NotAvailable, Align: AlignRight}
	}
	return money(d.Decimal)
}

func rate(d decimal.Decimal) Cell {
	return Cell{Kind: CellRate, Text: FormatRate(d), Align: AlignRight}
}

func quantity(d decimal.Decimal) Cell {
	return Cell{Kind: CellText, Text: FormatQuantity(d), Align: AlignRight}
}
