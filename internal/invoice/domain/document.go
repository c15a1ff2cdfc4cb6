package invoice

import (
	"time"

	billing "plaza-billing/internal/billing/domain"
)

// CellKind tells a renderer how a cell was produced.
type CellKind string

const (
	CellText  CellKind = "text"
	CellMoney CellKind = "money"
	CellRate  CellKind = "rate"
	CellEmpty CellKind = "empty"
	// CellSpan is a merged empty block; Span columns wide and RowSpan rows tall.
	CellSpan CellKind = "span"
	// CellCovered marks grid positions occupied by a CellSpan from an earlier row.
	CellCovered CellKind = "covered"
)

// Align is the horizontal alignment of a cell.
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// Cell is one grid position, already formatted for display.
type Cell struct {
	Kind    CellKind `json:"kind"`
	Text    string   `json:"text,omitempty"`
	Span    int      `json:"span,omitempty"`
	RowSpan int      `json:"row_span,omitempty"`
	Align   Align    `json:"align,omitempty"`
	Header  bool     `json:"header,omitempty"`
}

// Width returns the number of columns the cell occupies.
func (c Cell) Width() int {
	if c.Span < 1 {
		return 1
	}
	return c.Span
}

// Row is an ordered set of cells whose widths add up to the section's column count.
type Row struct {
	Cells []Cell `json:"cells"`
}

// Width sums the widths of the row's cells.
func (r Row) Width() int {
	total := 0
	for _, c := range r.Cells {
		total += c.Width()
	}
	return total
}

// SectionName identifies a block of the invoice.
type SectionName string

const (
	SectionBillReference    SectionName = "bill_reference"
	SectionCustomerIdentity SectionName = "customer_identity"
	SectionReadingsHistory  SectionName = "readings_history"
	SectionRentHistory      SectionName = "rent_history"
	SectionSummary          SectionName = "calculation_summary"
	SectionFooter           SectionName = "footer"
)

// Section is a titled grid.
type Section struct {
	Name    SectionName `json:"name"`
	Title   string      `json:"title"`
	Columns int         `json:"columns"`
	// LeftColumns is set on the unified grid to mark where the history half starts.
	LeftColumns int   `json:"left_columns,omitempty"`
	Rows        []Row `json:"rows"`
}

// Document is a composed invoice ready for rendering.
type Document struct {
	ID          string       `json:"id"`
	BillID      string       `json:"bill_id"`
	BillNumber  string       `json:"bill_number"`
	Kind        billing.Kind `json:"kind"`
	Title       string       `json:"title"`
	Issuer      string       `json:"issuer"`
	LogoRef     string       `json:"logo_ref,omitempty"`
	Currency    string       `json:"currency"`
	GeneratedAt time.Time    `json:"generated_at"`
	Sections    []Section    `json:"sections"`
}

// Section returns the named section.
func (d *Document) Section(name SectionName) (Section, bool) {
	for _, s := range d.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}

func text(value string) Cell { return Cell{Kind: CellText, Text: value, Align: AlignLeft} }

func header(value string) Cell {
	return Cell{Kind: CellText, Text: value, Align: AlignCenter, Header: true}
}

func empty() Cell { return Cell{Kind: CellEmpty} }

func emptyCells(n int) []Cell {
	cells := make([]Cell, n)
	for i := range cells {
		cells[i] = empty()
	}
	return cells
}
