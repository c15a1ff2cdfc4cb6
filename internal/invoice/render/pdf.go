package render

import (
	"bytes"

	"github.com/jung-kurt/gofpdf"

	invoice "plaza-billing/internal/invoice/domain"
)

const (
	pageWidth = 190.0
	rowHeight = 6.0
)

// PDF lays out a composed invoice on A4 pages.
func PDF(doc *invoice.Document) ([]byte, error) {
	if doc == nil {
		return nil, ErrNilDocument
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(doc.Title+" "+doc.BillNumber, false)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(pageWidth, 8, doc.Issuer, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(pageWidth, 7, doc.Title, "", 1, "C", false, 0, "")
	pdf.Ln(3)

	for _, section := range doc.Sections {
		writeSection(pdf, section)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeSection(pdf *gofpdf.Fpdf, section invoice.Section) {
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(pageWidth, rowHeight, section.Title, "", 1, "L", false, 0, "")

	columns := section.Columns
	if columns < 1 {
		columns = 1
	}
	colWidth := pageWidth / float64(columns)
	left, _, _, _ := pdf.GetMargins()

	for _, row := range section.Rows {
		x, y := left, pdf.GetY()
		for _, cell := range row.Cells {
			width := colWidth * float64(cell.Width())
			switch cell.Kind {
			case invoice.CellCovered, invoice.CellSpan:
				// Span blocks stay blank and unbordered.
			default:
				style := ""
				if cell.Header {
					style = "B"
				}
				pdf.SetFont("Arial", style, 9)
				pdf.SetXY(x, y)
				pdf.CellFormat(width, rowHeight, cell.Text, "1", 0, alignOf(cell.Align), false, 0, "")
			}
			x += width
		}
		pdf.SetXY(left, y+rowHeight)
	}
	pdf.Ln(3)
}

func alignOf(a invoice.Align) string {
	switch a {
	case invoice.AlignRight:
		return "R"
	case invoice.AlignCenter:
		return "C"
	default:
		return "L"
	}
}
