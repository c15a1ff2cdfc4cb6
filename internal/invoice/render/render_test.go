package render

import (
	"bytes"
	"testing"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	billing "plaza-billing/internal/billing/domain"
	invoice "plaza-billing/internal/invoice/domain"
)

func composed(t *testing.T, historyLen int) *invoice.Document {
	t.Helper()
	bill, err := billing.NewUtilityBill(billing.UtilityBillInput{
		BusinessID:      "biz-1",
		MeterID:         "MTR-9",
		ReadingDate:     time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		PreviousReading: decimal.NewFromInt(120),
		CurrentReading:  decimal.NewFromInt(175),
		RatePerUnit:     decimal.RequireFromString("10.5"),
	})
	require.NoError(t, err)
	var history billing.History
	for i := 0; i < historyLen; i++ {
		history = append(history, billing.HistoryEntry{
			PeriodDate: time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC).AddDate(0, -i, 0),
			Units:      decimal.NewFromInt(40),
			Amount:     decimal.NewNullDecimal(decimal.NewFromInt(420)),
			Status:     billing.StatusPaid,
		})
	}
	doc, err := invoice.Compose(invoice.Input{
		Bill:       *bill,
		Settlement: billing.Settlement{BaseAmount: bill.Amount, PayWithinDueDate: bill.Amount, PayAfterDueDate: bill.Amount},
		History:    history,
		Identity:   invoice.Identity{Name: "Blue Tea", UnitCode: "S-12"},
		Currency:   "Rs",
	})
	require.NoError(t, err)
	return doc
}

func TestPDFRendersDocument(t *testing.T) {
	out, err := PDF(composed(t, 4))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = PDF(nil)
	require.ErrorIs(t, err, ErrNilDocument)
}

func strokedRects(t *testing.T, section invoice.Section) int {
	t.Helper()
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(false)
	pdf.AddPage()
	writeSection(pdf, section)
	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return bytes.Count(buf.Bytes(), []byte(" re S"))
}

func TestPDFSpanBlockIsBorderless(t *testing.T) {
	spanOnly := invoice.Section{
		Title:   "History",
		Columns: 4,
		Rows: []invoice.Row{
			{Cells: []invoice.Cell{{Kind: invoice.CellSpan, Span: 4, RowSpan: 2}}},
			{Cells: []invoice.Cell{{Kind: invoice.CellCovered, Span: 4}}},
		},
	}
	assert.Zero(t, strokedRects(t, spanOnly))

	withText := spanOnly
	withText.Rows = append([]invoice.Row{{Cells: []invoice.Cell{{Kind: invoice.CellText, Text: "Units", Span: 4}}}}, spanOnly.Rows...)
	assert.Equal(t, 1, strokedRects(t, withText))
}

func TestXLSXMergesSpanBlock(t *testing.T) {
	doc := composed(t, 4)
	out, err := XLSX(doc)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	title, err := f.GetCellValue(sheetName, "A2")
	require.NoError(t, err)
	assert.Equal(t, doc.Title, title)

	merged, err := f.GetMergeCells(sheetName)
	require.NoError(t, err)
	require.Len(t, merged, 1)
	// Issuer and title, a gap, two sections of title plus two rows and a gap each,
	// then the grid title and header leave the current line on row 14.
	assert.Equal(t, "A15", merged[0].GetStartAxis())
	assert.Equal(t, "E17", merged[0].GetEndAxis())

	current, err := f.GetCellValue(sheetName, "D14")
	require.NoError(t, err)
	assert.Equal(t, "55", current)
	history, err := f.GetCellValue(sheetName, "F17")
	require.NoError(t, err)
	assert.Equal(t, "SEPTEMBER 2023", history)
}

func TestXLSXWithoutHistoryHasNoMerges(t *testing.T) {
	out, err := XLSX(composed(t, 0))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()
	merged, err := f.GetMergeCells(sheetName)
	require.NoError(t, err)
	assert.Empty(t, merged)
}
