package render

import (
	"bytes"
	"errors"

	"github.com/xuri/excelize/v2"

	invoice "plaza-billing/internal/invoice/domain"
)

// ErrNilDocument is returned when there is nothing to render.
var ErrNilDocument = errors.New("render: nil document")

const sheetName = "Invoice"

type xlsxStyles struct {
	header int
	right  int
	title  int
}

// XLSX writes a composed invoice to a single worksheet. Each section becomes a block
// of rows; spans become merged ranges.
func XLSX(doc *invoice.Document) ([]byte, error) {
	if doc == nil {
		return nil, ErrNilDocument
	}
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}
	styles, err := newStyles(f)
	if err != nil {
		return nil, err
	}

	row := 1
	if err := setCell(f, 1, row, doc.Issuer, styles.title); err != nil {
		return nil, err
	}
	row++
	if err := setCell(f, 1, row, doc.Title, styles.title); err != nil {
		return nil, err
	}
	row += 2

	for _, section := range doc.Sections {
		if err := setCell(f, 1, row, section.Title, styles.title); err != nil {
			return nil, err
		}
		row++
		for _, r := range section.Rows {
			col := 1
			for _, cell := range r.Cells {
				if err := writeCell(f, styles, col, row, cell); err != nil {
					return nil, err
				}
				col += cell.Width()
			}
			row++
		}
		row++
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func newStyles(f *excelize.File) (xlsxStyles, error) {
	var s xlsxStyles
	var err error
	if s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	}); err != nil {
		return s, err
	}
	if s.right, err = f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "right"},
	}); err != nil {
		return s, err
	}
	if s.title, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 12}}); err != nil {
		return s, err
	}
	return s, nil
}

func writeCell(f *excelize.File, styles xlsxStyles, col, row int, cell invoice.Cell) error {
	switch cell.Kind {
	case invoice.CellCovered:
		return nil
	case invoice.CellSpan:
		rows := cell.RowSpan
		if rows < 1 {
			rows = 1
		}
		return merge(f, col, row, col+cell.Width()-1, row+rows-1)
	}

	style := 0
	switch {
	case cell.Header:
		style = styles.header
	case cell.Align == invoice.AlignRight:
		style = styles.right
	}
	if err := setCell(f, col, row, cell.Text, style); err != nil {
		return err
	}
	if cell.Width() > 1 {
		return merge(f, col, row, col+cell.Width()-1, row)
	}
	return nil
}

func setCell(f *excelize.File, col, row int, value string, style int) error {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(sheetName, name, value); err != nil {
		return err
	}
	if style == 0 {
		return nil
	}
	return f.SetCellStyle(sheetName, name, name, style)
}

func merge(f *excelize.File, col1, row1, col2, row2 int) error {
	top, err := excelize.CoordinatesToCellName(col1, row1)
	if err != nil {
		return err
	}
	bottom, err := excelize.CoordinatesToCellName(col2, row2)
	if err != nil {
		return err
	}
	return f.MergeCell(sheetName, top, bottom)
}
