package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

var errNoSheets = errors.New("workbook has no sheets")

// readXLSX reads the first sheet of an OOXML workbook. Cells are read raw so
// date cells arrive as serial numbers and are converted during normalization.
func readXLSX(raw []byte) (Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return Table{}, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, errNoSheets
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return Table{}, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return tableFromRows(rows, FormatXLSX), nil
}

// BIFF8 sheets hold at most 256 columns.
const maxXLSColumns = 256

// readXLS reads the first sheet of a legacy BIFF workbook. Like readXLSX it
// reads cells raw: number formats are cleared so date cells arrive as serial
// numbers instead of the library's lossy "2006.01" rendering.
func readXLS(raw []byte) (t Table, err error) {
	// extrame/xls panics on some malformed workbooks.
	defer func() {
		if r := recover(); r != nil {
			t, err = Table{}, fmt.Errorf("open xls: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(raw), "utf-8")
	if err != nil {
		return Table{}, fmt.Errorf("open xls: %w", err)
	}
	for _, x := range wb.Xfs {
		switch xf := x.(type) {
		case *xls.Xf8:
			xf.Format = 0
		case *xls.Xf5:
			xf.Format = 0
		}
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return Table{}, errNoSheets
	}

	rows := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		rows = append(rows, xlsRowCells(sheet, i))
	}
	return tableFromRows(rows, FormatXLS), nil
}

// xlsRowCells returns the cells of row i, or nil when the sheet has no such
// row. Rows without a ROW record report no last column, so every column is
// scanned and trailing blanks dropped.
func xlsRowCells(sheet *xls.WorkSheet, i int) (cells []string) {
	// WorkSheet.Row dereferences the missing row.
	defer func() {
		if recover() != nil {
			cells = nil
		}
	}()

	row := sheet.Row(i)
	width := row.LastCol()
	if width <= 0 {
		width = maxXLSColumns
	}
	cells = make([]string, width)
	for c := range cells {
		cells[c] = row.Col(c)
	}
	for len(cells) > 0 && cells[len(cells)-1] == "" {
		cells = cells[:len(cells)-1]
	}
	return cells
}

// tableFromRows takes the first non-blank row as header. The header is
// widened when a data row is longer; blank rows are skipped.
func tableFromRows(rows [][]string, format Format) Table {
	start := 0
	for start < len(rows) && blankRow(rows[start]) {
		start++
	}
	if start == len(rows) {
		return Table{Format: format}
	}

	header := append([]string(nil), rows[start]...)
	var body [][]string
	for _, row := range rows[start+1:] {
		if blankRow(row) {
			continue
		}
		for len(header) < len(row) {
			header = append(header, "")
		}
		body = append(body, row)
	}

	columns := headerNames(header)
	for i, row := range body {
		body[i] = padRow(row, len(columns))
	}
	return Table{Columns: columns, Rows: body, Format: format}
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
