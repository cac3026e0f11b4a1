package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/araddon/dateparse"
	"github.com/xuri/excelize/v2"

	"spendalyzer/internal/core"
)

// Excel serial day numbers accepted as dates: 1900-01-01 through 9999-12-31.
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465
)

// NormalizeColumn trims and lowercases a header.
func NormalizeColumn(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Normalize converts a loaded table into a ledger. Headers are trimmed and
// lowercased, the required columns are enforced, and rows whose date or
// amount cannot be coerced are dropped (and only counted).
func Normalize(t Table) (core.Ledger, error) {
	columns := make([]string, len(t.Columns))
	index := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		name := NormalizeColumn(c)
		if _, dup := index[name]; dup {
			return core.Ledger{}, fmt.Errorf("%w: %q", ErrDuplicateColumn, name)
		}
		index[name] = i
		columns[i] = name
	}

	var missing []string
	for _, req := range core.RequiredColumns {
		if _, ok := index[req]; !ok {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return core.Ledger{}, &SchemaError{Missing: missing, Columns: columns}
	}

	dateCol, amountCol, descCol := index["date"], index["amount"], index["description"]
	ledger := core.Ledger{
		Columns:      columns,
		Transactions: make([]core.Transaction, 0, len(t.Rows)),
	}
	for _, row := range t.Rows {
		date, ok := coerceDate(cell(row, dateCol), t.Format)
		if !ok {
			ledger.Dropped++
			continue
		}
		amount, err := core.ParseAmount(cell(row, amountCol))
		if err != nil {
			ledger.Dropped++
			continue
		}
		tx := core.Transaction{
			Date:        date,
			Amount:      amount,
			Description: strings.TrimSpace(cell(row, descCol)),
		}
		for i, name := range columns {
			if i == dateCol || i == amountCol || i == descCol {
				continue
			}
			if tx.Extras == nil {
				tx.Extras = make(map[string]string, len(columns)-3)
			}
			tx.Extras[name] = cell(row, i)
		}
		ledger.Transactions = append(ledger.Transactions, tx)
	}
	return ledger, nil
}

// coerceDate parses one cell independently of its neighbours. Spreadsheet
// sources may carry Excel serial numbers.
func coerceDate(s string, format Format) (core.Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Date{}, false
	}
	if format == FormatXLSX || format == FormatXLS {
		if serial, err := strconv.ParseFloat(s, 64); err == nil {
			if serial < minExcelSerial || serial > maxExcelSerial {
				return core.Date{}, false
			}
			t, err := excelize.ExcelDateToTime(serial, false)
			if err != nil {
				return core.Date{}, false
			}
			return core.DateOf(t), true
		}
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return core.Date{}, false
	}
	return core.DateOf(t), true
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
