// Package ingest turns uploaded ledger files into normalized transaction
// tables.
//
// Loading is a chain of fallbacks: spreadsheet files are decoded directly,
// everything else is decoded as text (utf-8-sig, utf-8, latin-1), cleaned of
// blank lines, sniffed for a delimiter and parsed with an ordered list of
// parse attempts. Load never panics; on failure it returns an empty Table
// together with an error matching one of the sentinels below.
package ingest

import (
	"errors"
	"fmt"
	"strings"
)

// Format identifies how a table was decoded.
type Format string

const (
	FormatDelimited Format = "delimited"
	FormatXLSX      Format = "xlsx"
	FormatXLS       Format = "xls"
)

var (
	// ErrDecode means the bytes could not be decoded under any text encoding.
	ErrDecode = errors.New("could not decode file")
	// ErrParse means every delimited parse attempt failed.
	ErrParse = errors.New("could not parse file")
	// ErrSpreadsheet means a .xls/.xlsx file could not be read.
	ErrSpreadsheet = errors.New("could not read spreadsheet")
	// ErrSchema means required columns are missing after normalization.
	ErrSchema = errors.New("missing required columns")
	// ErrDuplicateColumn means two headers collide after trimming and lowercasing.
	ErrDuplicateColumn = errors.New("duplicate column")
)

// Table is a raw decoded table: a header row plus string cells.
type Table struct {
	Columns []string
	Rows    [][]string

	Format    Format
	Encoding  string // text encoding that succeeded, empty for spreadsheets
	Delimiter rune   // 0 for spreadsheets
	Attempt   string // name of the parse attempt that produced the table
}

// Empty reports whether the table has neither columns nor rows. This is the
// result of every failed load.
func (t Table) Empty() bool {
	return len(t.Columns) == 0 && len(t.Rows) == 0
}

// SchemaError lists the required columns a table lacks.
type SchemaError struct {
	Missing []string
	Columns []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("file must have columns date, amount, description: missing %s", strings.Join(e.Missing, ", "))
}

func (e *SchemaError) Unwrap() error {
	return ErrSchema
}

// DelimiterName returns a printable name for a delimiter rune.
func DelimiterName(r rune) string {
	switch r {
	case 0:
		return "none"
	case '\t':
		return "tab"
	case ',':
		return "comma"
	case ';':
		return "semicolon"
	case '|':
		return "pipe"
	default:
		return string(r)
	}
}
