package ingest

import (
	"fmt"
	"path/filepath"
	"strings"

	"spendalyzer/internal/core"
)

// Load decodes raw file bytes into a Table. The filename is only used to
// pick spreadsheet decoding for .xls/.xlsx; everything else is read as
// delimited text. On failure the returned Table is empty and the error
// matches ErrSpreadsheet, ErrDecode or ErrParse.
func Load(raw []byte, filename string) (Table, error) {
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(filename))) {
	case ".xlsx":
		t, err := readXLSX(raw)
		if err != nil {
			return Table{}, fmt.Errorf("%w: %w", ErrSpreadsheet, err)
		}
		return t, nil
	case ".xls":
		t, err := readXLS(raw)
		if err != nil {
			return Table{}, fmt.Errorf("%w: %w", ErrSpreadsheet, err)
		}
		return t, nil
	}

	text, encoding, err := decodeText(raw)
	if err != nil {
		return Table{}, err
	}
	cleaned := removeBlankLines(text)
	sniffed, ok := sniffDelimiter(cleaned)

	var failures []string
	for _, attempt := range parseAttempts(cleaned, sniffed, ok) {
		t, err := parseDelimited(cleaned, attempt.delimiter)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", attempt.name, err))
			continue
		}
		t.Encoding = encoding
		t.Attempt = attempt.name
		return t, nil
	}
	return Table{}, fmt.Errorf("%w: %s", ErrParse, strings.Join(failures, "; "))
}

// LoadLedger runs Load and Normalize. A table without rows or columns is
// reported as ErrParse so callers see a single "could not parse" failure.
func LoadLedger(raw []byte, filename string) (core.Ledger, Table, error) {
	t, err := Load(raw, filename)
	if err != nil {
		return core.Ledger{}, t, err
	}
	if t.Empty() {
		return core.Ledger{}, t, fmt.Errorf("%w: file is empty", ErrParse)
	}
	ledger, err := Normalize(t)
	if err != nil {
		return core.Ledger{}, t, err
	}
	return ledger, t, nil
}
