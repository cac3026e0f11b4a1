package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
)

var errNoColumns = errors.New("no columns to parse from file")

// parseAttempt is one delimiter to try. Attempts run in order until one
// parses without error.
type parseAttempt struct {
	name      string
	delimiter rune
}

// parseAttempts builds the ordered chain: the sniffed delimiter (or the
// auto-detected one when sniffing failed), then every candidate in fixed order.
func parseAttempts(text string, sniffed rune, ok bool) []parseAttempt {
	attempts := make([]parseAttempt, 0, len(candidateDelimiters)+1)
	if ok {
		attempts = append(attempts, parseAttempt{name: "sniffed", delimiter: sniffed})
	} else {
		attempts = append(attempts, parseAttempt{name: "auto", delimiter: autoDelimiter(text)})
	}
	for _, d := range candidateDelimiters {
		attempts = append(attempts, parseAttempt{name: "fallback " + DelimiterName(d), delimiter: d})
	}
	return attempts
}

// autoDelimiter guesses from the header line alone, defaulting to comma.
func autoDelimiter(text string) rune {
	header, _, _ := strings.Cut(text, "\n")
	if d, ok := sniffDelimiter(header); ok {
		return d
	}
	return ','
}

// parseDelimited reads text with the given delimiter. The first record is the
// header. Short rows are padded with empty cells; rows with more fields than
// the header are an error.
func parseDelimited(text string, delimiter rune) (Table, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("read records: %w", err)
	}
	if len(records) == 0 {
		return Table{}, errNoColumns
	}

	columns := headerNames(records[0])
	rows := make([][]string, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) > len(columns) {
			return Table{}, fmt.Errorf("line %d: expected %d fields, saw %d", i+2, len(columns), len(rec))
		}
		rows = append(rows, padRow(rec, len(columns)))
	}

	return Table{
		Columns:   columns,
		Rows:      rows,
		Format:    FormatDelimited,
		Delimiter: delimiter,
	}, nil
}

// headerNames names blank header cells "Unnamed: N" by position.
func headerNames(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		if strings.TrimSpace(h) == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		out[i] = h
	}
	return out
}

func padRow(row []string, width int) []string {
	if len(row) >= width {
		return row
	}
	out := make([]string, width)
	copy(out, row)
	return out
}
