package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

type (
	Date struct {
		time.Time
	}

	// Period is a calendar month used to scope budgeting.
	Period struct {
		Year  int
		Month time.Month
	}

	Transaction struct {
		Date        Date              `json:"date"`
		Amount      Money             `json:"amount"`
		Description string            `json:"description"`
		Extras      map[string]string `json:"extras,omitempty"` // pass-through columns
	}

	// Ledger is a normalized transaction table in source row order.
	Ledger struct {
		Columns      []string      `json:"columns"`
		Transactions []Transaction `json:"transactions"`
		Dropped      int           `json:"dropped"` // rows removed during coercion
	}
)

var (
	ErrInvalidDay    = errors.New("invalid day")
	ErrInvalidMonth  = errors.New("invalid month")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidPeriod = errors.New("invalid period")
)

// RequiredColumns are the headers every ledger must carry after lowercasing.
var RequiredColumns = []string{"date", "amount", "description"}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// Period returns the year-month bucket of the date.
func (d Date) Period() Period {
	return Period{Year: d.Year(), Month: d.Month()}
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

// ParsePeriod parses the YYYY-MM form produced by Period.String.
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

func (p Period) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

func (p *Period) UnmarshalJSON(b []byte) error {
	parsed, err := ParsePeriod(strings.Trim(string(b), `"`))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Period returns the year-month the transaction belongs to.
func (t Transaction) Period() Period {
	return t.Date.Period()
}

// IsExpense reports whether the transaction is money going out.
func (t Transaction) IsExpense() bool {
	return t.Amount.IsNegative()
}

// Empty reports whether the ledger has no transactions.
func (l Ledger) Empty() bool {
	return len(l.Transactions) == 0
}

// Periods returns the distinct periods present in the ledger, oldest first.
func (l Ledger) Periods() []Period {
	seen := make(map[Period]struct{})
	var out []Period
	for _, t := range l.Transactions {
		p := t.Period()
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// DefaultPeriod picks the latest period of the ledger, or the month of now
// when the ledger has no dated rows.
func (l Ledger) DefaultPeriod(now time.Time) Period {
	periods := l.Periods()
	if len(periods) == 0 {
		return PeriodOf(now)
	}
	return periods[len(periods)-1]
}

// HasPeriod reports whether any transaction falls in p.
func (l Ledger) HasPeriod(p Period) bool {
	for _, t := range l.Transactions {
		if t.Period() == p {
			return true
		}
	}
	return false
}
