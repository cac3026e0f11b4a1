package core

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in    string
		cents int64
		ok    bool
	}{
		{"-85.20", -8520, true},
		{"2000.00", 200000, true},
		{" 12 ", 1200, true},
		{"+1.5", 150, true},
		{"1e3", 100000, true},
		{"-0.005", -1, true}, // half away from zero
		{"-12.345", -1235, true},
		{"-0.004", 0, true},
		{"0.0049", 0, true},
		{"", 0, false},
		{"abc", 0, false},
		{"1,234.56", 0, false},
		{"$12", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			m, err := ParseAmount(tt.in)
			if tt.ok {
				if err != nil {
					t.Fatalf("ParseAmount(%q) unexpected error: %v", tt.in, err)
				}
				if m.Cents != tt.cents {
					t.Fatalf("ParseAmount(%q) = %d, want %d", tt.in, m.Cents, tt.cents)
				}
				return
			}
			if !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("ParseAmount(%q) error = %v, want ErrInvalidAmount", tt.in, err)
			}
		})
	}
}

func TestParseDecimalToCents(t *testing.T) {
	tests := []struct {
		in    string
		cents int64
		ok    bool
	}{
		{"300", 30000, true},
		{"12,34", 1234, true},
		{"12.345", 1235, true},
		{"1,234.56", 123456, true},
		{"0", 0, true},
		{"-1", 0, false},
		{"", 0, false},
		{"1.2.3", 0, false},
		{"99999999999999999999", 0, false},
	}
	for _, tt := range tests {
		got, err := ParseDecimalToCents(tt.in)
		if tt.ok && (err != nil || got != tt.cents) {
			t.Errorf("ParseDecimalToCents(%q) = %d, %v; want %d", tt.in, got, err, tt.cents)
		}
		if !tt.ok && err == nil {
			t.Errorf("ParseDecimalToCents(%q) expected error, got %d", tt.in, got)
		}
	}
}

func TestMoneyRatio(t *testing.T) {
	if r := (Money{Cents: 8398}).Ratio(Money{Cents: 10000}); r != 0.8398 {
		t.Fatalf("Ratio = %v, want 0.8398", r)
	}
	if r := (Money{Cents: 50000}).Ratio(Money{Cents: 10000}); r != 1.0 {
		t.Fatalf("Ratio should clamp to 1, got %v", r)
	}
	if r := (Money{Cents: 100}).Ratio(Money{}); r != 0.0 {
		t.Fatalf("Ratio with zero limit = %v, want 0", r)
	}
	if r := (Money{Cents: 100}).Ratio(Money{Cents: -5}); r != 0.0 {
		t.Fatalf("Ratio with negative limit = %v, want 0", r)
	}
}

func TestMoneyFormatting(t *testing.T) {
	tests := []struct {
		m     Money
		str   string
		fixed string
	}{
		{Money{Cents: 313212}, "$3,132.12", "3132.12"},
		{Money{Cents: -8520}, "-$85.20", "-85.20"},
		{Money{Cents: 0}, "$0.00", "0.00"},
		{Money{Cents: 5}, "$0.05", "0.05"},
	}
	for _, tt := range tests {
		if got := tt.m.String(); got != tt.str {
			t.Errorf("String(%d) = %q, want %q", tt.m.Cents, got, tt.str)
		}
		if got := tt.m.Fixed(); got != tt.fixed {
			t.Errorf("Fixed(%d) = %q, want %q", tt.m.Cents, got, tt.fixed)
		}
	}
}

func TestMoneyUnmarshalJSON(t *testing.T) {
	for in, want := range map[string]int64{`300`: 30000, `"150.5"`: 15050, `null`: 0} {
		var m Money
		if err := m.UnmarshalJSON([]byte(in)); err != nil {
			t.Fatalf("UnmarshalJSON(%s): %v", in, err)
		}
		if m.Cents != want {
			t.Fatalf("UnmarshalJSON(%s) = %d, want %d", in, m.Cents, want)
		}
	}
	var m Money
	if err := m.UnmarshalJSON([]byte(`"x"`)); err == nil {
		t.Fatal("expected error for non-numeric money")
	}
}
