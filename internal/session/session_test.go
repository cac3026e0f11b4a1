package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"spendalyzer/internal/budget"
	"spendalyzer/internal/cache"
	"spendalyzer/internal/core"
)

func TestNewSession(t *testing.T) {
	now := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	s := New(core.Money{Cents: 200000}, now)
	if !ValidID(s.ID) {
		t.Fatalf("id %q is not a uuid", s.ID)
	}
	if len(s.Rules) != 3 || s.Rules[0].Category != "Groceries" {
		t.Fatalf("rules = %+v", s.Rules)
	}
	if s.HasLedger() {
		t.Fatal("new session should have no ledger")
	}
	if s.OverallBudget.Cents != 200000 {
		t.Fatalf("budget = %v", s.OverallBudget)
	}
}

func TestSelectedPeriod(t *testing.T) {
	now := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	ledger := core.Ledger{Transactions: []core.Transaction{
		{Date: core.NewDate(2024, 8, 3)},
		{Date: core.NewDate(2024, 9, 1)},
	}}

	tests := []struct {
		name   string
		s      Session
		expect core.Period
	}{
		{"no ledger uses current month", Session{}, core.Period{Year: 2026, Month: 1}},
		{"unset uses latest", Session{Ledger: ledger}, core.Period{Year: 2024, Month: 9}},
		{"chosen period kept", Session{Ledger: ledger, Period: core.Period{Year: 2024, Month: 8}}, core.Period{Year: 2024, Month: 8}},
		{"unknown period falls back", Session{Ledger: ledger, Period: core.Period{Year: 2023, Month: 3}}, core.Period{Year: 2024, Month: 9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.SelectedPeriod(now); got != tt.expect {
				t.Fatalf("SelectedPeriod = %v, want %v", got, tt.expect)
			}
		})
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10, time.Hour)
	defer store.Close()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) = %v, want ErrNotFound", err)
	}

	s := New(core.Money{Cents: 100}, time.Now())
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got.Rules[0] = budget.Rule{Category: "edited"}
	again, _ := store.Get(ctx, s.ID)
	if again.Rules[0].Category != "Groceries" {
		t.Fatal("edits to a fetched session leaked into the store")
	}

	if err := store.Delete(ctx, s.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after delete = %v", err)
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	store := NewMemoryStore(10, time.Hour, cache.WithClock[Session](func() time.Time { return clock }))

	old := New(core.Money{}, base.Add(-3*time.Hour))
	fresh := New(core.Money{}, base)
	_ = store.Save(ctx, old)
	_ = store.Save(ctx, fresh)

	n, err := store.Sweep(ctx, base.Add(-time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("Sweep = %d, %v; want 1", n, err)
	}
	if _, err := store.Get(ctx, old.ID); !errors.Is(err, ErrNotFound) {
		t.Fatal("old session survived the sweep")
	}

	// fresh is newer than the cutoff but idle past the cache TTL.
	clock = base.Add(2 * time.Hour)
	if n, _ := store.Sweep(ctx, base.Add(-time.Hour)); n != 1 {
		t.Fatalf("Sweep = %d, want 1", n)
	}
	if store.Len() != 0 {
		t.Fatalf("len = %d, want 0", store.Len())
	}
}

func TestMemoryStoreEvictsLeastRecent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2, time.Hour)
	a, b, c := New(core.Money{}, time.Now()), New(core.Money{}, time.Now()), New(core.Money{}, time.Now())
	_ = store.Save(ctx, a)
	_ = store.Save(ctx, b)
	_, _ = store.Get(ctx, a.ID)
	_ = store.Save(ctx, c)

	if _, err := store.Get(ctx, b.ID); !errors.Is(err, ErrNotFound) {
		t.Fatal("least recently used session should be evicted")
	}
	if _, err := store.Get(ctx, a.ID); err != nil {
		t.Fatalf("a evicted: %v", err)
	}
}

func TestSetLedgerResetsPeriod(t *testing.T) {
	s := New(core.Money{}, time.Now())
	s.Period = core.Period{Year: 2020, Month: 1}
	s.SetLedger("a.csv", core.Ledger{Columns: []string{"date", "amount", "description"}})
	if s.Source != "a.csv" || !s.Period.IsZero() || s.Revision != 1 || !s.HasLedger() {
		t.Fatalf("session = %+v", s)
	}
}
