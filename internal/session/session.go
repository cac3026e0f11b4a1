// Package session holds the per-visitor dashboard state: the loaded ledger,
// the rule list, the overall budget and the selected period.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"spendalyzer/internal/budget"
	"spendalyzer/internal/core"
)

var ErrNotFound = errors.New("session not found")

// Session is one visitor's working state. A session without a ledger has an
// empty Source.
type Session struct {
	ID            string
	Source        string // filename of the loaded ledger
	Ledger        core.Ledger
	Revision      int64 // bumped on every ledger load
	Rules         []budget.Rule
	OverallBudget core.Money
	Period        core.Period
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// New starts a session with the default rules and the given overall budget.
func New(overall core.Money, now time.Time) Session {
	return Session{
		ID:            uuid.NewString(),
		Rules:         budget.DefaultRules(),
		OverallBudget: overall,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// SetLedger replaces the ledger and resets the period selection.
func (s *Session) SetLedger(source string, l core.Ledger) {
	s.Source = source
	s.Ledger = l
	s.Period = core.Period{}
	s.Revision++
}

// HasLedger reports whether a file or the sample has been loaded.
func (s Session) HasLedger() bool {
	return s.Source != ""
}

// SelectedPeriod returns the chosen period, falling back to the ledger's
// latest period (or the month of now) when none was chosen or the chosen one
// is not in the ledger.
func (s Session) SelectedPeriod(now time.Time) core.Period {
	if !s.Period.IsZero() && s.Ledger.HasPeriod(s.Period) {
		return s.Period
	}
	return s.Ledger.DefaultPeriod(now)
}

// Clone copies the mutable slices so callers can edit the copy freely.
// Ledger transactions are treated as immutable and shared.
func (s Session) Clone() Session {
	s.Rules = append([]budget.Rule(nil), s.Rules...)
	return s
}

// ValidID reports whether id looks like a session id issued by New.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Store persists sessions for the lifetime of a visit. Implementations are
// safe for concurrent use.
type Store interface {
	Get(ctx context.Context, id string) (Session, error)
	Save(ctx context.Context, s Session) error
	Delete(ctx context.Context, id string) error
	// Sweep removes sessions last updated before the cutoff and returns how
	// many were removed.
	Sweep(ctx context.Context, before time.Time) (int, error)
	Close() error
}
