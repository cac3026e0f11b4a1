package events

import (
	"encoding/json"
	"time"
)

// Event names double as AMQP routing keys.
const (
	NameLedgerLoaded = "ledger.loaded"
	NameRulesUpdated = "rules.updated"
)

// Event is the envelope published for every dashboard change.
type Event struct {
	Name      string          `json:"name"`
	SessionID string          `json:"session_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// LedgerLoaded describes a successful file or sample load.
type LedgerLoaded struct {
	Source    string `json:"source"`
	Format    string `json:"format"`
	Encoding  string `json:"encoding,omitempty"`
	Delimiter string `json:"delimiter,omitempty"`
	Rows      int    `json:"rows"`
	Dropped   int    `json:"dropped"`
	Periods   int    `json:"periods"`
}

// RulesUpdated carries the rule count after an edit.
type RulesUpdated struct {
	Rules       int   `json:"rules"`
	BudgetCents int64 `json:"overall_budget_cents"`
}

// NewEvent wraps payload in an envelope stamped with now.
func NewEvent(name, sessionID string, payload any, now time.Time) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Name: name, SessionID: sessionID, Timestamp: now, Payload: body}, nil
}

// ToJSON converts the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON decodes an envelope.
func EventFromJSON(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, err
	}
	return e, nil
}
