// Package budget holds the keyword budget rules and the evaluator that
// scores a ledger against them for one period.
package budget

import (
	"errors"
	"strings"

	"spendalyzer/internal/core"
)

// UnnamedCategory labels rules whose category is blank.
const UnnamedCategory = "(Unnamed)"

var ErrRuleIndex = errors.New("rule index out of range")

// Rule is one user-defined category. Keywords keep the raw comma-separated
// text the user typed; they are parsed at evaluation time.
type Rule struct {
	Category string     `json:"category"`
	Keywords string     `json:"keywords"`
	Budget   core.Money `json:"budget"`
}

// Label returns the trimmed category, or UnnamedCategory when blank.
func (r Rule) Label() string {
	if c := strings.TrimSpace(r.Category); c != "" {
		return c
	}
	return UnnamedCategory
}

// ParseKeywords splits comma-separated keyword text into trimmed, lowercased,
// non-empty tokens in input order.
func ParseKeywords(text string) []string {
	var out []string
	for _, k := range strings.Split(text, ",") {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}

// DefaultRules returns a fresh copy of the starting rule list.
func DefaultRules() []Rule {
	return []Rule{
		{Category: "Groceries", Keywords: "metro,costco,walmart,superstore", Budget: core.Money{Cents: 30000}},
		{Category: "Transport", Keywords: "uber,lyft,shell,esso,petro,gas", Budget: core.Money{Cents: 15000}},
		{Category: "Entertainment", Keywords: "cineplex,netflix,spotify,steam", Budget: core.Money{Cents: 10000}},
	}
}

// RuleSet is an ordered, mutable rule list. Rules are not required to be
// unique. A RuleSet is not safe for concurrent use; it owns a copy of the
// rules it was built from.
type RuleSet struct {
	rules []Rule
}

// NewRuleSet copies rules into a new set.
func NewRuleSet(rules []Rule) *RuleSet {
	return &RuleSet{rules: append([]Rule(nil), rules...)}
}

// Rules returns a snapshot of the rules in order.
func (s *RuleSet) Rules() []Rule {
	return append([]Rule(nil), s.rules...)
}

func (s *RuleSet) Len() int {
	return len(s.rules)
}

// Replace swaps the whole list, as when the rule table is edited in place.
func (s *RuleSet) Replace(rules []Rule) {
	s.rules = append([]Rule(nil), rules...)
}

// Add appends a rule.
func (s *RuleSet) Add(r Rule) {
	s.rules = append(s.rules, r)
}

// Update overwrites the rule at index i.
func (s *RuleSet) Update(i int, r Rule) error {
	if i < 0 || i >= len(s.rules) {
		return ErrRuleIndex
	}
	s.rules[i] = r
	return nil
}

// Remove deletes the rule at index i, keeping the order of the rest.
func (s *RuleSet) Remove(i int) error {
	if i < 0 || i >= len(s.rules) {
		return ErrRuleIndex
	}
	s.rules = append(s.rules[:i], s.rules[i+1:]...)
	return nil
}
