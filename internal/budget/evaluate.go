package budget

import (
	"sort"
	"strings"

	"spendalyzer/internal/core"
)

// Status tells apart a rule that was evaluated from one that had nothing
// to match with.
type Status string

const (
	StatusEvaluated  Status = "evaluated"
	StatusNoKeywords Status = "no_keywords"
)

type (
	// Overall is the period-wide spending against the overall budget.
	Overall struct {
		Period       core.Period `json:"period"`
		Spent        core.Money  `json:"spent"`
		Budget       core.Money  `json:"budget"`
		Progress     float64     `json:"progress"`
		ExpenseCount int         `json:"expense_count"`
	}

	// Match is one expense attributed to a rule. Spent is positive.
	Match struct {
		Date        core.Date  `json:"date"`
		Description string     `json:"description"`
		Spent       core.Money `json:"spent"`
	}

	RuleResult struct {
		Category string     `json:"category"`
		Keywords []string   `json:"keywords"`
		Status   Status     `json:"status"`
		Spent    core.Money `json:"spent"`
		Limit    core.Money `json:"limit"`
		Progress float64    `json:"progress"`
		Matched  []Match    `json:"matched"`
	}
)

// NoKeywords reports whether the rule was skipped for lack of keywords.
func (r RuleResult) NoKeywords() bool {
	return r.Status == StatusNoKeywords
}

// Evaluate scores the expenses of one period against the overall budget and
// each rule. It is pure and never fails: empty ledgers, periods or rule
// lists give zero-valued results. Progress is min(1, spent/limit), and 0
// whenever the limit is not positive.
func Evaluate(ledger core.Ledger, period core.Period, overall core.Money, rules []Rule) (Overall, []RuleResult) {
	expenses := periodExpenses(ledger, period)

	total := core.Money{}
	for _, e := range expenses {
		total = total.Add(e.Spent)
	}
	o := Overall{
		Period:       period,
		Spent:        total,
		Budget:       overall,
		Progress:     total.Ratio(overall),
		ExpenseCount: len(expenses),
	}

	results := make([]RuleResult, 0, len(rules))
	for _, r := range rules {
		results = append(results, evaluateRule(r, expenses))
	}
	return o, results
}

func evaluateRule(r Rule, expenses []Match) RuleResult {
	res := RuleResult{
		Category: r.Label(),
		Keywords: ParseKeywords(r.Keywords),
		Limit:    r.Budget,
		Matched:  []Match{},
	}
	if len(res.Keywords) == 0 {
		res.Status = StatusNoKeywords
		return res
	}
	res.Status = StatusEvaluated
	for _, e := range expenses {
		if matchesAny(e.Description, res.Keywords) {
			res.Matched = append(res.Matched, e)
			res.Spent = res.Spent.Add(e.Spent)
		}
	}
	sort.SliceStable(res.Matched, func(i, j int) bool {
		return res.Matched[i].Date.Before(res.Matched[j].Date.Time)
	})
	res.Progress = res.Spent.Ratio(r.Budget)
	return res
}

// periodExpenses keeps the outgoing transactions of period in ledger order,
// with their magnitude as Spent.
func periodExpenses(ledger core.Ledger, period core.Period) []Match {
	var out []Match
	for _, t := range ledger.Transactions {
		if t.Period() != period || !t.IsExpense() {
			continue
		}
		out = append(out, Match{Date: t.Date, Description: t.Description, Spent: t.Amount.Neg()})
	}
	return out
}

func matchesAny(description string, keywords []string) bool {
	d := strings.ToLower(description)
	for _, k := range keywords {
		if strings.Contains(d, k) {
			return true
		}
	}
	return false
}
