package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"spendalyzer/internal/budget"
	"spendalyzer/internal/core"
)

// maxJSONBody caps API request bodies other than uploads.
const maxJSONBody = 1 << 20

// ParsePeriodParam reads an optional YYYY-MM value. Empty gives the zero
// period, meaning the session's selection.
func ParsePeriodParam(values url.Values, key string) (core.Period, error) {
	v := strings.TrimSpace(values.Get(key))
	if v == "" {
		return core.Period{}, nil
	}
	return core.ParsePeriod(v)
}

// ParseMoneyField parses a non-negative decimal form value. Empty is zero.
func ParseMoneyField(v string) (core.Money, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return core.Money{}, nil
	}
	cents, err := core.ParseDecimalToCents(v)
	if err != nil {
		return core.Money{}, err
	}
	return core.Money{Cents: cents}, nil
}

// ParseRuleFields builds one rule from the category, keywords and budget
// fields.
func ParseRuleFields(form url.Values) (budget.Rule, error) {
	amount, err := ParseMoneyField(form.Get("budget"))
	if err != nil {
		return budget.Rule{}, err
	}
	return budget.Rule{
		Category: sanitizeInput(form.Get("category")),
		Keywords: sanitizeInput(form.Get("keywords")),
		Budget:   amount,
	}, nil
}

// ParseRuleRows reads the editable rules table: parallel category,
// keywords and budget fields, one entry per row. Rows with all three
// blank are skipped.
func ParseRuleRows(form url.Values) ([]budget.Rule, error) {
	cats, kws, budgets := form["category"], form["keywords"], form["budget"]
	if len(cats) != len(kws) || len(cats) != len(budgets) {
		return nil, fmt.Errorf("%w: %d categories, %d keywords, %d budgets", errRuleRowCount, len(cats), len(kws), len(budgets))
	}

	rules := make([]budget.Rule, 0, len(cats))
	for i := range cats {
		cat, kw, amt := sanitizeInput(cats[i]), sanitizeInput(kws[i]), strings.TrimSpace(budgets[i])
		if cat == "" && kw == "" && amt == "" {
			continue
		}
		amount, err := ParseMoneyField(amt)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		rules = append(rules, budget.Rule{Category: cat, Keywords: kw, Budget: amount})
	}
	return rules, nil
}

// ParseIndex reads a non-negative integer path parameter.
func ParseIndex(v string) (int, error) {
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || i < 0 {
		return 0, fmt.Errorf("%w: index %q", budget.ErrRuleIndex, v)
	}
	return i, nil
}

// DecodeJSON reads one JSON value into dst, rejecting unknown fields and
// trailing data.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", errBadForm, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", errBadForm)
	}
	return nil
}

// parseForm wraps form errors as errBadForm.
func parseForm(r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("%w: %w", errBadForm, err)
	}
	return nil
}
