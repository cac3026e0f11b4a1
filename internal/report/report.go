// Package report builds the summary panels shown next to the budget: net
// total, spending over time and top merchants.
package report

import (
	"sort"

	"spendalyzer/internal/core"
)

// DefaultTopMerchants is how many merchants the dashboard lists.
const DefaultTopMerchants = 10

type (
	// Point is one transaction on the timeline.
	Point struct {
		Date   core.Date  `json:"date"`
		Amount core.Money `json:"amount"`
	}

	// Merchant is the summed amount of every transaction sharing a description.
	Merchant struct {
		Description string     `json:"description"`
		Total       core.Money `json:"total"`
		Count       int        `json:"count"`
	}

	// Summary groups the report panels for one ledger.
	Summary struct {
		NetTotal     core.Money    `json:"net_total"`
		Rows         int           `json:"rows"`
		Dropped      int           `json:"dropped"`
		Periods      []core.Period `json:"periods"`
		Timeline     []Point       `json:"timeline"`
		TopMerchants []Merchant    `json:"top_merchants"`
	}
)

// NetTotal sums every amount, income and expenses alike.
func NetTotal(l core.Ledger) core.Money {
	total := core.Money{}
	for _, t := range l.Transactions {
		total = total.Add(t.Amount)
	}
	return total
}

// Timeline returns the transactions as points sorted by date. Same-day
// points keep their ledger order.
func Timeline(l core.Ledger) []Point {
	points := make([]Point, len(l.Transactions))
	for i, t := range l.Transactions {
		points[i] = Point{Date: t.Date, Amount: t.Amount}
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date.Time)
	})
	return points
}

// TopMerchants sums amounts per description and returns the n largest
// totals, largest first. Ties keep first-seen order. n <= 0 returns all.
func TopMerchants(l core.Ledger, n int) []Merchant {
	index := make(map[string]int)
	var merchants []Merchant
	for _, t := range l.Transactions {
		i, ok := index[t.Description]
		if !ok {
			i = len(merchants)
			index[t.Description] = i
			merchants = append(merchants, Merchant{Description: t.Description})
		}
		merchants[i].Total = merchants[i].Total.Add(t.Amount)
		merchants[i].Count++
	}
	sort.SliceStable(merchants, func(i, j int) bool {
		return merchants[i].Total.Cents > merchants[j].Total.Cents
	})
	if n > 0 && len(merchants) > n {
		merchants = merchants[:n]
	}
	return merchants
}

// Summarize builds every panel at once.
func Summarize(l core.Ledger) Summary {
	return Summary{
		NetTotal:     NetTotal(l),
		Rows:         len(l.Transactions),
		Dropped:      l.Dropped,
		Periods:      l.Periods(),
		Timeline:     Timeline(l),
		TopMerchants: TopMerchants(l, DefaultTopMerchants),
	}
}
