package history

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"boutique/backoffice/internal/domain"
)

const dayKeyLayout = "2006-01-02"

// Labeler renders a calendar day for display. It is never used for sorting.
type Labeler func(day time.Time) string

// DayGroup is one calendar day of transactions. Key is the ISO date in the
// grouping location, or empty for records without a date.
type DayGroup[T any] struct {
	Key      string
	Label    string
	Items    []T
	Subtotal decimal.Decimal
}

// GroupByDay buckets items by ISO day key in loc and returns the groups
// newest first. at should already place civil dates in loc. Item order inside a group is the input order. Amounts that
// are missing or not numeric count as zero.
func GroupByDay[T any](items []T, at func(T) time.Time, amount func(T) string, loc *time.Location, label Labeler) []DayGroup[T] {
	loc = orLocal(loc)
	if label == nil {
		label = FrenchDayLabel
	}

	index := make(map[string]int)
	var groups []DayGroup[T]
	for _, item := range items {
		ts := at(item)
		key := ""
		if !ts.IsZero() {
			key = ts.In(loc).Format(dayKeyLayout)
		}
		idx, ok := index[key]
		if !ok {
			idx = len(groups)
			index[key] = idx
			groups = append(groups, DayGroup[T]{Key: key, Label: labelFor(key, loc, label), Subtotal: decimal.Zero})
		}
		groups[idx].Items = append(groups[idx].Items, item)
		groups[idx].Subtotal = groups[idx].Subtotal.Add(domain.ParseAmount(amount(item)))
	}

	// ISO keys sort chronologically as strings; undated records go last.
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Key > groups[j].Key
	})
	return groups
}

func orLocal(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}

func labelFor(key string, loc *time.Location, label Labeler) string {
	if key == "" {
		return "?"
	}
	day, err := time.ParseInLocation(dayKeyLayout, key, loc)
	if err != nil {
		return key
	}
	return label(day)
}

// GroupSales groups by sale_date and sums total_amount.
func GroupSales(sales []domain.Sale, loc *time.Location, label Labeler) []DayGroup[domain.Sale] {
	loc = orLocal(loc)
	return GroupByDay(sales,
		func(s domain.Sale) time.Time { return s.SaleDate.In(loc) },
		func(s domain.Sale) string { return s.TotalAmount },
		loc, label)
}

// GroupExpenses groups by expense_date and sums amount. A bare date stays on
// its calendar day whatever loc is.
func GroupExpenses(expenses []domain.Expense, loc *time.Location, label Labeler) []DayGroup[domain.Expense] {
	loc = orLocal(loc)
	return GroupByDay(expenses,
		func(e domain.Expense) time.Time { return e.ExpenseDate.In(loc) },
		func(e domain.Expense) string { return e.Amount },
		loc, label)
}

// Total sums the subtotals of every group.
func Total[T any](groups []DayGroup[T]) decimal.Decimal {
	total := decimal.Zero
	for _, g := range groups {
		total = total.Add(g.Subtotal)
	}
	return total
}

var frenchMonths = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

// FrenchDayLabel renders "4 décembre 2024".
func FrenchDayLabel(day time.Time) string {
	return fmt.Sprintf("%d %s %d", day.Day(), frenchMonths[day.Month()-1], day.Year())
}

// EnglishDayLabel renders "4 December 2024".
func EnglishDayLabel(day time.Time) string {
	return day.Format("2 January 2006")
}

// LabelerFor picks a labeler by locale code; unknown codes get French.
func LabelerFor(locale string) Labeler {
	switch strings.ToLower(strings.TrimSpace(locale)) {
	case "en", "en-us", "en-gb":
		return EnglishDayLabel
	default:
		return FrenchDayLabel
	}
}
