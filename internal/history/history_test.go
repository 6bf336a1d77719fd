package history

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"boutique/backoffice/internal/domain"
)

func sale(id int, at string, total string) domain.Sale {
	m, err := domain.ParseMoment(at)
	if err != nil {
		panic(err)
	}
	return domain.Sale{ID: id, SaleDate: m, TotalAmount: total}
}

func TestGroupByDayOrdersByCalendarDate(t *testing.T) {
	sales := []domain.Sale{
		sale(1, "2024-02-28T09:00:00Z", "100"),
		sale(2, "2024-03-01T08:00:00Z", "200"),
		sale(3, "2024-02-28T15:00:00Z", "50"),
	}

	for _, label := range []Labeler{FrenchDayLabel, EnglishDayLabel} {
		groups := GroupSales(sales, time.UTC, label)
		if len(groups) != 2 {
			t.Fatalf("expected 2 groups, got %d", len(groups))
		}
		if groups[0].Key != "2024-03-01" || groups[1].Key != "2024-02-28" {
			t.Fatalf("expected March first, got %s then %s", groups[0].Key, groups[1].Key)
		}
	}
}

func TestGroupByDayKeepsItemOrderAndSumsDefensively(t *testing.T) {
	sales := []domain.Sale{
		sale(1, "2024-12-04T09:00:00Z", "1500.00"),
		sale(2, "2024-12-04T10:00:00Z", ""),
		sale(3, "2024-12-04T11:00:00Z", "n/a"),
		sale(4, "2024-12-04T12:00:00Z", "250.50"),
	}
	groups := GroupSales(sales, time.UTC, FrenchDayLabel)
	if len(groups) != 1 {
		t.Fatalf("expected a single day, got %d", len(groups))
	}
	g := groups[0]
	if g.Label != "4 décembre 2024" {
		t.Fatalf("unexpected label %q", g.Label)
	}
	if !g.Subtotal.Equal(decimal.RequireFromString("1750.50")) {
		t.Fatalf("unexpected subtotal %s", g.Subtotal)
	}
	for i, s := range g.Items {
		if s.ID != i+1 {
			t.Fatalf("item order changed: %v", g.Items)
		}
	}
}

func TestGroupByDayUsesLocationForDayBoundary(t *testing.T) {
	dakar := time.FixedZone("UTC-1", -3600)
	sales := []domain.Sale{sale(1, "2024-03-01T00:30:00Z", "10")}

	groups := GroupSales(sales, dakar, EnglishDayLabel)
	if groups[0].Key != "2024-02-29" || groups[0].Label != "29 February 2024" {
		t.Fatalf("expected the previous local day, got %s / %s", groups[0].Key, groups[0].Label)
	}
}

func TestBareExpenseDateKeepsItsDayWestOfUTC(t *testing.T) {
	newYork, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("no tzdata: %v", err)
	}
	var expenses []domain.Expense
	raw := `[{"id":1,"amount":"40.00","expense_date":"2024-03-01"},{"id":2,"amount":"2.50","expense_date":"2024-03-01"}]`
	if err := json.Unmarshal([]byte(raw), &expenses); err != nil {
		t.Fatalf("decode: %v", err)
	}

	groups := GroupExpenses(expenses, newYork, EnglishDayLabel)
	if len(groups) != 1 || groups[0].Key != "2024-03-01" || groups[0].Label != "1 March 2024" {
		t.Fatalf("expected one group on 1 March, got %+v", groups)
	}
	if !groups[0].Subtotal.Equal(decimal.RequireFromString("42.5")) {
		t.Fatalf("unexpected subtotal %s", groups[0].Subtotal)
	}
}

func TestUndatedRecordsGoLast(t *testing.T) {
	expenses := []domain.Expense{
		{ID: 1, Amount: "5"},
		{ID: 2, Amount: "7", ExpenseDate: domain.NewMoment(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))},
	}
	groups := GroupExpenses(expenses, time.UTC, nil)
	if len(groups) != 2 || groups[1].Key != "" {
		t.Fatalf("expected undated group last, got %+v", groups)
	}
	if !Total(groups).Equal(decimal.NewFromInt(12)) {
		t.Fatalf("unexpected total %s", Total(groups))
	}
}

func TestLabelerFor(t *testing.T) {
	day := time.Date(2024, 8, 15, 0, 0, 0, 0, time.UTC)
	if got := LabelerFor("EN")(day); got != "15 August 2024" {
		t.Fatalf("unexpected english label %q", got)
	}
	if got := LabelerFor("xx")(day); got != "15 août 2024" {
		t.Fatalf("unexpected french label %q", got)
	}
}
