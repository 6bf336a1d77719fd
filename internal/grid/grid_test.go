package grid

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

type priceTable map[string]string

func (p priceTable) PriceOf(name string) (decimal.Decimal, bool) {
	for k, v := range p {
		if strings.EqualFold(k, strings.TrimSpace(name)) {
			return decimal.RequireFromString(v), true
		}
	}
	return decimal.Zero, false
}

func TestAddRowAppliesDefaultsAndSequentialIDs(t *testing.T) {
	g := New(SaleKind, nil)
	a := g.AddRow()
	b := g.AddRow()

	if a.LocalID != 1 || b.LocalID != 2 {
		t.Fatalf("expected ids 1,2 got %d,%d", a.LocalID, b.LocalID)
	}
	if a.Field("quantity") != "1" || a.Field("unit_price") != "" {
		t.Fatalf("expected sale defaults, got %v", a.Fields)
	}
	if a.EntityID != nil {
		t.Fatalf("new row must not carry an entity id")
	}
}

func TestLocalIDsStayUniqueUnderRandomEdits(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	g := New(SaleKind, nil)
	var known []int

	for i := 0; i < 500; i++ {
		switch rng.Intn(4) {
		case 0, 1:
			known = append(known, g.AddRow().LocalID)
		case 2:
			if len(known) > 0 {
				g.UpdateCell(known[rng.Intn(len(known))], "quantity", "3")
			}
		case 3:
			if len(known) > 0 {
				id := known[rng.Intn(len(known))]
				g.DeleteRow(id)
				g.DeleteRow(id)
			}
		}
		if i%97 == 0 {
			g.Clear()
		}

		seen := make(map[int]bool)
		for _, row := range g.Rows() {
			if seen[row.LocalID] {
				t.Fatalf("duplicate local id %d after step %d", row.LocalID, i)
			}
			seen[row.LocalID] = true
		}
	}
}

func TestDeleteRowIsIdempotent(t *testing.T) {
	g := New(ExpenseKind, nil)
	row := g.AddRow()
	g.AddRow()

	g.DeleteRow(row.LocalID)
	g.DeleteRow(row.LocalID)
	g.DeleteRow(999)

	if g.Len() != 1 {
		t.Fatalf("expected one row left, got %d", g.Len())
	}
}

func TestAutoFillNeverOverwritesUserPrice(t *testing.T) {
	g := New(SaleKind, priceTable{"Widget": "99"})
	row := g.AddRow()
	g.UpdateCell(row.LocalID, "unit_price", "12")
	g.UpdateCell(row.LocalID, "product", "widget")

	got, _ := g.Row(row.LocalID)
	if got.Field("unit_price") != "12" {
		t.Fatalf("expected user price kept, got %q", got.Field("unit_price"))
	}
	if !got.Total.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("expected total 12, got %s", got.Total)
	}
}

func TestAutoFillCopiesPriceIntoBlankCell(t *testing.T) {
	g := New(SaleKind, priceTable{"Carton Standard": "1500"})
	row := g.AddRow()
	g.UpdateCell(row.LocalID, "quantity", "2")
	g.UpdateCell(row.LocalID, "product", "CARTON STANDARD")

	got, _ := g.Row(row.LocalID)
	if got.Field("unit_price") != "1500" {
		t.Fatalf("expected auto-filled price, got %q", got.Field("unit_price"))
	}
	if !got.Total.Equal(decimal.NewFromInt(3000)) {
		t.Fatalf("expected total 3000, got %s", got.Total)
	}

	g.UpdateCell(row.LocalID, "product", "Unknown thing")
	got, _ = g.Row(row.LocalID)
	if got.Field("unit_price") != "1500" {
		t.Fatalf("unmatched name must leave the price alone, got %q", got.Field("unit_price"))
	}
}

func TestExpenseTotalIsTheAmount(t *testing.T) {
	g := New(ExpenseKind, nil)
	row := g.AddRow()
	g.UpdateCell(row.LocalID, "amount", "2 000,50")

	got, _ := g.Row(row.LocalID)
	if !got.Total.Equal(decimal.RequireFromString("2000.50")) {
		t.Fatalf("expected 2000.50, got %s", got.Total)
	}
	if !g.GrandTotal().Equal(got.Total) {
		t.Fatalf("grand total mismatch")
	}
}

func TestUpdateCellRejectsUnknownRowOrField(t *testing.T) {
	g := New(CustomerKind, nil)
	row := g.AddRow()
	if g.UpdateCell(row.LocalID, "price", "3") {
		t.Fatalf("customer rows have no price field")
	}
	if g.UpdateCell(42, "first_name", "Awa") {
		t.Fatalf("unknown row must be rejected")
	}
}

func TestRowsReturnsCopies(t *testing.T) {
	g := New(SaleKind, nil)
	row := g.AddRow()
	rows := g.Rows()
	rows[0].Fields["quantity"] = "77"

	got, _ := g.Row(row.LocalID)
	if got.Field("quantity") != "1" {
		t.Fatalf("mutating a snapshot leaked into the grid")
	}
}

func TestEditExistingReturnsOpenDraft(t *testing.T) {
	g := New(ProductKind, nil)
	first := g.EditExisting(7, map[string]string{"name": "Scotch", "stock": "4", "price": "500"})
	again := g.EditExisting(7, map[string]string{"name": "Other"})

	if first.LocalID != again.LocalID || again.Field("name") != "Scotch" {
		t.Fatalf("expected the open draft back, got %+v", again)
	}
	if *first.EntityID != 7 {
		t.Fatalf("expected entity id 7")
	}
	if !first.Total.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("expected stock value 2000, got %s", first.Total)
	}
}

func TestClearKeepsIDsIncreasing(t *testing.T) {
	g := New(SaleKind, nil)
	g.AddRow()
	g.Clear()
	if next := g.AddRow(); next.LocalID != 2 {
		t.Fatalf("expected id 2 after clear, got %d", next.LocalID)
	}
}
