package sheet

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"boutique/backoffice/internal/domain"
	"boutique/backoffice/internal/history"
)

func workbook(t *testing.T, headers []string, rows [][]any) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	if err := WriteTable(&buf, "Stock", headers, rows); err != nil {
		t.Fatalf("write table: %v", err)
	}
	return &buf
}

func TestInspectImportFindsAccentedHeaders(t *testing.T) {
	buf := workbook(t, []string{"Réf", "Désignation", "Qté / Quantité"}, [][]any{
		{"A1", "Carton Standard", 12},
		{"A2", "", 4},
		{"A3", "Scotch", "abc"},
		{"A4", "Ficelle", ""},
		{"A5", "Carton Double", "7.9"},
	})

	preview, err := InspectImport(buf)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if preview.Sheet != "Stock" || preview.HeaderRow != 1 || preview.NameColumn != 2 || preview.QuantityColumn != 3 {
		t.Fatalf("unexpected layout %+v", preview)
	}
	if len(preview.Rows) != 3 {
		t.Fatalf("expected 3 importable rows, got %+v", preview.Rows)
	}
	if preview.Rows[0].Name != "Carton Standard" || preview.Rows[0].Quantity != 12 || preview.Rows[0].Line != 2 {
		t.Fatalf("unexpected first row %+v", preview.Rows[0])
	}
	if preview.Rows[1].Quantity != 0 || preview.Rows[2].Quantity != 7 {
		t.Fatalf("unexpected quantities %+v", preview.Rows)
	}
	if len(preview.Problems) != 1 || preview.Problems[0] != "Ligne 4: Quantité invalide 'abc'" {
		t.Fatalf("unexpected problems %v", preview.Problems)
	}
}

func TestInspectImportRejectsMissingColumns(t *testing.T) {
	buf := workbook(t, []string{"Nom", "Stock"}, [][]any{{"Carton", 1}})
	if _, err := InspectImport(buf); !errors.Is(err, ErrMissingColumns) {
		t.Fatalf("expected ErrMissingColumns, got %v", err)
	}
}

func TestInspectImportNeedsBothHeadersOnOneRow(t *testing.T) {
	buf := workbook(t, []string{"Désignation", ""}, [][]any{
		{"Carton", ""},
		{"", "Quantité"},
		{"Scotch", 3},
	})
	if _, err := InspectImport(buf); !errors.Is(err, ErrMissingColumns) {
		t.Fatalf("expected split headers rejected, got %v", err)
	}

	buf = workbook(t, []string{"Inventaire 2024", ""}, [][]any{
		{"Désignation", "Qte"},
		{"Carton", 4},
	})
	preview, err := InspectImport(buf)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if preview.HeaderRow != 2 || len(preview.Rows) != 1 || preview.Rows[0].Name != "Carton" {
		t.Fatalf("unexpected preview %+v", preview)
	}
}

func TestInspectImportRejectsNonWorkbook(t *testing.T) {
	if _, err := InspectImport(bytes.NewBufferString("not a zip")); err == nil {
		t.Fatalf("expected an error for a non-xlsx body")
	}
}

func TestWriteHistoryLaysOutGroups(t *testing.T) {
	at := func(s string) domain.Moment {
		m, _ := domain.ParseMoment(s)
		return m
	}
	sales := []domain.Sale{
		{ID: 1, SaleDate: at("2024-12-04T09:00:00Z"), TotalAmount: "1500.00"},
		{ID: 2, SaleDate: at("2024-12-03T09:00:00Z"), TotalAmount: "500.00"},
	}
	groups := history.GroupSales(sales, time.UTC, history.FrenchDayLabel)

	var buf bytes.Buffer
	err := WriteHistory(&buf, "Ventes", groups, func(s domain.Sale) Line {
		return Line{
			Date:        s.SaleDate.Format("02/01/2006"),
			Description: "Vente #" + decimal.NewFromInt(int64(s.ID)).String(),
			Amount:      domain.ParseAmount(s.TotalAmount),
		}
	})
	if err != nil {
		t.Fatalf("write history: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Ventes")
	if err != nil {
		t.Fatalf("rows: %v", err)
	}

	// header, day, item, subtotal, day, item, subtotal, total
	if len(rows) != 8 {
		t.Fatalf("expected 8 rows, got %d: %v", len(rows), rows)
	}
	if rows[1][0] != "4 décembre 2024" || rows[2][1] != "Vente #1" {
		t.Fatalf("unexpected first day block %v", rows[1:3])
	}
	if rows[7][1] != "Total" || rows[7][2] != "2000" {
		t.Fatalf("unexpected total row %v", rows[7])
	}
}
