package sheet

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// headerScanRows bounds the search for the header row.
const headerScanRows = 10

var ErrMissingColumns = errors.New(`columns "designation" and "quantite" not found`)

type ImportRow struct {
	Line     int
	Name     string
	Quantity int
}

// ImportPreview is what a product import would send, checked locally.
type ImportPreview struct {
	Sheet          string
	HeaderRow      int
	NameColumn     int
	QuantityColumn int
	Rows           []ImportRow
	Problems       []string
}

// InspectImport reads the active sheet of an xlsx workbook, locates the
// first of the leading rows holding both the designation and quantity headers and parses every data
// row the way the backend import does. Rows with a bad quantity are reported
// in Problems and left out of Rows.
func InspectImport(r io.Reader) (ImportPreview, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return ImportPreview{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	name := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(name)
	if err != nil {
		return ImportPreview{}, fmt.Errorf("read sheet %q: %w", name, err)
	}

	preview := ImportPreview{Sheet: name}
	for i := 0; i < len(rows) && i < headerScanRows; i++ {
		nameCol, qtyCol := headerColumns(rows[i])
		if nameCol > 0 && qtyCol > 0 {
			preview.HeaderRow = i + 1
			preview.NameColumn = nameCol
			preview.QuantityColumn = qtyCol
			break
		}
	}
	if preview.HeaderRow == 0 {
		return ImportPreview{}, ErrMissingColumns
	}

	for i := preview.HeaderRow; i < len(rows); i++ {
		line := i + 1
		designation := strings.TrimSpace(cellAt(rows[i], preview.NameColumn))
		if designation == "" {
			continue
		}
		raw := strings.TrimSpace(cellAt(rows[i], preview.QuantityColumn))
		qty, ok := parseQuantity(raw)
		if !ok {
			preview.Problems = append(preview.Problems, fmt.Sprintf("Ligne %d: Quantité invalide '%s'", line, raw))
			continue
		}
		preview.Rows = append(preview.Rows, ImportRow{Line: line, Name: designation, Quantity: qty})
	}
	return preview, nil
}

// headerColumns finds both headers on a single row; either is 0 when absent.
func headerColumns(row []string) (nameCol, qtyCol int) {
	for j, cell := range row {
		label := strings.ToLower(strings.TrimSpace(cell))
		if label == "" {
			continue
		}
		if isNameHeader(label) {
			nameCol = j + 1
		}
		if isQuantityHeader(label) {
			qtyCol = j + 1
		}
	}
	return nameCol, qtyCol
}

func isNameHeader(label string) bool {
	return strings.Contains(label, "designation") || strings.Contains(label, "désignation")
}

func isQuantityHeader(label string) bool {
	return strings.Contains(label, "quantite") || strings.Contains(label, "quantité") || strings.Contains(label, "qte")
}

func cellAt(row []string, col int) string {
	if col-1 < len(row) {
		return row[col-1]
	}
	return ""
}

// parseQuantity accepts integers and numeric cells such as "12.0"; fractions
// are truncated. An empty cell is zero.
func parseQuantity(raw string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

// WriteTable writes a single-sheet workbook with a header row.
func WriteTable(w io.Writer, sheetName string, headers []string, rows [][]any) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := renameFirstSheet(f, sheetName); err != nil {
		return err
	}
	if err := writeRow(f, sheetName, 1, stringsToAny(headers)); err != nil {
		return err
	}
	for i, row := range rows {
		if err := writeRow(f, sheetName, i+2, row); err != nil {
			return err
		}
	}
	_, err := f.WriteTo(w)
	return err
}

func renameFirstSheet(f *excelize.File, name string) error {
	current := f.GetSheetName(0)
	if name == "" || name == current {
		return nil
	}
	return f.SetSheetName(current, name)
}

func writeRow(f *excelize.File, sheet string, rowIdx int, values []any) error {
	for c, v := range values {
		cell, err := excelize.CoordinatesToCellName(c+1, rowIdx)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func stringsToAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
