package sheet

import (
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"boutique/backoffice/internal/history"
)

// Line is one history record as it appears in the workbook.
type Line struct {
	Date        string
	Description string
	Amount      decimal.Decimal
}

// WriteHistory writes day groups to a workbook: a label row per day, its
// records, a subtotal row, and a grand total at the end.
func WriteHistory[T any](w io.Writer, sheetName string, groups []history.DayGroup[T], line func(T) Line) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheetName == "" {
		sheetName = "Historique"
	}
	if err := renameFirstSheet(f, sheetName); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	rowIdx := 1
	if err := writeRow(f, sheetName, rowIdx, []any{"Date", "Libellé", "Montant"}); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheetName, rowIdx, rowIdx, bold); err != nil {
		return err
	}

	for _, g := range groups {
		rowIdx++
		if err := writeRow(f, sheetName, rowIdx, []any{g.Label}); err != nil {
			return err
		}
		if err := f.SetRowStyle(sheetName, rowIdx, rowIdx, bold); err != nil {
			return err
		}
		for _, item := range g.Items {
			l := line(item)
			rowIdx++
			if err := writeRow(f, sheetName, rowIdx, []any{l.Date, l.Description, l.Amount.InexactFloat64()}); err != nil {
				return err
			}
		}
		rowIdx++
		if err := writeRow(f, sheetName, rowIdx, []any{"", "Sous-total", g.Subtotal.InexactFloat64()}); err != nil {
			return err
		}
	}

	rowIdx++
	if err := writeRow(f, sheetName, rowIdx, []any{"", "Total", history.Total(groups).InexactFloat64()}); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheetName, rowIdx, rowIdx, bold); err != nil {
		return err
	}

	_, err = f.WriteTo(w)
	return err
}
