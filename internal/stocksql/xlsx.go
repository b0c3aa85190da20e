package stocksql

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"bosim/internal/model"
)

// WriteXLSX exports rows as a single-sheet workbook with a header row.
func WriteXLSX(w io.Writer, rows []model.StockRow) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	header := make([]interface{}, 0, len(Columns))
	for _, c := range Columns {
		header = append(header, c)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("xlsx header: %w", err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("xlsx cell: %w", err)
		}
		row := []interface{}{r.ProductID, r.ProductUUID, r.WebshopID, r.WebshopUUID, r.OnHand, r.Date}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("xlsx row %d: %w", i, err)
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}
