package analytics

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const stockSheet = "Stock"

var stockHeader = []string{"Code", "Product", "In stock", "Reorder at", "Buy price", "Sell price", "Margin / unit", "Low stock"}

// WriteStockXLSX renders report as a single-sheet workbook.
func WriteStockXLSX(w io.Writer, report StockReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", stockSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for col, title := range stockHeader {
		if err := setCell(f, col+1, 1, title); err != nil {
			return err
		}
	}
	for i, row := range report.Rows {
		r := i + 2
		buy, _ := row.PurchasePrice.Round(2).Float64()
		sell, _ := row.SellPrice.Round(2).Float64()
		margin, _ := row.MarginPerUnit.Round(2).Float64()
		low := ""
		if row.LowStock {
			low = "yes"
		}
		values := []any{row.Code, row.Name, row.Stock, row.ReorderLevel, buy, sell, margin, low}
		for col, v := range values {
			if err := setCell(f, col+1, r, v); err != nil {
				return err
			}
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, col, row int, v any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(stockSheet, cell, v)
}
