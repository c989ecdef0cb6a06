package ingest

import (
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// RowFunc receives the 1-based sheet row number and the row's cell values.
// Returning an error stops the read.
type RowFunc func(row int, values []any) error

// ReadWorkbook streams the data rows of the first sheet of an .xlsx/.xlsm
// file, or of a legacy BIFF .xls workbook. The first row is treated as the
// header and skipped. Cells are read raw, so date cells arrive as Excel
// serial numbers.
func ReadWorkbook(path string, fn RowFunc) (int, error) {
	if isLegacyWorkbook(path) {
		return readLegacyWorkbook(path, fn)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return 0, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return 0, errors.New("workbook has no sheets")
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		return 0, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	defer rows.Close()

	rowNum := 0
	dataRows := 0
	for rows.Next() {
		rowNum++
		cols, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return dataRows, fmt.Errorf("read row %d: %w", rowNum, err)
		}
		if rowNum == 1 {
			continue
		}
		values := make([]any, len(cols))
		for i, c := range cols {
			values[i] = c
		}
		dataRows++
		if err := fn(rowNum, values); err != nil {
			return dataRows, fmt.Errorf("row %d: %w", rowNum, err)
		}
	}
	if err := rows.Error(); err != nil {
		return dataRows, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return dataRows, nil
}
