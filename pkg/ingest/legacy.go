package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/extrame/xls"
)

// oleMagic opens every OLE2 compound file, the container of BIFF .xls
// workbooks.
var oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// BIFF8 sheets have at most 256 columns.
const legacyMaxCols = 256

func isLegacyWorkbook(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	head := make([]byte, len(oleMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		return false
	}
	return bytes.Equal(head, oleMagic)
}

// readLegacyWorkbook feeds the data rows of the first sheet of a BIFF .xls
// workbook to fn. Cells arrive as text: numbers (and date serials stored as
// numbers) in their decimal form, labels as written.
func readLegacyWorkbook(path string, fn RowFunc) (int, error) {
	rows, err := legacyRows(path)
	if err != nil {
		return 0, fmt.Errorf("open workbook: %w", err)
	}
	dataRows := 0
	for _, r := range rows {
		if r.num == 1 {
			continue
		}
		dataRows++
		if err := fn(r.num, r.values); err != nil {
			return dataRows, fmt.Errorf("row %d: %w", r.num, err)
		}
	}
	return dataRows, nil
}

type legacyRow struct {
	num    int
	values []any
}

// legacyRows loads the first sheet. The xls decoder panics on some damaged
// files; those panics are returned as errors.
func legacyRows(path string) (rows []legacyRow, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, fmt.Errorf("malformed xls: %v", r)
		}
	}()

	wb, err := xls.OpenReader(f, "utf-8")
	if err != nil {
		return nil, err
	}
	if wb == nil {
		return nil, errors.New("no workbook stream in file")
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, errors.New("workbook has no sheets")
	}
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheetRow(sheet, i)
		if row == nil {
			continue
		}
		rows = append(rows, legacyRow{num: i + 1, values: rowValues(row)})
	}
	return rows, nil
}

// sheetRow returns nil for rows the sheet does not store.
func sheetRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}

func rowValues(row *xls.Row) []any {
	cells := make([]string, legacyMaxCols)
	last := -1
	for c := 0; c < legacyMaxCols; c++ {
		cells[c] = row.Col(c)
		if strings.TrimSpace(cells[c]) != "" {
			last = c
		}
	}
	values := make([]any, last+1)
	for c := range values {
		values[c] = cells[c]
	}
	return values
}
