package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Values spreadsheet exports use for empty cells.
var blankSentinels = map[string]struct{}{
	"nan":  {},
	"nat":  {},
	"none": {},
	"null": {},
	"na":   {},
	"n/a":  {},
	"#n/a": {},
	"<na>": {},
}

// CellText normalises one cell to trimmed text. Blank cells and "not a
// number" sentinels report false.
func CellText(v any) (string, bool) {
	var s string
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		s = val
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return "", false
		}
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", false
		}
		s = strconv.FormatFloat(f, 'f', -1, 32)
	case time.Time:
		if val.IsZero() {
			return "", false
		}
		s = val.Format(time.RFC3339)
	case *time.Time:
		if val == nil || val.IsZero() {
			return "", false
		}
		s = val.Format(time.RFC3339)
	case fmt.Stringer:
		s = val.String()
	default:
		s = fmt.Sprint(val)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if _, ok := blankSentinels[strings.ToLower(s)]; ok {
		return "", false
	}
	return s, true
}

// Excel serials between these bounds (1950-01-01 .. 2100-01-01) are read as dates.
const (
	minExcelSerial = 18264
	maxExcelSerial = 73051
)

// ParseDate interprets a cell as a date. Native time values are returned
// as-is; text is parsed day-first, and bare numbers in a plausible range are
// treated as Excel date serials.
func ParseDate(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		if val.IsZero() {
			return time.Time{}, false
		}
		return val, true
	case *time.Time:
		if val == nil || val.IsZero() {
			return time.Time{}, false
		}
		return *val, true
	case float64:
		return excelSerial(val)
	}
	text, ok := CellText(v)
	if !ok {
		return time.Time{}, false
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		if t, ok := excelSerial(f); ok {
			return t, true
		}
	}
	t, err := dateparse.ParseIn(text, time.UTC, dateparse.PreferMonthFirst(false))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func excelSerial(f float64) (time.Time, bool) {
	if math.IsNaN(f) || f < minExcelSerial || f > maxExcelSerial {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(f, false)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

var priceNoise = strings.NewReplacer("€", "", "$", "", "EUR", "", "eur", "", "Eur", "", " ", "", "\u00a0", "")

// maxPrice bounds amounts to what the numeric(14,2) price column can hold.
var maxPrice = decimal.New(1, 12)

// ParsePrice converts free-form price text into a decimal amount. Both
// "1.234,56" and "1,234.56" are accepted. A lone separator followed by
// exactly three digits is read as a thousands separator ("1.500" is 1500).
// Text with no number, or an amount of more than 12 integer digits,
// reports false.
func ParsePrice(raw string) (decimal.Decimal, bool) {
	s := priceNoise.Replace(strings.TrimSpace(raw))
	if s == "" {
		return decimal.Decimal{}, false
	}
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 != 3 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 || len(s)-lastDot-1 == 3 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.Abs().GreaterThanOrEqual(maxPrice) {
		return decimal.Decimal{}, false
	}
	return d, true
}
