package table

import (
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var dateLayouts = []string{
	time.RFC3339, "2006-01-02", "2006/01/02", "02.01.2006", "2.1.2006", "02/01/2006", "01/02/2006",
	"2006-01-02 15:04", "2006-01-02 15:04:05", "02.01.2006 15:04", "02.01.2006 15:04:05",
	"1/2/2006 15:04", "1/2/2006 15:04:05", "01-02-06", "1/2/06", "2006-01-02T15:04:05",
}

// ParseDate parses common spreadsheet date renderings in local-naive form.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// CellDate interprets a cell as a date. Numeric cells in the plausible Excel serial
// range (1954..2119) are converted from serial day numbers.
func CellDate(c Cell) (time.Time, bool) {
	switch c.Kind {
	case KindString:
		return ParseDate(c.Str)
	case KindNumber:
		if c.Num >= 20000 && c.Num <= 80000 {
			t, err := excelize.ExcelDateToTime(c.Num, false)
			if err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// Dates parses every cell of col; ok[i] is false for unparseable cells.
func Dates(col Column) (ts []time.Time, ok []bool) {
	ts = make([]time.Time, len(col.Cells))
	ok = make([]bool, len(col.Cells))
	for i, c := range col.Cells {
		ts[i], ok[i] = CellDate(c)
	}
	return ts, ok
}
