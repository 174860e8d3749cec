package table

import (
	"fmt"
	"strings"
	"time"
)

var dateNameHints = []string{"tarih", "date", "zaman", "time", "gün", "gun", "day"}

// DetectDateColumns returns columns that look like dates: either the name carries
// a date hint, or at least 80% of the first five non-missing values parse as dates.
func DetectDateColumns(t *Table) []string {
	var out []string
	for _, c := range t.Columns() {
		if looksLikeDateColumn(c) {
			out = append(out, c.Name)
		}
	}
	return out
}

func looksLikeDateColumn(c Column) bool {
	sample := 0
	parsed := 0
	for _, cell := range c.Cells {
		if cell.IsMissing() {
			continue
		}
		sample++
		if _, ok := CellDate(cell); ok {
			parsed++
		}
		if sample == 5 {
			break
		}
	}
	if sample > 0 && float64(parsed)/float64(sample) >= 0.8 {
		return true
	}
	if sample == 0 {
		return false
	}
	lower := strings.ToLower(c.Name)
	for _, h := range dateNameHints {
		if strings.Contains(lower, h) && parsed > 0 {
			return true
		}
	}
	return false
}

// DateRange bounds a filter; zero values are open ends. To is inclusive of its whole day.
type DateRange struct {
	From time.Time
	To   time.Time
}

// LastDays returns the range covering the n days up to and including now.
func LastDays(now time.Time, n int) DateRange {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return DateRange{From: day.AddDate(0, 0, -(n - 1)), To: day}
}

// Contains reports whether d falls inside the range.
func (r DateRange) Contains(d time.Time) bool {
	if !r.From.IsZero() && d.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !d.Before(r.To.AddDate(0, 0, 1)) {
		return false
	}
	return true
}

// FilterByDate keeps rows whose date in column col falls within r. Rows with
// unparseable dates are dropped. When col is empty the first detected date column is used.
func FilterByDate(t *Table, col string, r DateRange) (*Table, error) {
	if col == "" {
		cands := DetectDateColumns(t)
		if len(cands) == 0 {
			return nil, fmt.Errorf("no date column found in %s", t.Name)
		}
		col = cands[0]
	}
	c, ok := t.Column(col)
	if !ok {
		return nil, fmt.Errorf("column %q not found", col)
	}
	ts, valid := Dates(c)
	return t.FilterRows(func(i int) bool {
		return valid[i] && r.Contains(ts[i])
	}), nil
}
