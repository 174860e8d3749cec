package table

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the scalar type stored in a Cell.
type Kind int

const (
	KindMissing Kind = iota
	KindString
	KindNumber
)

func (k Kind) String() string {
	switch k {
	case KindMissing:
		return "missing"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Cell is a single spreadsheet value: a string, a number, or missing.
// Numbers keep the raw text they were parsed from so IDs like "007" survive.
type Cell struct {
	Kind Kind
	Str  string
	Num  float64
}

// Missing returns an empty cell.
func Missing() Cell { return Cell{Kind: KindMissing} }

// String returns a text cell.
func String(s string) Cell { return Cell{Kind: KindString, Str: s} }

// Number returns a numeric cell.
func Number(f float64) Cell { return Cell{Kind: KindNumber, Num: f} }

// IsMissing reports whether the cell holds no value.
func (c Cell) IsMissing() bool { return c.Kind == KindMissing }

// Text renders the cell as a string; missing cells render as "".
func (c Cell) Text() string {
	switch c.Kind {
	case KindString:
		return c.Str
	case KindNumber:
		if c.Str != "" {
			return c.Str
		}
		return strconv.FormatFloat(c.Num, 'f', -1, 64)
	default:
		return ""
	}
}

// ParseCell converts a raw spreadsheet value into a Cell. Blank values are missing;
// plain decimal numbers become numeric cells; everything else is text.
func ParseCell(raw string) Cell {
	v := strings.TrimSpace(raw)
	if v == "" {
		return Missing()
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return Cell{Kind: KindNumber, Num: f, Str: v}
	}
	return String(raw)
}

// Column is a named, ordered sequence of cells.
type Column struct {
	Name  string
	Cells []Cell
}

// NonMissing returns the text of the first limit non-missing cells (limit <= 0 means all).
func (c Column) NonMissing(limit int) []string {
	var out []string
	for _, cell := range c.Cells {
		if cell.IsMissing() {
			continue
		}
		out = append(out, cell.Text())
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Table is an ordered set of uniquely named columns of equal length.
type Table struct {
	Name string
	cols []Column
	rows int
}

// New validates and builds a table. Column names must be unique and every
// column must hold the same number of cells.
func New(name string, cols ...Column) (*Table, error) {
	seen := make(map[string]bool, len(cols))
	rows := -1
	for _, c := range cols {
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate column name %q", c.Name)
		}
		seen[c.Name] = true
		if rows == -1 {
			rows = len(c.Cells)
		} else if len(c.Cells) != rows {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", c.Name, len(c.Cells), rows)
		}
	}
	if rows < 0 {
		rows = 0
	}
	cp := make([]Column, len(cols))
	copy(cp, cols)
	return &Table{Name: name, cols: cp, rows: rows}, nil
}

// FromRecords builds a table from a header row and string records. Short records are
// padded with missing cells, duplicate headers get ".N" suffixes, and blank headers
// become "Unnamed: N".
func FromRecords(name string, header []string, records [][]string) (*Table, error) {
	names := UniqueHeaders(header)
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = Column{Name: n, Cells: make([]Cell, 0, len(records))}
	}
	for _, rec := range records {
		for j := range cols {
			if j < len(rec) {
				cols[j].Cells = append(cols[j].Cells, ParseCell(rec[j]))
			} else {
				cols[j].Cells = append(cols[j].Cells, Missing())
			}
		}
	}
	return New(name, cols...)
}

// UniqueHeaders normalizes a header row the way spreadsheet readers commonly do.
func UniqueHeaders(header []string) []string {
	out := make([]string, len(header))
	counts := map[string]int{}
	used := map[string]bool{}
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		base := h
		for used[h] {
			counts[base]++
			h = fmt.Sprintf("%s.%d", base, counts[base])
		}
		used[h] = true
		out[i] = h
	}
	return out
}

// Rows returns the row count.
func (t *Table) Rows() int { return t.rows }

// Width returns the column count.
func (t *Table) Width() int { return len(t.cols) }

// Columns returns the columns in order. The slice is a copy; cells are shared.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.cols))
	copy(out, t.cols)
	return out
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.Name
	}
	return out
}

// Column looks up a column by exact name.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.cols {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Without returns a new table lacking the named columns.
func (t *Table) Without(names ...string) *Table {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	kept := make([]Column, 0, len(t.cols))
	for _, c := range t.cols {
		if !drop[c.Name] {
			kept = append(kept, c)
		}
	}
	out, _ := New(t.Name, kept...)
	if len(kept) == 0 {
		out.rows = t.rows
	}
	return out
}

// FilterRows returns a new table containing only rows for which keep returns true.
func (t *Table) FilterRows(keep func(row int) bool) *Table {
	idx := make([]int, 0, t.rows)
	for i := 0; i < t.rows; i++ {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	cols := make([]Column, len(t.cols))
	for j, c := range t.cols {
		cells := make([]Cell, len(idx))
		for k, i := range idx {
			cells[k] = c.Cells[i]
		}
		cols[j] = Column{Name: c.Name, Cells: cells}
	}
	return &Table{Name: t.Name, cols: cols, rows: len(idx)}
}

// Row returns the text of every cell in row i.
func (t *Table) Row(i int) []string {
	out := make([]string, len(t.cols))
	for j, c := range t.cols {
		out[j] = c.Cells[i].Text()
	}
	return out
}
