package table

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Save writes t to path as xlsx or csv depending on the extension.
func Save(t *Table, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return WriteXLSX(t, path)
	case ".csv", ".tsv":
		return WriteCSV(t, path)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// WriteXLSX writes t to a single-sheet workbook. Numeric cells stay numeric.
func WriteXLSX(t *Table, path string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for j, name := range t.ColumnNames() {
		cell, err := excelize.CoordinatesToCellName(j+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	for j, c := range t.Columns() {
		for i, v := range c.Cells {
			if v.IsMissing() {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return err
			}
			var val any = v.Text()
			if v.Kind == KindNumber {
				val = v.Num
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return fmt.Errorf("write %s: %w", cell, err)
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save xlsx: %w", err)
	}
	return nil
}

// WriteCSV writes t as comma-separated text with a header row (tab for .tsv).
func WriteCSV(t *Table, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	w := csv.NewWriter(f)
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		w.Comma = '\t'
	}
	if err := w.Write(t.ColumnNames()); err != nil {
		f.Close()
		return err
	}
	for i := 0; i < t.Rows(); i++ {
		if err := w.Write(t.Row(i)); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write csv: %w", err)
	}
	return f.Close()
}
