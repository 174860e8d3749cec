package table

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// LoadXLSX reads one worksheet of an xlsx workbook. When opt.Sheet is empty the
// worksheet at opt.SheetIndex (1-based, default 1) is used.
func LoadXLSX(path string, opt LoadOptions) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()
	return readWorkbook(f, filepath.Base(path), opt)
}

// ReadXLSX reads a workbook from r.
func ReadXLSX(r io.Reader, name string, opt LoadOptions) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()
	return readWorkbook(f, name, opt)
}

// SheetNames lists the worksheets of an xlsx workbook in order.
func SheetNames(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

func readWorkbook(f *excelize.File, name string, opt LoadOptions) (*Table, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook '%s' has no sheets", name)
	}
	target := ""
	if opt.Sheet != "" {
		for _, s := range sheets {
			if strings.EqualFold(s, opt.Sheet) {
				target = s
				break
			}
		}
		if target == "" {
			return nil, fmt.Errorf("sheet '%s' not found in workbook '%s'.\nAvailable sheets: %s",
				opt.Sheet, name, strings.Join(sheets, ", "))
		}
	} else {
		idx := opt.SheetIndex
		if idx <= 0 {
			idx = 1
		}
		if idx > len(sheets) {
			return nil, fmt.Errorf("sheet index %d out of range for workbook '%s' (%d sheets)", idx, name, len(sheets))
		}
		target = sheets[idx-1]
	}
	rows, err := f.GetRows(target)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", target, err)
	}
	// skip leading blank rows to find the header
	for len(rows) > 0 && isBlankRecord(rows[0]) {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return New(name)
	}
	header := rows[0]
	width := len(header)
	var records [][]string
	for _, r := range rows[1:] {
		if isBlankRecord(r) {
			continue
		}
		if len(r) > width {
			width = len(r)
		}
		records = append(records, r)
	}
	for len(header) < width {
		header = append(header, "")
	}
	return FromRecords(name, header, truncate(records, opt.MaxRows))
}
