package table_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/KaramelBytes/shiftlog-cli/internal/table"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestNewRejectsDuplicateAndRaggedColumns(t *testing.T) {
	_, err := table.New("x",
		table.Column{Name: "a", Cells: []table.Cell{table.String("1")}},
		table.Column{Name: "a", Cells: []table.Cell{table.String("2")}},
	)
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	_, err = table.New("x",
		table.Column{Name: "a", Cells: []table.Cell{table.String("1")}},
		table.Column{Name: "b", Cells: nil},
	)
	if err == nil {
		t.Fatalf("expected row count error")
	}
}

func TestUniqueHeaders(t *testing.T) {
	got := table.UniqueHeaders([]string{"Personel", "Personel", " ", "Personel", "Tarih"})
	want := []string{"Personel", "Personel.1", "Unnamed: 2", "Personel.2", "Tarih"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("headers mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadCSV_SniffsSemicolonAndParsesCells(t *testing.T) {
	p := writeFile(t, "log.csv", "Tarih;Makine;Süre\n2025-08-01;Mill 1;45\n2025-08-02;;007\n\n")
	tb, err := table.Load(p, table.LoadOptions{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tb.Rows() != 2 || tb.Width() != 3 {
		t.Fatalf("unexpected shape %dx%d", tb.Rows(), tb.Width())
	}
	m, _ := tb.Column("Makine")
	if !m.Cells[1].IsMissing() {
		t.Fatalf("expected missing cell, got %+v", m.Cells[1])
	}
	s, _ := tb.Column("Süre")
	if s.Cells[1].Kind != table.KindNumber || s.Cells[1].Text() != "007" {
		t.Fatalf("expected numeric cell keeping raw text, got %+v", s.Cells[1])
	}
}

func TestValidate(t *testing.T) {
	if err := table.Validate(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Fatalf("expected not found")
	}
	p := writeFile(t, "notes.txt", "hello")
	if err := table.Validate(p); err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("expected unsupported format, got %v", err)
	}
	e := writeFile(t, "empty.csv", "")
	if err := table.Validate(e); err == nil {
		t.Fatalf("expected empty file error")
	}
}

func TestWriteAndLoadXLSX(t *testing.T) {
	src, err := table.FromRecords("s", []string{"Tarih", "Ekipman", "Süre"}, [][]string{
		{"2025-08-01", "Kiln", "30"},
		{"2025-08-02", "Mill", ""},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	p := filepath.Join(t.TempDir(), "out.xlsx")
	if err := table.Save(src, p); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := table.Load(p, table.LoadOptions{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(src.ColumnNames(), got.ColumnNames()); diff != "" {
		t.Fatalf("columns mismatch:\n%s", diff)
	}
	if got.Rows() != 2 {
		t.Fatalf("rows = %d", got.Rows())
	}
	e, _ := got.Column("Ekipman")
	if e.Cells[1].Text() != "Mill" {
		t.Fatalf("unexpected cell %q", e.Cells[1].Text())
	}
	if _, err := table.LoadXLSX(p, table.LoadOptions{Sheet: "Missing"}); err == nil || !strings.Contains(err.Error(), "Available sheets") {
		t.Fatalf("expected sheet listing error, got %v", err)
	}
}

func TestDetectDateColumnsAndFilter(t *testing.T) {
	tb, err := table.FromRecords("s", []string{"Gün", "Not"}, [][]string{
		{"01.08.2025", "a"},
		{"05.08.2025", "b"},
		{"10.08.2025", "c"},
		{"bozuk", "d"},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if diff := cmp.Diff([]string{"Gün"}, table.DetectDateColumns(tb)); diff != "" {
		t.Fatalf("date columns mismatch:\n%s", diff)
	}
	r := table.DateRange{From: time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC), To: time.Date(2025, 8, 10, 0, 0, 0, 0, time.UTC)}
	out, err := table.FilterByDate(tb, "", r)
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	n, _ := out.Column("Not")
	if diff := cmp.Diff([]string{"b", "c"}, n.NonMissing(0)); diff != "" {
		t.Fatalf("filtered rows mismatch:\n%s", diff)
	}
}

func TestLastDays(t *testing.T) {
	now := time.Date(2025, 8, 10, 15, 0, 0, 0, time.UTC)
	r := table.LastDays(now, 7)
	if !r.Contains(time.Date(2025, 8, 4, 0, 0, 0, 0, time.UTC)) || r.Contains(time.Date(2025, 8, 3, 23, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected range %+v", r)
	}
	if !r.Contains(time.Date(2025, 8, 10, 23, 59, 0, 0, time.UTC)) {
		t.Fatalf("range should include the whole final day")
	}
}

func TestCellDateFromSerial(t *testing.T) {
	d, ok := table.CellDate(table.Number(45870))
	if !ok {
		t.Fatalf("expected serial date to parse")
	}
	if d.Year() != 2025 || d.Month() != time.August || d.Day() != 1 {
		t.Fatalf("unexpected date %v", d)
	}
}
