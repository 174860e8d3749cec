package redact_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/KaramelBytes/shiftlog-cli/internal/redact"
	"github.com/KaramelBytes/shiftlog-cli/internal/table"
)

func newClassifier(t *testing.T) *redact.Classifier {
	t.Helper()
	c, err := redact.NewClassifier(redact.DefaultRules(), nil)
	if err != nil {
		t.Fatalf("classifier: %v", err)
	}
	return c
}

func TestClassifyByName(t *testing.T) {
	c := newClassifier(t)
	tests := []struct {
		name string
		want redact.Classification
	}{
		{"email", redact.PersonalByName},
		{"E-mail", redact.PersonalByName},
		{"Telefon", redact.PersonalByName},
		{"Personel", redact.PersonalByName},
		{"Personel.1", redact.PersonalByName},
		{"Personel 2", redact.PersonalByName},
		{"Vardiyacı", redact.Safe},
		{"Birlikte Çalışılan Personel", redact.PersonalByName},
		{"Team Member", redact.PersonalByName},
		{"Description", redact.Safe},
		{"Makine Adı", redact.Safe},
		{"CSO 1", redact.Safe},
		{"Ref", redact.Safe},
		{"Vardiya", redact.Safe},
	}
	for _, tt := range tests {
		if got := c.Classify(tt.name).Class; got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestSafeKeywordWinsOverLoosePersonalWord(t *testing.T) {
	c := newClassifier(t)
	d := c.Classify("Ekipman Name")
	if d.Class != redact.Safe || d.SafeKeyword == "" {
		t.Fatalf("expected safe keyword decision, got %+v", d)
	}
}

func TestSafeKeywordWinsOverPersonnelHint(t *testing.T) {
	c := newClassifier(t)
	for _, name := range []string{"Vardiyacı", "Personel Açıklama"} {
		d := c.Classify(name)
		if d.Class != redact.Safe || d.SafeKeyword == "" || !d.Personnel {
			t.Errorf("Classify(%q) = %+v, want safe keyword decision with personnel hint", name, d)
		}
	}

	tb := buildTable(t, []string{"Personel Açıklama"}, [][]string{{"Ahmet Yılmaz"}, {"Ayşe Kaya"}, {"Mehmet Demir"}})
	r, err := redact.New(redact.DefaultRules(), nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	clean, rep := r.Redact(tb)
	if len(rep.Removed()) != 0 || clean.Width() != 1 {
		t.Fatalf("safe-named column removed: %v", rep.Reasons())
	}
}

func TestClassifyContent(t *testing.T) {
	c := newClassifier(t)
	ids := []string{"12345678901", "23456789012", "34567890123"}
	if s := c.ClassifyContent(ids, "Ref"); !s.Personal {
		t.Fatalf("expected national ids to be personal, got %+v", s)
	}
	emails := []string{"a.user@example.com", "b@plant.com.tr", "c.d@mail.org"}
	if s := c.ClassifyContent(emails, "Contact"); !s.Personal {
		t.Fatalf("expected emails to be personal, got %+v", s)
	}
	names := []string{"Ahmet Yılmaz", "Ayşe Kaya", "Mehmet Demir"}
	if s := c.ClassifyContent(names, "Sorumlu"); !s.Personal {
		t.Fatalf("expected title-case names to be personal, got %+v", s)
	}
	codes := []string{"12:30", "2025-08-01", "#44", "ok", "Kiln Main Drive"}
	if s := c.ClassifyContent(codes, "Kod"); s.Personal {
		t.Fatalf("expected codes to be safe, got %+v", s)
	}
	tech := []string{"Mill Stop Alarm", "Coal Bunker Level", "Fan Trip Fault"}
	if s := c.ClassifyContent(tech, "Olay"); s.Personal {
		t.Fatalf("technical words should suppress the name shape, got %+v", s)
	}
}

func TestClassifyContent_PersonnelThreshold(t *testing.T) {
	c := newClassifier(t)
	// a single first name among five values scores 4/5 = 0.8
	vals := []string{"mehmet gece", "hat temiz", "devir yapıldı", "normal", "kontrol tamam"}
	s := c.ClassifyContent(vals, "Personel Notu")
	if s.Threshold != 0.5 {
		t.Fatalf("expected lowered threshold, got %v", s.Threshold)
	}
	if !s.Personal {
		t.Fatalf("expected personal at 0.8 >= 0.5, got %+v", s)
	}
	s = c.ClassifyContent([]string{"mehmet gece", "hat temiz", "devir yapıldı", "normal", "kontrol tamam", "ok ok"}, "Olay")
	if s.Personal {
		t.Fatalf("expected safe under 0.8 threshold, got %+v", s)
	}
}

func buildTable(t *testing.T, header []string, rows [][]string) *table.Table {
	t.Helper()
	tb, err := table.FromRecords("test", header, rows)
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	return tb
}

func TestRedact_DescriptionKeptDespiteName(t *testing.T) {
	tb := buildTable(t, []string{"Date", "Shift", "Equipment", "Description", "CSO 1"}, [][]string{
		{"2025-08-01", "A", "Kiln", "Mehmet Demir replaced the bearing", "3.1"},
		{"2025-08-02", "B", "Mill", "Vibration high", "3.3"},
		{"2025-08-03", "C", "Mill", "Normal run", "3.0"},
	})
	r, err := redact.New(redact.DefaultRules(), nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	clean, rep := r.Redact(tb)
	if len(rep.Removed()) != 0 {
		t.Fatalf("expected no removals, got %v", rep.Removed())
	}
	if diff := cmp.Diff(tb.ColumnNames(), clean.ColumnNames()); diff != "" {
		t.Fatalf("columns changed:\n%s", diff)
	}
}

func TestRedact_RemovesByNameAndContentAndIsIdempotent(t *testing.T) {
	tb := buildTable(t, []string{"Tarih", "Personel", "Ref", "Olay", "email"}, [][]string{
		{"2025-08-01", "Ali Veli", "12345678901", "Kiln stop", "x@y.com"},
		{"2025-08-02", "Can Er", "23456789012", "Mill trip", "z@y.com"},
	})
	r, err := redact.New(redact.DefaultRules(), nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	clean, rep := r.Redact(tb)
	want := map[string]redact.Reason{"Personel": redact.ReasonName, "Ref": redact.ReasonContent, "email": redact.ReasonName}
	if diff := cmp.Diff(want, rep.Reasons()); diff != "" {
		t.Fatalf("reasons mismatch:\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Tarih", "Olay"}, clean.ColumnNames()); diff != "" {
		t.Fatalf("kept columns mismatch:\n%s", diff)
	}
	again, rep2 := r.Redact(clean)
	if len(rep2.Removed()) != 0 || again.Width() != clean.Width() {
		t.Fatalf("second pass removed %v", rep2.Removed())
	}
	if clean.Rows() != 2 {
		t.Fatalf("rows = %d", clean.Rows())
	}
}

func TestRedact_WarnsOnUnknownCellKind(t *testing.T) {
	tb, err := table.New("t", table.Column{Name: "Weird", Cells: []table.Cell{{Kind: table.Kind(9)}}})
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	r, _ := redact.New(redact.DefaultRules(), nil)
	clean, rep := r.Redact(tb)
	if len(rep.Warnings()) != 1 || clean.Width() != 1 {
		t.Fatalf("expected one warning and the column kept, got %+v", rep.Warnings())
	}
}

func TestLoadRulesOverridesLists(t *testing.T) {
	p := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(p, []byte("strict_keywords: [badge]\nthreshold: 0.9\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	rules, err := redact.LoadRules(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff([]string{"badge"}, rules.StrictKeywords); diff != "" {
		t.Fatalf("strict mismatch:\n%s", diff)
	}
	if rules.Threshold != 0.9 || rules.PersonnelThreshold != 0.5 || len(rules.SafeKeywords) == 0 {
		t.Fatalf("unexpected merge result: %+v", rules)
	}
	c, err := redact.NewClassifier(rules, nil)
	if err != nil {
		t.Fatalf("classifier: %v", err)
	}
	if c.Classify("badge").Class != redact.PersonalByName {
		t.Fatalf("expected override keyword to apply")
	}
}

func TestNewClassifierRejectsBadPattern(t *testing.T) {
	rules := redact.DefaultRules()
	rules.DefinitePatterns = []string{"("}
	if _, err := redact.NewClassifier(rules, nil); err == nil {
		t.Fatalf("expected compile error")
	}
}
