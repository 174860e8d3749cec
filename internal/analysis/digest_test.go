package analysis

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/KaramelBytes/shiftlog-cli/internal/table"
)

func mustTable(t *testing.T, header []string, rows [][]string) *table.Table {
	t.Helper()
	tb, err := table.FromRecords("t", header, rows)
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	return tb
}

func TestExtractDuration(t *testing.T) {
	c := table.Column{Name: "Süre", Cells: []table.Cell{
		table.ParseCell("45 dk"), table.ParseCell("~30"), table.ParseCell("no data"), table.ParseCell("twenty"),
	}}
	vals, ok := Durations(c)
	var got []float64
	for i := range vals {
		if ok[i] {
			got = append(got, vals[i])
		}
	}
	if diff := cmp.Diff([]float64{45, 30}, got); diff != "" {
		t.Fatalf("durations mismatch:\n%s", diff)
	}
	if m := mean(got); m != 37.5 {
		t.Fatalf("mean = %v", m)
	}
	if v, ok := ExtractDuration("1,5 saat"); !ok || v != 1.5 {
		t.Fatalf("comma decimal: %v %v", v, ok)
	}
}

func TestAssignRoles(t *testing.T) {
	got := AssignRoles([]string{"Tarih", "Vardiya", "Makine", "Arıza Kategorisi", "Süre (dk)", "Açıklama", "Bakım Notu"}, DefaultRoleRules())
	want := map[Role][]string{
		RoleDate:        {"Tarih"},
		RoleShift:       {"Vardiya"},
		RoleEquipment:   {"Makine"},
		RoleIssue:       {"Arıza Kategorisi"},
		RoleDuration:    {"Süre (dk)"},
		RoleDescription: {"Arıza Kategorisi", "Açıklama", "Bakım Notu"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("roles mismatch:\n%s", diff)
	}
}

func TestBuild_BlocksAreIsolated(t *testing.T) {
	tb := mustTable(t, []string{"Equipment", "Description"}, [][]string{
		{"Kiln", "Burner flame unstable"},
		{"Mill", "Separator vibration"},
	})
	d := NewBuilder(DefaultOptions(), nil).Build(tb)
	gen, ok := d.Block(BlockGeneral)
	if !ok || gen.Omitted {
		t.Fatalf("general block should always render: %+v", gen)
	}
	for _, name := range []string{BlockFreshness, BlockShift, BlockIssue, BlockDuration, BlockTrend} {
		b, _ := d.Block(name)
		if !b.Omitted || b.Reason == "" {
			t.Errorf("block %s should be omitted with a reason, got %+v", name, b)
		}
	}
	text := d.Text()
	for _, want := range []string{"Total records: 2", "Date range: N/A", "- Kiln: 1 records (50%)", "Total = 100%", "1. Burner flame unstable"} {
		if !strings.Contains(text, want) {
			t.Errorf("digest missing %q:\n%s", want, text)
		}
	}
}

func TestBuild_FreshnessCautionOnStaleData(t *testing.T) {
	tb := mustTable(t, []string{"Tarih", "Sorun"}, [][]string{
		{"2021-01-05", "Motor"},
		{"2021-02-05", "Motor"},
	})
	opt := DefaultOptions()
	opt.Now = time.Date(2025, 8, 10, 0, 0, 0, 0, time.UTC)
	d := NewBuilder(opt, nil).Build(tb)
	if !d.Stale {
		t.Fatalf("expected stale digest")
	}
	b, _ := d.Block(BlockFreshness)
	if !strings.Contains(strings.Join(b.Lines, "\n"), "CAUTION") {
		t.Fatalf("expected caution line, got %v", b.Lines)
	}
	gen, _ := d.Block(BlockGeneral)
	if !strings.Contains(strings.Join(gen.Lines, "\n"), "2021-01-05 - 2021-02-05") {
		t.Fatalf("unexpected range: %v", gen.Lines)
	}
}

func TestBuild_TrendAndDurationWindows(t *testing.T) {
	start := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	var rows [][]string
	for i := 0; i < 14; i++ {
		day := start.AddDate(0, 0, i).Format("2006-01-02")
		rows = append(rows, []string{day, "20 dk"})
		if i >= 7 {
			rows = append(rows, []string{day, "40 dk"})
		}
	}
	tb := mustTable(t, []string{"Tarih", "Süre"}, rows)
	opt := DefaultOptions()
	opt.Now = start.AddDate(0, 0, 20)
	d := NewBuilder(opt, nil).Build(tb)

	tr, _ := d.Block(BlockTrend)
	if tr.Omitted {
		t.Fatalf("trend omitted: %s", tr.Reason)
	}
	if want := "- Last 7 days: 14 | Previous 7: 7 | Delta: +7 ↑ (up)"; tr.Lines[0] != want {
		t.Fatalf("trend line = %q", tr.Lines[0])
	}
	du, _ := d.Block(BlockDuration)
	joined := strings.Join(du.Lines, "\n")
	for _, want := range []string{"Mean, last 7 days: 30.0 min (n=14)", "Mean, previous 7 days: 20.0 min (n=7)"} {
		if !strings.Contains(joined, want) {
			t.Errorf("duration block missing %q:\n%s", want, joined)
		}
	}
}

func TestBuild_DurationWindowReportsNoData(t *testing.T) {
	tb := mustTable(t, []string{"Date", "Duration"}, [][]string{{"2025-08-01", "15"}, {"2025-08-02", "25"}})
	d := NewBuilder(DefaultOptions(), nil).Build(tb)
	du, _ := d.Block(BlockDuration)
	if !strings.Contains(strings.Join(du.Lines, "\n"), "Mean, previous 7 days: no data") {
		t.Fatalf("expected no data marker, got %v", du.Lines)
	}
}

func TestExcerptTruncates(t *testing.T) {
	long := strings.Repeat("ç", 250)
	got := Excerpt(long)
	if !strings.HasSuffix(got, "...") || len([]rune(got)) != ExcerptMaxRunes+3 {
		t.Fatalf("unexpected excerpt length %d", len([]rune(got)))
	}
}

func TestComputeTrend_TooFewDays(t *testing.T) {
	var ds []time.Time
	var ok []bool
	for i := 0; i < 13; i++ {
		ds = append(ds, time.Date(2025, 1, i+1, 0, 0, 0, 0, time.UTC))
		ok = append(ok, true)
	}
	if _, got := ComputeTrend(ds, ok); got {
		t.Fatalf("expected no trend with %d days", len(ds))
	}
}
