package report

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const sampleResponse = `📊 DAILY SUMMARY
Kiln 1 ran stable.
Two stoppages on cement mill 2.
⚠️ ISSUES
- Overheating on ÇD2 (%60)
- Belt jam %40
stray line
✅ SOLUTIONS
• Cooling check
🎯 RECOMMENDATIONS
- Add vibration sensor
📈 TREND
Stoppages rising.`

func TestParseSections(t *testing.T) {
	r := Parse(sampleResponse)
	if got := r.TextOf(SectionSummary); got != "Kiln 1 ran stable.\nTwo stoppages on cement mill 2." {
		t.Fatalf("summary: %q", got)
	}
	if diff := cmp.Diff([]string{"Overheating on ÇD2 (%60)", "Belt jam %40"}, r.Items(SectionIssues)); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Cooling check"}, r.Items(SectionSolutions)); diff != "" {
		t.Fatalf("solutions mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Add vibration sensor"}, r.Items(SectionRecommendations)); diff != "" {
		t.Fatalf("recommendations mismatch (-want +got):\n%s", diff)
	}
	if got := r.TextOf(SectionTrend); got != "Stoppages rising." {
		t.Fatalf("trend: %q", got)
	}
	if r.Text != "stray line" {
		t.Fatalf("catch-all: %q", r.Text)
	}
	if total, ok := r.PercentTotal(); !ok || total != 100 {
		t.Fatalf("percent total %d ok=%v", total, ok)
	}
	if r.PercentCheck() != "Raw percent total: 100%" {
		t.Fatalf("unexpected diagnostic %q", r.PercentCheck())
	}
}

func TestParseEachMarker(t *testing.T) {
	cases := []struct {
		heading string
		section string
	}{
		{"📊 Günlük özet", SectionSummary},
		{"GÜNLÜK ÖZET", SectionSummary},
		{"## Executive Summary", SectionSummary},
		{"⚠️ Sorunlar", SectionIssues},
		{"SORUNLAR", SectionIssues},
		{"## Root Cause Analysis", SectionIssues},
		{"✅ Çözümler", SectionSolutions},
		{"ÇÖZÜMLER", SectionSolutions},
		{"🎯 Öneriler", SectionRecommendations},
		{"ÖNERİLER", SectionRecommendations},
		{"## SMART Action Plan", SectionRecommendations},
		{"## Manager Action Board", SectionRecommendations},
		{"📈 Trend", SectionTrend},
		{"## Time Trends and Risk Outlook", SectionTrend},
	}
	for _, c := range cases {
		r := Parse(c.heading + "\n- x")
		sec, ok := r.Section(c.section)
		if !ok {
			t.Fatalf("%q: section %s missing", c.heading, c.section)
		}
		switch sec.Kind {
		case KindList:
			if diff := cmp.Diff([]string{"x"}, sec.Items); diff != "" {
				t.Errorf("%q: items mismatch (-want +got):\n%s", c.heading, diff)
			}
		case KindText:
			if sec.Text != "- x" {
				t.Errorf("%q: text %q", c.heading, sec.Text)
			}
		}
		if r.Text != "" {
			t.Errorf("%q: unexpected catch-all %q", c.heading, r.Text)
		}
	}
}

func TestParseWithoutMarkers(t *testing.T) {
	in := "Just prose\nno markers here\n## Performance Scorecard"
	r := Parse(in)
	if !r.Empty() {
		t.Fatalf("expected no recognized sections: %+v", r.Sections)
	}
	if r.Text != in {
		t.Fatalf("catch-all should hold everything, got %q", r.Text)
	}
	if _, ok := r.PercentTotal(); ok {
		t.Fatal("no percentages expected")
	}
}

func TestCustomMarkers(t *testing.T) {
	p, err := NewParser([]Marker{{Section: "kpi", Kind: KindList, Tokens: []string{"KPI"}}})
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}
	r := p.Parse("KPI\n- OEE 81%\n📊 not a marker here")
	if diff := cmp.Diff([]string{"OEE 81%"}, r.Items("kpi")); diff != "" {
		t.Fatalf("kpi mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{81}, r.Percents); diff != "" {
		t.Fatalf("percents mismatch (-want +got):\n%s", diff)
	}

	bad := [][]Marker{
		{{Section: "", Kind: KindList, Tokens: []string{"A"}}},
		{{Section: "a", Kind: "table", Tokens: []string{"A"}}},
		{{Section: "a", Kind: KindText}},
		{{Section: "a", Kind: KindText, Tokens: []string{"A"}}, {Section: "a", Kind: KindList, Tokens: []string{"B"}}},
	}
	for i, m := range bad {
		if _, err := NewParser(m); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

func TestPercentDiagnostic(t *testing.T) {
	r := Parse("a %15 b %20\nc 30% and 12.5% and %250\nd 1175%")
	if diff := cmp.Diff([]int{15, 20, 30, 250}, r.Percents); diff != "" {
		t.Fatalf("percents mismatch (-want +got):\n%s", diff)
	}
	if total, _ := r.PercentTotal(); total != 65 {
		t.Fatalf("expected out-of-range values ignored, got %d", total)
	}
}

func TestFromResponse(t *testing.T) {
	raw := "📊 SUMMARY\nCost 5000 TL\n⚠️ ISSUES\n- Jam (%0)"
	r := FromResponse(nil, raw, Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15})
	if r.Raw != raw {
		t.Fatal("raw text must be kept untouched")
	}
	if r.TextOf(SectionSummary) != "Cost 5000" {
		t.Fatalf("summary %q", r.TextOf(SectionSummary))
	}
	if diff := cmp.Diff([]string{"Jam (≈<1%)"}, r.Items(SectionIssues)); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}
	if r.Usage.TotalTokens != 15 {
		t.Fatalf("usage %+v", r.Usage)
	}
}

func TestJSONSchemaAndDigest(t *testing.T) {
	r := FromResponse(nil, sampleResponse, Usage{TotalTokens: 42})
	b, err := r.JSON()
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	if err := ValidateJSON(b); err != nil {
		t.Fatalf("valid report rejected: %v", err)
	}
	if err := ValidateJSON([]byte(`{"sections":"x","raw":"","sanitized":"","usage":{}}`)); err == nil {
		t.Fatal("expected schema failure")
	}

	d1, err := Digest(r)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	d2, _ := Digest(FromResponse(nil, sampleResponse, Usage{TotalTokens: 42}))
	if d1 != d2 || len(d1) != 64 {
		t.Fatalf("digest not stable: %s vs %s", d1, d2)
	}
	d3, _ := Digest(FromResponse(nil, sampleResponse+"\nextra", Usage{TotalTokens: 42}))
	if d3 == d1 {
		t.Fatal("digest should change with content")
	}
}

func TestManagerSummary(t *testing.T) {
	var b strings.Builder
	b.WriteString("📊 SUMMARY\nAll kilns online.\n⚠️ ISSUES\n")
	for i := 1; i <= 6; i++ {
		b.WriteString("- issue " + string(rune('0'+i)) + "\n")
	}
	b.WriteString("🎯 RECOMMENDATIONS\n- rec 1\n- rec 2\n- rec 3\n- rec 4\n")
	r := FromResponse(nil, b.String(), Usage{TotalTokens: 1500, EstimatedCostUSD: 0.0123})

	out := ManagerSummary(r, SummaryOptions{Period: "weekly", Now: time.Date(2025, 8, 7, 9, 30, 0, 0, time.UTC)})
	for _, want := range []string{
		"📅 Report type: Weekly",
		"🕐 Generated: 07.08.2025 09:30",
		"All kilns online.",
		"⚠️ CRITICAL ISSUES (6):",
		"5. issue 5",
		"🎯 PRIORITY ACTIONS (4):",
		"3. rec 3",
		"- Token usage: 1500",
		"- Estimated cost: $0.0123",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "issue 6") || strings.Contains(out, "rec 4") {
		t.Errorf("summary should cap issues at 5 and actions at 3:\n%s", out)
	}
}
