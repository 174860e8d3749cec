package analysis

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTopNNormalized_IssueVariantsMerge(t *testing.T) {
	vals := []string{"Overheating", "overheating ", "OVERHEATING", "Jam"}
	for i, v := range vals {
		vals[i] = lowerTrim(v)
	}
	got := TopNNormalized(vals, 10)
	want := []Entry{{Label: "overheating", Count: 3, Percent: 75}, {Label: "jam", Count: 1, Percent: 25}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("distribution mismatch (-want +got):\n%s", diff)
	}
}

func TestTopNNormalized_EmptyAndNullTokens(t *testing.T) {
	if got := TopNNormalized(nil, 10); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
	if got := TopNNormalized([]string{"", "nan", "N/A", "-", "yok", "x", "  "}, 10); len(got) != 0 {
		t.Fatalf("expected null-like tokens to be dropped, got %v", got)
	}
}

func TestTopNNormalized_ThirdsCloseOnLastEntry(t *testing.T) {
	got := TopNNormalized([]string{"aa", "bb", "cc"}, 10)
	want := []Entry{{"aa", 1, 33}, {"bb", 1, 33}, {"cc", 1, 34}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch:\n%s", diff)
	}
}

func TestTopNNormalized_OtherBucket(t *testing.T) {
	vals := []string{"kiln", "kiln", "kiln", "mill", "mill", "fan1", "pump"}
	got := TopNNormalized(vals, 2)
	if len(got) != 3 || got[2].Label != OtherLabel || got[2].Count != 2 {
		t.Fatalf("expected Other bucket with 2 rows, got %+v", got)
	}
	if PercentTotal(got) != 100 {
		t.Fatalf("percent total = %d", PercentTotal(got))
	}
}

func TestTopNNormalized_AlwaysSumsTo100(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for trial := 0; trial < 200; trial++ {
		var vals []string
		n := 1 + r.Intn(300)
		for i := 0; i < n; i++ {
			vals = append(vals, fmt.Sprintf("item-%d", r.Intn(25)))
		}
		topN := 1 + r.Intn(12)
		got := TopNNormalized(vals, topN)
		if PercentTotal(got) != 100 {
			t.Fatalf("trial %d: total %d for %+v", trial, PercentTotal(got), got)
		}
	}
}

func TestTopNCounts_TiesKeepFirstSeenOrder(t *testing.T) {
	got := TopNCounts([]string{"Gece", "Sabah", "Akşam", "Sabah", "Gece"}, 10)
	want := []Entry{{Label: "Gece", Count: 2}, {Label: "Sabah", Count: 2}, {Label: "Akşam", Count: 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch:\n%s", diff)
	}
}

func TestCleanValueCollapsesWhitespace(t *testing.T) {
	v, ok := CleanValue("  Motor   arızası \n")
	if !ok || v != "Motor arızası" {
		t.Fatalf("got %q %v", v, ok)
	}
}
