package analysis

import (
	"math"
	"sort"
	"strings"
)

// OtherLabel names the synthetic bucket for values outside the top N.
const OtherLabel = "Other"

// Entry is one row of a categorical breakdown.
type Entry struct {
	Label   string `json:"label"`
	Count   int    `json:"count"`
	Percent int    `json:"percent"`
}

var nullTokens = map[string]bool{
	"": true, "nan": true, "none": true, "null": true, "nil": true, "n/a": true, "na": true,
	"-": true, "--": true, "yok": true, "boş": true, "bos": true, "nat": true, "?": true,
}

// CleanValue trims and collapses whitespace and rejects null-like or single-character tokens.
func CleanValue(s string) (string, bool) {
	v := strings.Join(strings.Fields(s), " ")
	if nullTokens[strings.ToLower(v)] {
		return "", false
	}
	if len([]rune(v)) < 2 {
		return "", false
	}
	return v, true
}

// counted tallies cleaned values, ordered by count descending with first-seen order on ties.
func counted(values []string) (entries []Entry, total int) {
	idx := map[string]int{}
	for _, raw := range values {
		v, ok := CleanValue(raw)
		if !ok {
			continue
		}
		total++
		if i, seen := idx[v]; seen {
			entries[i].Count++
			continue
		}
		idx[v] = len(entries)
		entries = append(entries, Entry{Label: v, Count: 1})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Count > entries[j].Count })
	return entries, total
}

// TopNCounts returns the n most frequent cleaned values with raw counts only.
func TopNCounts(values []string, n int) []Entry {
	entries, _ := counted(values)
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// TopNNormalized returns the n most frequent cleaned values with integer percentages
// that sum to exactly 100. The rounding remainder goes to the last top-N entry; values
// outside the top N are reported as an Other entry carrying whatever percentage is left.
func TopNNormalized(values []string, n int) []Entry {
	entries, total := counted(values)
	if total == 0 {
		return nil
	}
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	out := make([]Entry, len(entries))
	copy(out, entries)
	sumCounts, sumPct := 0, 0
	for i := range out {
		out[i].Percent = int(math.Round(float64(out[i].Count) * 100 / float64(total)))
		sumCounts += out[i].Count
		sumPct += out[i].Percent
	}
	out[len(out)-1].Percent += 100 - sumPct
	if others := total - sumCounts; others > 0 {
		assigned := 0
		for _, e := range out {
			assigned += e.Percent
		}
		out = append(out, Entry{Label: OtherLabel, Count: others, Percent: max(0, 100-assigned)})
	}
	return out
}

// PercentTotal sums the percentages of a breakdown.
func PercentTotal(entries []Entry) int {
	s := 0
	for _, e := range entries {
		s += e.Percent
	}
	return s
}
