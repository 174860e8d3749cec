package prompt

import (
	"fmt"
	"sort"
	"strings"
)

// Section is a report section the user can request.
type Section struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	// Default sections are requested when the caller names none.
	Default bool `json:"default"`
}

var catalog = []Section{
	{Key: "summary", Label: "Executive Summary", Default: true},
	{Key: "scorecard", Label: "Performance Scorecard", Default: true},
	{Key: "root-cause", Label: "Root Cause Analysis", Default: true},
	{Key: "trends", Label: "Time Trends and Risk Outlook", Default: true},
	{Key: "action-plan", Label: "SMART Action Plan", Default: true},
	{Key: "action-board", Label: "Manager Action Board", Default: true},
	{Key: "impact", Label: "Operational Impact Assessment"},
	{Key: "roadmap", Label: "Implementation Roadmap"},
	{Key: "quality", Label: "Quality Parameters Review"},
}

// Catalog returns every known section in display order.
func Catalog() []Section { return append([]Section(nil), catalog...) }

// DefaultSections returns the sections used when none are requested.
func DefaultSections() []Section {
	var out []Section
	for _, s := range catalog {
		if s.Default {
			out = append(out, s)
		}
	}
	return out
}

// ResolveSections maps keys or labels (case-insensitive) to sections, preserving order
// and dropping duplicates. Unknown names are rejected. An empty input yields the defaults.
func ResolveSections(names []string) ([]Section, error) {
	if len(names) == 0 {
		return DefaultSections(), nil
	}
	seen := map[string]bool{}
	var out []Section
	var unknown []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		s, ok := lookup(n)
		if !ok {
			unknown = append(unknown, n)
			continue
		}
		if !seen[s.Key] {
			seen[s.Key] = true
			out = append(out, s)
		}
	}
	if len(unknown) > 0 {
		keys := make([]string, 0, len(catalog))
		for _, s := range catalog {
			keys = append(keys, s.Key)
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("unknown section(s) %s (available: %s)", strings.Join(unknown, ", "), strings.Join(keys, ", "))
	}
	if len(out) == 0 {
		return DefaultSections(), nil
	}
	return out, nil
}

func lookup(name string) (Section, bool) {
	for _, s := range catalog {
		if strings.EqualFold(s.Key, name) || strings.EqualFold(s.Label, name) {
			return s, true
		}
	}
	return Section{}, false
}
