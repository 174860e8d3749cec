package report

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SectionKind says whether a section collects bullets or free text.
type SectionKind string

const (
	KindText SectionKind = "text"
	KindList SectionKind = "list"
)

// Section names produced by the default marker table.
const (
	SectionSummary         = "summary"
	SectionIssues          = "issues"
	SectionSolutions       = "solutions"
	SectionRecommendations = "recommendations"
	SectionTrend           = "trend"
)

// Marker switches the parser into Section when a line contains any of
// Tokens (case-sensitive), or when a markdown heading line contains any of
// Headings (case-insensitive).
type Marker struct {
	Section  string      `yaml:"section" json:"section"`
	Kind     SectionKind `yaml:"kind" json:"kind"`
	Tokens   []string    `yaml:"tokens" json:"tokens"`
	Headings []string    `yaml:"headings,omitempty" json:"headings,omitempty"`
}

// DefaultMarkers returns the heading markers models are prompted to use,
// in both report languages. The first matching marker wins.
func DefaultMarkers() []Marker {
	return []Marker{
		{Section: SectionSummary, Kind: KindText, Tokens: []string{"📊", "GÜNLÜK ÖZET", "DAILY SUMMARY", "EXECUTIVE SUMMARY"}, Headings: []string{"summary", "özet"}},
		{Section: SectionIssues, Kind: KindList, Tokens: []string{"⚠", "SORUNLAR", "ISSUES"}, Headings: []string{"issue", "problem", "root cause", "sorun"}},
		{Section: SectionSolutions, Kind: KindList, Tokens: []string{"✅", "ÇÖZÜMLER", "SOLUTIONS"}, Headings: []string{"solution", "çözüm"}},
		{Section: SectionRecommendations, Kind: KindList, Tokens: []string{"🎯", "ÖNERİLER", "RECOMMENDATIONS"}, Headings: []string{"recommend", "action plan", "action board", "öneri"}},
		{Section: SectionTrend, Kind: KindText, Tokens: []string{"📈", "TREND"}, Headings: []string{"trend"}},
	}
}

// Parser splits sanitized model output into sections.
type Parser struct {
	markers []Marker
}

// NewParser copies markers; nil or empty uses DefaultMarkers.
func NewParser(markers []Marker) (*Parser, error) {
	if len(markers) == 0 {
		markers = DefaultMarkers()
	}
	seen := map[string]bool{}
	cp := make([]Marker, 0, len(markers))
	for _, m := range markers {
		if m.Section == "" {
			return nil, fmt.Errorf("marker without section name")
		}
		if seen[m.Section] {
			return nil, fmt.Errorf("duplicate marker section %q", m.Section)
		}
		if m.Kind != KindText && m.Kind != KindList {
			return nil, fmt.Errorf("marker %q: unknown kind %q", m.Section, m.Kind)
		}
		if len(m.Tokens) == 0 && len(m.Headings) == 0 {
			return nil, fmt.Errorf("marker %q has no tokens", m.Section)
		}
		seen[m.Section] = true
		m.Tokens = append([]string(nil), m.Tokens...)
		hs := make([]string, len(m.Headings))
		for i, h := range m.Headings {
			hs[i] = strings.ToLower(h)
		}
		m.Headings = hs
		cp = append(cp, m)
	}
	return &Parser{markers: cp}, nil
}

var defaultParser, _ = NewParser(nil)

// Parse runs the default parser.
func Parse(text string) *StructuredReport { return defaultParser.Parse(text) }

var percentRe = regexp.MustCompile(`%(\d{1,3})(?:[^\d]|$)|(?:^|[^\d.,])(\d{1,3})%`)

// Parse is best-effort: text without any marker lands in the catch-all Text.
func (p *Parser) Parse(text string) *StructuredReport {
	r := &StructuredReport{Sanitized: text}
	idx := map[string]int{}
	for _, m := range p.markers {
		idx[m.Section] = len(r.Sections)
		r.Sections = append(r.Sections, Section{Name: m.Section, Kind: m.Kind})
	}
	var catchAll []string
	current := -1
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		r.collectPercents(line)
		if m, ok := p.match(line); ok {
			current = idx[m.Section]
			continue
		}
		if current < 0 {
			catchAll = append(catchAll, line)
			continue
		}
		sec := &r.Sections[current]
		if sec.Kind == KindText {
			sec.Text += line + "\n"
			continue
		}
		if item, ok := bulletText(line); ok {
			sec.Items = append(sec.Items, item)
			continue
		}
		catchAll = append(catchAll, line)
	}
	for i := range r.Sections {
		r.Sections[i].Text = strings.TrimRight(r.Sections[i].Text, "\n")
	}
	r.Text = strings.Join(catchAll, "\n")
	return r
}

func (p *Parser) match(line string) (Marker, bool) {
	heading := strings.HasPrefix(line, "#")
	lower := strings.ToLower(line)
	for _, m := range p.markers {
		for _, t := range m.Tokens {
			if t != "" && strings.Contains(line, t) {
				return m, true
			}
		}
		if !heading {
			continue
		}
		for _, h := range m.Headings {
			if h != "" && strings.Contains(lower, h) {
				return m, true
			}
		}
	}
	return Marker{}, false
}

// bulletText strips a leading dash or bullet glyph.
func bulletText(line string) (string, bool) {
	for _, prefix := range []string{"-", "•"} {
		if strings.HasPrefix(line, prefix) {
			item := strings.TrimSpace(strings.TrimPrefix(line, prefix))
			if strings.Trim(item, "-") == "" {
				return "", false
			}
			return item, true
		}
	}
	return "", false
}

func (r *StructuredReport) collectPercents(line string) {
	for _, m := range percentRe.FindAllStringSubmatch(line, -1) {
		v := m[1]
		if v == "" {
			v = m[2]
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		r.Percents = append(r.Percents, n)
	}
}
