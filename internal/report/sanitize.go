package report

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Output caps applied after every rewrite.
const (
	MaxLines = 4000
	MaxChars = 120000
)

// Canonical replacement phrases.
const (
	NoData            = "no data"
	UnderOnePercent   = "≈<1%"
	ReliabilityNoData = "no data (timestamped failure/repair data missing)"
	OwnerSeparator    = " — Owner — "
)

type rewrite struct {
	name string
	re   *regexp.Regexp
	repl string
}

const placeholderUnits = `(?:saat|dakika|dk|hours?|minutes?|mins?)`

// rewrites run in order over the whole text.
var rewrites = []rewrite{
	{"url", regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s)\]]+`), ""},
	{"currency symbol", regexp.MustCompile(`[$€£₺¥]`), ""},
	{"currency code", regexp.MustCompile(`[ \t]*\b(?:USD|EUR|TRY|TL|GBP)\b`), ""},
	{"zero percent in parens", regexp.MustCompile(`\(\s*(?:%\s*0|0\s*%)\s*\)`), "(" + UnderOnePercent + ")"},
	{"zero percent", regexp.MustCompile(`(^|[^\d])%\s*0([^.,\d]|$)`), "${1}" + UnderOnePercent + "${2}"},
	{"placeholder assignment", regexp.MustCompile(`=\s*[XYxy]\s*` + placeholderUnits + `\b`), "= " + NoData},
	{"placeholder duration", regexp.MustCompile(`\b[XYxy]\s*` + placeholderUnits + `\b`), NoData},
	{"basis data", regexp.MustCompile(`(?i)\b(dayanak\s*veri|basis\s*data)\s*:\s*(?:N/?A|N\.A\.?|NONE|null|eksik|yok|boş|missing|unknown)([^\p{L}\p{N}_]|$)`), "${1}: " + NoData + "${2}"},
	{"owner separator", regexp.MustCompile(`(?i)(?:[\-—]\s*soru\s*){2,}`), OwnerSeparator},
	{"owner field", regexp.MustCompile(`(?i)([\-—])\s*soru\s*([\-—])`), "${1} Owner ${2}"},
}

var (
	blankRun        = regexp.MustCompile(`\n(?:[ \t]*\n){3,}`)
	reliabilityRe   = regexp.MustCompile(`\b(?:MTBF|MTTR)\b`)
	placeholderOnly = regexp.MustCompile(`(?i)^\s*(?:[XY?]+|N/?A|-+)\s*` + placeholderUnits + `?\.?\s*$`)
)

// Sanitize removes hallucination-prone artifacts from raw model output.
// Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "％", "%")
	for _, rw := range rewrites {
		s = rw.re.ReplaceAllString(s, rw.repl)
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		line = strings.TrimRightFunc(line, unicode.IsSpace)
		lines[i] = rewriteReliability(line)
	}
	s = strings.Join(lines, "\n")
	s = blankRun.ReplaceAllString(s, "\n\n")
	s = strings.TrimSpace(s)
	s = capLines(s, MaxLines)
	return capChars(s, MaxChars)
}

// rewriteReliability replaces the value of an MTBF/MTTR line that carries
// no digit or only a placeholder.
func rewriteReliability(line string) string {
	if !reliabilityRe.MatchString(line) {
		return line
	}
	sep := strings.IndexAny(line, ":=")
	hasDigit := strings.IndexFunc(line, unicode.IsDigit) >= 0
	if hasDigit {
		if sep < 0 || !placeholderOnly.MatchString(line[sep+1:]) {
			return line
		}
	}
	if sep < 0 {
		return line + ": " + ReliabilityNoData
	}
	return line[:sep+1] + " " + ReliabilityNoData
}

func capLines(s string, max int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= max {
		return s
	}
	dropped := len(lines) - (max - 1)
	kept := append(lines[:max-1:max-1], fmt.Sprintf("[... truncated: %d more lines]", dropped))
	return strings.Join(kept, "\n")
}

func capChars(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	marker := fmt.Sprintf("\n[... truncated at %d characters]", max)
	keep := max - utf8.RuneCountInString(marker)
	runes := []rune(s)
	return strings.TrimRightFunc(string(runes[:keep]), unicode.IsSpace) + marker
}
