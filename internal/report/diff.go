package report

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffLine is one line of a sanitizer before/after comparison.
type DiffLine struct {
	Op   string `json:"op"` // " ", "-", "+"
	Text string `json:"text"`
}

const MaxDiffLines = 5000

// SanitizeDiff returns the line diff between raw text and Sanitize(raw).
// It reports truncated=true instead of diffing inputs larger than maxLines.
func SanitizeDiff(raw string, maxLines int) ([]DiffLine, bool) {
	if maxLines <= 0 {
		maxLines = MaxDiffLines
	}
	clean := Sanitize(raw)
	if lineCount(raw)+lineCount(clean) > maxLines {
		return nil, true
	}
	return LineDiff(raw, clean), false
}

// LineDiff diffs two texts line by line.
func LineDiff(before, after string) []DiffLine {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out []DiffLine
	for _, d := range diffs {
		chunk := strings.Split(d.Text, "\n")
		if len(chunk) > 0 && chunk[len(chunk)-1] == "" {
			chunk = chunk[:len(chunk)-1]
		}
		op := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			op = "-"
		case diffmatchpatch.DiffInsert:
			op = "+"
		}
		for _, l := range chunk {
			out = append(out, DiffLine{Op: op, Text: l})
		}
	}
	return out
}

// Changed reports whether any line differs.
func Changed(lines []DiffLine) bool {
	for _, l := range lines {
		if l.Op != " " {
			return true
		}
	}
	return false
}

func lineCount(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}
