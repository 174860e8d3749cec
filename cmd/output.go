package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/KaramelBytes/shiftlog-cli/internal/pipeline"
	"github.com/KaramelBytes/shiftlog-cli/internal/report"
	"github.com/KaramelBytes/shiftlog-cli/internal/table"
	"github.com/KaramelBytes/shiftlog-cli/internal/utils"
)

const dateLayout = "2006-01-02"

// parseDateRange resolves --last-days / --from / --to. lastDays wins when set.
func parseDateRange(lastDays int, from, to string, now time.Time) (table.DateRange, error) {
	if lastDays < 0 {
		return table.DateRange{}, fmt.Errorf("--last-days must be positive")
	}
	if lastDays > 0 {
		if from != "" || to != "" {
			return table.DateRange{}, fmt.Errorf("--last-days cannot be combined with --from/--to")
		}
		return table.LastDays(now, lastDays), nil
	}
	var r table.DateRange
	var err error
	if from != "" {
		if r.From, err = time.Parse(dateLayout, from); err != nil {
			return r, fmt.Errorf("invalid --from %q (use YYYY-MM-DD)", from)
		}
	}
	if to != "" {
		if r.To, err = time.Parse(dateLayout, to); err != nil {
			return r, fmt.Errorf("invalid --to %q (use YYYY-MM-DD)", to)
		}
	}
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return r, fmt.Errorf("--to %s is before --from %s", to, from)
	}
	return r, nil
}

// expandInputs resolves globs and literal paths, de-duplicated and sorted.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok || !table.IsSupported(m) {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files matched (supported: %s)", strings.Join(table.SupportedExtensions(), ", "))
	}
	sort.Strings(files)
	return files, nil
}

// renderText returns text for the terminal, through glamour when pretty is set.
func renderText(text string, pretty bool, style string) string {
	if !pretty {
		return text
	}
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(100)}
	if style == "" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return out
}

// writeReportFile writes a result by extension: .json is the schema-checked
// report, anything else the sanitized text.
func writeReportFile(res *pipeline.Result, path string) error {
	if !res.OK() {
		return fmt.Errorf("no report to write: %s", res.ErrorMessage)
	}
	var data []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		b, err := res.Report.JSON()
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		if err := report.ValidateJSON(b); err != nil {
			return err
		}
		data = b
	case ".txt", ".md", ".markdown", "":
		data = []byte(res.Report.Sanitized + "\n")
	default:
		return fmt.Errorf("unsupported output extension %q (use .md, .txt or .json)", filepath.Ext(path))
	}
	return utils.SafeWriteFile(path, data)
}

// printResult prints a finished analysis for humans.
func printResult(w io.Writer, res *pipeline.Result, pretty bool, period string) {
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "⚠ %s\n", warn)
	}
	if removed := res.Redaction.Removed(); len(removed) > 0 {
		fmt.Fprintf(w, "✓ Removed %d personal column(s): %s\n", len(removed), strings.Join(removed, ", "))
	}
	if res.Retries > 0 {
		fmt.Fprintf(w, "⚠ Context limit hit; retried %d time(s), final max tokens %d\n", res.Retries, res.Budget.MaxTokens)
	}
	if !res.OK() {
		fmt.Fprintln(w, res.ManagerSummary(period))
		return
	}
	fmt.Fprintln(w, "\n=== AI Report ===")
	fmt.Fprintln(w, renderText(res.Report.Sanitized, pretty, ""))
	if _, ok := res.Report.PercentTotal(); ok {
		fmt.Fprintln(w, res.Report.PercentCheck())
	}
	if period != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, res.ManagerSummary(period))
	}
}
