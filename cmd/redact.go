package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/shiftlog-cli/internal/redact"
	"github.com/KaramelBytes/shiftlog-cli/internal/table"
	"github.com/KaramelBytes/shiftlog-cli/internal/utils"
)

var (
	redOutput    string
	redJSON      bool
	redSheetName string
	redSheetIdx  int
)

var redactCmd = &cobra.Command{
	Use:   "redact <file>",
	Short: "Remove personal columns and optionally save a cleaned copy",
	Example: `  shiftlog redact shifts.xlsx
  shiftlog redact shifts.xlsx -o shifts_clean.xlsx
  shiftlog redact shifts.csv --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appOptions{Audit: true})
		if err != nil {
			return err
		}
		defer a.Close()

		path := args[0]
		t, err := table.Load(path, table.LoadOptions{Sheet: redSheetName, SheetIndex: redSheetIdx})
		if err != nil {
			a.audit.FileLoad(path, 0, 0, err)
			return err
		}
		a.audit.FileLoad(path, t.Rows(), t.Width(), nil)

		r, err := redact.New(a.rules, a.log.Named("redact"))
		if err != nil {
			return err
		}
		clean, rep := r.Redact(t)
		reasons := map[string]string{}
		for col, reason := range rep.Reasons() {
			reasons[col] = string(reason)
		}
		a.audit.Redaction("", reasons)
		a.metrics.ObserveRedaction(reasons)

		out := cmd.OutOrStdout()
		if redJSON {
			b, err := utils.PrettyJSON(map[string]any{
				"file":     path,
				"rows":     t.Rows(),
				"removed":  rep.Removals(),
				"kept":     rep.Kept(),
				"warnings": rep.Warnings(),
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
		} else {
			printRedaction(cmd, rep, t.Width())
		}

		if redOutput != "" {
			err := table.Save(clean, redOutput)
			a.audit.Export(formatOf(redOutput), redOutput, err)
			if err != nil {
				return fmt.Errorf("save cleaned table: %w", err)
			}
			if !redJSON {
				fmt.Fprintf(out, "💾 Saved cleaned data (%d rows, %d columns) to %s\n", clean.Rows(), clean.Width(), redOutput)
			}
		}
		return nil
	},
}

func printRedaction(cmd *cobra.Command, rep redact.Report, width int) {
	out := cmd.OutOrStdout()
	removals := rep.Removals()
	if len(removals) == 0 {
		fmt.Fprintf(out, "✓ No personal columns found (%d columns kept)\n", width)
	} else {
		fmt.Fprintf(out, "✓ Removed %d of %d columns:\n", len(removals), width)
		for _, r := range removals {
			line := fmt.Sprintf("  - %s (%s", r.Column, r.Reason)
			if r.Detail != "" {
				line += ": " + r.Detail
			}
			fmt.Fprintln(out, line+")")
		}
	}
	if kept := rep.Kept(); len(kept) > 0 {
		fmt.Fprintf(out, "  kept: %s\n", strings.Join(kept, ", "))
	}
	for _, w := range rep.Warnings() {
		fmt.Fprintf(cmd.ErrOrStderr(), "⚠ column %q not evaluated: %s\n", w.Column, w.Reason)
	}
}

func init() {
	rootCmd.AddCommand(redactCmd)
	redactCmd.Flags().StringVarP(&redOutput, "output", "o", "", "write the cleaned table (.xlsx, .csv or .tsv)")
	redactCmd.Flags().BoolVar(&redJSON, "json", false, "print the redaction report as JSON")
	redactCmd.Flags().StringVar(&redSheetName, "sheet-name", "", "XLSX: sheet name")
	redactCmd.Flags().IntVar(&redSheetIdx, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
}
