package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/shiftlog-cli/internal/report"
)

var (
	sanDiff     bool
	sanParse    bool
	sanMaxLines int
)

var sanitizeCmd = &cobra.Command{
	Use:   "sanitize <file|->",
	Short: "Clean a saved model response (currency, links, placeholders) and optionally parse it",
	Example: `  shiftlog sanitize response.txt
  shiftlog sanitize response.txt --diff
  cat response.txt | shiftlog sanitize - --parse`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		switch {
		case sanDiff:
			lines, truncated := report.SanitizeDiff(raw, sanMaxLines)
			if truncated {
				return fmt.Errorf("input too large to diff (limit %d lines)", sanMaxLines)
			}
			if !report.Changed(lines) {
				fmt.Fprintln(out, "✓ Nothing to sanitize")
				return nil
			}
			for _, l := range lines {
				fmt.Fprintf(out, "%s %s\n", l.Op, l.Text)
			}
		case sanParse:
			r := report.FromResponse(nil, raw, report.Usage{})
			b, err := r.JSON()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			if _, ok := r.PercentTotal(); ok {
				fmt.Fprintln(cmd.ErrOrStderr(), r.PercentCheck())
			}
		default:
			fmt.Fprintln(out, report.Sanitize(raw))
		}
		return nil
	},
}

func readInput(cmd *cobra.Command, path string) (string, error) {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(io.LimitReader(cmd.InOrStdin(), 16<<20))
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(b), nil
}

func init() {
	rootCmd.AddCommand(sanitizeCmd)
	sanitizeCmd.Flags().BoolVar(&sanDiff, "diff", false, "show a line diff between the raw and sanitized text")
	sanitizeCmd.Flags().BoolVar(&sanParse, "parse", false, "print the parsed report as JSON")
	sanitizeCmd.Flags().IntVar(&sanMaxLines, "max-lines", report.MaxDiffLines, "refuse to diff inputs longer than this")
}
