package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/shiftlog-cli/internal/report"
)

var (
	histLimit  int
	histPretty bool
	histRaw    bool
	histJSON   bool
	histPeriod string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse saved analyses",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent analyses, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appOptions{History: true})
		if err != nil {
			return err
		}
		defer a.Close()
		if a.history == nil {
			return fmt.Errorf("history database is not available")
		}
		recs, err := a.history.List(cmd.Context(), histLimit)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No analyses recorded yet")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTARTED\tFILE\tMODEL\tROWS\tTOKENS\tSTATUS")
		for _, r := range recs {
			status := "✓"
			if !r.OK() {
				status = "✗ " + truncate(r.Error, 40)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s/%s\t%d\t%d\t%s\n",
				r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.File, r.Provider, r.Model, r.Rows, r.TotalTokens, status)
		}
		return w.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one saved analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appOptions{History: true})
		if err != nil {
			return err
		}
		defer a.Close()
		if a.history == nil {
			return fmt.Errorf("history database is not available")
		}
		r, err := a.history.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		switch {
		case histJSON:
			if r.ReportJSON == "" {
				return fmt.Errorf("analysis %s has no report: %s", r.ID, r.Error)
			}
			fmt.Fprintln(out, r.ReportJSON)
			return nil
		case histRaw:
			fmt.Fprintln(out, r.Raw)
			return nil
		}
		fmt.Fprintf(out, "ID:       %s\nFile:     %s\nModel:    %s/%s\nStarted:  %s\nRows:     %d (removed columns: %d)\nTokens:   %d\n",
			r.ID, r.File, r.Provider, r.Model, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Rows, r.RemovedColumns, r.TotalTokens)
		if r.Digest != "" {
			fmt.Fprintf(out, "Digest:   %s\n", r.Digest)
		}
		if !r.OK() {
			fmt.Fprintf(out, "\n❌ Report could not be generated: %s\n", r.Error)
			return nil
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderText(r.Sanitized, histPretty, ""))
		if histPeriod != "" {
			var sr report.StructuredReport
			if err := json.Unmarshal([]byte(r.ReportJSON), &sr); err != nil {
				return fmt.Errorf("decode stored report: %w", err)
			}
			fmt.Fprintln(out, report.ManagerSummary(&sr, report.SummaryOptions{Period: histPeriod, Now: r.FinishedAt}))
		}
		return nil
	},
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyListCmd.Flags().IntVar(&histLimit, "limit", 20, "number of analyses to list")
	historyShowCmd.Flags().BoolVar(&histPretty, "pretty", false, "render the report as styled markdown")
	historyShowCmd.Flags().BoolVar(&histRaw, "raw", false, "print the unsanitized model response")
	historyShowCmd.Flags().BoolVar(&histJSON, "json", false, "print the structured report JSON")
	historyShowCmd.Flags().StringVar(&histPeriod, "summary", "", "also print a manager summary for this period")
}
