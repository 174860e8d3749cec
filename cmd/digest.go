package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/shiftlog-cli/internal/ai"
	"github.com/KaramelBytes/shiftlog-cli/internal/analysis"
	"github.com/KaramelBytes/shiftlog-cli/internal/budget"
	"github.com/KaramelBytes/shiftlog-cli/internal/prompt"
	"github.com/KaramelBytes/shiftlog-cli/internal/redact"
	"github.com/KaramelBytes/shiftlog-cli/internal/table"
	"github.com/KaramelBytes/shiftlog-cli/internal/utils"
)

var (
	digLastDays  int
	digFrom      string
	digTo        string
	digSheetName string
	digSheetIdx  int
	digJSON      bool
	digTokens    bool
	digProvider  string
	digPrompt    bool
	digSections  []string
)

var digestCmd = &cobra.Command{
	Use:   "digest <file>",
	Short: "Show the redacted data summary that would be sent to the AI provider",
	Example: `  shiftlog digest shifts.xlsx
  shiftlog digest shifts.xlsx --last-days 30 --tokens --provider ollama
  shiftlog digest shifts.xlsx --print-prompt`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rng, err := parseDateRange(digLastDays, digFrom, digTo, time.Now())
		if err != nil {
			return err
		}
		a, err := newApp(appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		t, err := table.Load(args[0], table.LoadOptions{Sheet: digSheetName, SheetIndex: digSheetIdx})
		if err != nil {
			return err
		}
		if rng != (table.DateRange{}) {
			filtered, err := table.FilterByDate(t, "", rng)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "⚠ date filter skipped: %v\n", err)
			} else {
				t = filtered
			}
		}
		r, err := redact.New(a.rules, a.log.Named("redact"))
		if err != nil {
			return err
		}
		clean, rep := r.Redact(t)
		dg := analysis.NewBuilder(analysis.DefaultOptions(), a.log.Named("digest")).Build(clean)

		out := cmd.OutOrStdout()
		if digJSON {
			b, err := utils.PrettyJSON(dg)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		if removed := rep.Removed(); len(removed) > 0 {
			fmt.Fprintf(out, "✓ Removed %d personal column(s) before summarizing\n\n", len(removed))
		}
		fmt.Fprintln(out, dg.Text())
		for _, b := range dg.Omitted() {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠ block %s omitted: %s\n", b.Name, b.Reason)
		}

		if !digTokens && !digPrompt {
			return nil
		}
		sections, err := prompt.ResolveSections(digSections)
		if err != nil {
			return err
		}
		p, err := prompt.Assemble(prompt.Request{Digest: dg.Text(), Sections: sections, MaxOutputTokens: a.cfg.MaxTokens})
		if err != nil {
			return err
		}
		if digPrompt {
			fmt.Fprintln(out, "\n--- prompt ---")
			fmt.Fprintln(out, p.Text)
		}
		if digTokens {
			provider := ai.NormalizeProvider(digProvider)
			if provider == "" {
				provider = a.cfg.DefaultProvider
			}
			bd := utils.TokenBreakdown(p.Parts)
			keys := make([]string, 0, len(bd))
			for k := range bd {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintln(out, "\nToken estimate (chars/4):")
			for _, k := range keys {
				fmt.Fprintf(out, "  %-12s %6d\n", k, bd[k])
			}
			fmt.Fprintf(out, "  %-12s %6d\n", "total", p.Tokens)
			b := budget.Compute(budget.Input{
				Prompt:               p.Text,
				Provider:             provider,
				Rows:                 dg.Rows,
				RequestedMaxTokens:   a.cfg.MaxTokens,
				RequestedTemperature: a.cfg.Temperature,
			}, a.cfg.Windows())
			fmt.Fprintf(out, "\nBudget for %s: window %d, safe room %d, row floor %d -> max_tokens %d, temperature %.2f\n",
				provider, b.ContextWindow, b.SafeRoom, b.RowFloor, b.MaxTokens, b.Temperature)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(digestCmd)
	f := digestCmd.Flags()
	f.IntVar(&digLastDays, "last-days", 0, "only summarize the last N days")
	f.StringVar(&digFrom, "from", "", "start date YYYY-MM-DD")
	f.StringVar(&digTo, "to", "", "end date YYYY-MM-DD (inclusive)")
	f.StringVar(&digSheetName, "sheet-name", "", "XLSX: sheet name")
	f.IntVar(&digSheetIdx, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	f.BoolVar(&digJSON, "json", false, "print the digest blocks as JSON, including omitted ones")
	f.BoolVar(&digTokens, "tokens", false, "print the prompt token breakdown and generation budget")
	f.StringVar(&digProvider, "provider", "", "provider whose context window is used for --tokens")
	f.BoolVar(&digPrompt, "print-prompt", false, "print the full prompt that would be sent")
	f.StringSliceVar(&digSections, "sections", nil, "report sections for the prompt preview")
}
