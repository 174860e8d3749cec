package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/shiftlog-cli/internal/ai"
	"github.com/KaramelBytes/shiftlog-cli/internal/pipeline"
	"github.com/KaramelBytes/shiftlog-cli/internal/table"
)

var (
	anaProvider   string
	anaModel      string
	anaMaxTokens  int
	anaTemp       float64
	anaSections   []string
	anaQuestion   string
	anaLastDays   int
	anaFrom       string
	anaTo         string
	anaDateColumn string
	anaSheetName  string
	anaSheetIndex int
	anaMaxRows    int
	anaOutputPath string
	anaPretty     bool
	anaPeriod     string
	anaQuiet      bool
	anaTimeoutSec int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a shift-log spreadsheet and print an AI management report",
	Example: `  shiftlog analyze shifts.xlsx
  shiftlog analyze shifts.xlsx --last-days 30 --provider anthropic
  shiftlog analyze shifts.csv --sections "Executive Summary,SMART Action Plan" --question "Why did mill 2 stop?"
  shiftlog analyze shifts.xlsx --output report.json --summary weekly`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rng, err := parseDateRange(anaLastDays, anaFrom, anaTo, time.Now())
		if err != nil {
			return err
		}
		a, err := newApp(appOptions{History: true, Audit: true})
		if err != nil {
			return err
		}
		defer a.Close()

		req := analyzeRequest(cmd, args[0], rng)
		warnCost(cmd, a, req.Provider, req.Model)

		an, err := a.analyzer()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		if anaTimeoutSec > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(anaTimeoutSec)*time.Second)
			defer cancel()
		}
		if !anaQuiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "Analyzing %s...\n", args[0])
		}
		res, err := an.Analyze(ctx, req)
		if err != nil {
			a.audit.Error("analyze", err)
			return err
		}
		out := cmd.OutOrStdout()
		if anaQuiet {
			if res.OK() {
				fmt.Fprintln(out, res.Report.Sanitized)
			}
		} else {
			printResult(out, res, anaPretty, anaPeriod)
		}
		if !res.OK() {
			return fmt.Errorf("analysis failed: %s", res.ErrorMessage)
		}
		if anaOutputPath != "" {
			err := writeReportFile(res, anaOutputPath)
			a.audit.Export(formatOf(anaOutputPath), anaOutputPath, err)
			if err != nil {
				return err
			}
			if !anaQuiet {
				fmt.Fprintf(out, "\n💾 Saved report to %s\n", anaOutputPath)
			}
		}
		if !anaQuiet {
			u := res.Report.Usage
			fmt.Fprintf(out, "\n✓ %s/%s: %d tokens (prompt %d, completion %d), est. $%.4f, id %s\n",
				res.Provider, res.Model, u.TotalTokens, u.PromptTokens, u.CompletionTokens, u.EstimatedCostUSD, res.RequestID)
		}
		return nil
	},
}

// analyzeRequest maps the shared analysis flags onto a pipeline request.
func analyzeRequest(cmd *cobra.Command, path string, rng table.DateRange) pipeline.Request {
	req := pipeline.Request{
		File:       path,
		Load:       table.LoadOptions{Sheet: anaSheetName, SheetIndex: anaSheetIndex, MaxRows: anaMaxRows},
		DateRange:  rng,
		DateColumn: anaDateColumn,
		Provider:   anaProvider,
		Model:      anaModel,
		MaxTokens:  anaMaxTokens,
		Sections:   anaSections,
		Question:   anaQuestion,
	}
	if cmd.Flags().Changed("temperature") {
		t := anaTemp
		req.Temperature = &t
	}
	return req
}

// warnCost prints the catalog's cost notice for the effective model.
func warnCost(cmd *cobra.Command, a *app, provider, model string) {
	if provider == "" {
		provider = a.cfg.DefaultProvider
	}
	provider = ai.NormalizeProvider(provider)
	if model == "" {
		if provider == a.cfg.DefaultProvider {
			model = a.cfg.DefaultModel
		} else {
			model = a.catalog.DefaultModel(provider)
		}
	}
	if msg, ok := a.catalog.CostWarning(provider, model); ok {
		fmt.Fprintf(cmd.ErrOrStderr(), "⚠ %s\n", msg)
	}
}

func formatOf(path string) string {
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."); ext != "" {
		return ext
	}
	return "text"
}

// addAnalysisFlags registers the flags shared by analyze, batch and watch.
func addAnalysisFlags(c *cobra.Command) {
	f := c.Flags()
	f.StringVar(&anaProvider, "provider", "", "AI provider: openai|anthropic|xai|gemini|openrouter|ollama (default from config)")
	f.StringVar(&anaModel, "model", "", "model name (default from config or the provider's recommended model)")
	f.IntVar(&anaMaxTokens, "max-tokens", 0, "requested max output tokens (default from config)")
	f.Float64Var(&anaTemp, "temperature", 0.7, "sampling temperature (default from config)")
	f.StringSliceVar(&anaSections, "sections", nil, "report sections, comma-separated (default: the six standard sections)")
	f.StringVar(&anaQuestion, "question", "", "specific question for the report")
	f.IntVar(&anaLastDays, "last-days", 0, "only analyze the last N days (7, 30, 90, 365...)")
	f.StringVar(&anaFrom, "from", "", "start date YYYY-MM-DD")
	f.StringVar(&anaTo, "to", "", "end date YYYY-MM-DD (inclusive)")
	f.StringVar(&anaDateColumn, "date-column", "", "column used for date filtering (auto-detected if omitted)")
	f.StringVar(&anaSheetName, "sheet-name", "", "XLSX: sheet name to analyze")
	f.IntVar(&anaSheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	f.IntVar(&anaMaxRows, "max-rows", 0, "maximum rows to load (0 = unlimited)")
	f.StringVar(&anaPeriod, "summary", "", "also print a manager summary for this period (daily|weekly|monthly)")
	f.IntVar(&anaTimeoutSec, "timeout-sec", 0, "overall analysis timeout in seconds (0 = none)")
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	addAnalysisFlags(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "save the report (.md/.txt text, .json structured)")
	analyzeCmd.Flags().BoolVar(&anaPretty, "pretty", false, "render the report as styled markdown")
	analyzeCmd.Flags().BoolVar(&anaQuiet, "quiet", false, "print only the report text")
}
