package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	abOutDir   string
	abParallel int
	abFormat   string
	abQuiet    bool
)

// batchOutcome is one file's result line.
type batchOutcome struct {
	File   string
	Output string
	Tokens int
	Err    error
}

var analyzeBatchCmd = &cobra.Command{
	Use:     "batch <files...>",
	Aliases: []string{"analyze-batch"},
	Short:   "Analyze several shift-log files concurrently and save one report per file",
	Example: `  shiftlog batch 'logs/*.xlsx' --out-dir reports
  shiftlog batch a.xlsx b.csv --parallel 2 --format json --last-days 30`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		if err := checkReportFormat(abFormat); err != nil {
			return err
		}
		rng, err := parseDateRange(anaLastDays, anaFrom, anaTo, time.Now())
		if err != nil {
			return err
		}
		a, err := newApp(appOptions{History: true, Audit: true})
		if err != nil {
			return err
		}
		defer a.Close()
		warnCost(cmd, a, anaProvider, anaModel)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		var mu sync.Mutex
		done := 0
		progress := func(o batchOutcome) {
			mu.Lock()
			defer mu.Unlock()
			done++
			if abQuiet {
				return
			}
			if o.Err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] ✗ %s: %v\n", done, len(files), filepath.Base(o.File), o.Err)
				return
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] ✓ %s -> %s\n", done, len(files), filepath.Base(o.File), o.Output)
		}

		outcomes, err := runBatch(ctx, files, abParallel, func(ctx context.Context, path string) batchOutcome {
			o := batchOutcome{File: path}
			an, err := a.analyzer()
			if err != nil {
				o.Err = err
				return o
			}
			req := analyzeRequest(cmd, path, rng)
			res, err := an.Analyze(ctx, req)
			switch {
			case err != nil:
				o.Err = err
			case !res.OK():
				o.Err = errors.New(res.ErrorMessage)
			default:
				o.Tokens = res.Report.Usage.TotalTokens
				o.Output = batchOutputPath(abOutDir, path, abFormat)
				werr := writeReportFile(res, o.Output)
				a.audit.Export(abFormat, o.Output, werr)
				o.Err = werr
			}
			progress(o)
			return o
		})
		if err != nil {
			return err
		}

		failed, tokens := 0, 0
		for _, o := range outcomes {
			if o.Err != nil {
				failed++
			}
			tokens += o.Tokens
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %d of %d file(s) analyzed, %d tokens used\n", len(outcomes)-failed, len(outcomes), tokens)
		if failed > 0 {
			return fmt.Errorf("%d file(s) failed", failed)
		}
		return nil
	},
}

// runBatch runs fn for each file with at most parallel in flight. Per-file
// failures stay in the outcomes; only cancellation aborts the batch.
func runBatch(ctx context.Context, files []string, parallel int, fn func(context.Context, string) batchOutcome) ([]batchOutcome, error) {
	if parallel <= 0 {
		parallel = 1
	}
	out := make([]batchOutcome, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				out[i] = batchOutcome{File: f, Err: err}
				return err
			}
			out[i] = fn(gctx, f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, fmt.Errorf("batch interrupted: %w", err)
	}
	return out, nil
}

func checkReportFormat(f string) error {
	switch f {
	case "md", "txt", "json":
		return nil
	}
	return fmt.Errorf("unsupported --format: %s (use md|txt|json)", f)
}

// batchOutputPath names the report for input in dir, e.g. logs/a.xlsx -> dir/a.report.md.
func batchOutputPath(dir, input, format string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	if dir == "" {
		dir = filepath.Dir(input)
	}
	return filepath.Join(dir, base+".report."+format)
}

func init() {
	rootCmd.AddCommand(analyzeBatchCmd)
	addAnalysisFlags(analyzeBatchCmd)
	analyzeBatchCmd.Flags().StringVar(&abOutDir, "out-dir", "", "directory for reports (default: next to each input)")
	analyzeBatchCmd.Flags().IntVar(&abParallel, "parallel", 2, "files analyzed concurrently")
	analyzeBatchCmd.Flags().StringVar(&abFormat, "format", "md", "report format: md | txt | json")
	analyzeBatchCmd.Flags().BoolVar(&abQuiet, "quiet", false, "suppress per-file progress")
}
