package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/shiftlog-cli/internal/table"
)

var (
	watchOutDir   string
	watchFormat   string
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Analyze shift-log files as they are dropped into a folder",
	Example: `  shiftlog watch ./incoming --out-dir ./reports
  shiftlog watch ./incoming --provider ollama --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return fmt.Errorf("%s is not a directory", dir)
		}
		if err := checkReportFormat(watchFormat); err != nil {
			return err
		}
		a, err := newApp(appOptions{History: true, Audit: true})
		if err != nil {
			return err
		}
		defer a.Close()
		an, err := a.analyzer()
		if err != nil {
			return err
		}

		w, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		defer w.Close()
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", dir)

		return watchLoop(ctx, w, watchDebounce, func(path string) {
			req := analyzeRequest(cmd, path, table.DateRange{})
			res, err := an.Analyze(ctx, req)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "✗ %s: %v\n", filepath.Base(path), err)
				return
			}
			if !res.OK() {
				fmt.Fprintf(cmd.ErrOrStderr(), "✗ %s\n", res.ManagerSummary(""))
				return
			}
			dest := batchOutputPath(watchOutDir, path, watchFormat)
			werr := writeReportFile(res, dest)
			a.audit.Export(watchFormat, dest, werr)
			if werr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "✗ %s: %v\n", filepath.Base(path), werr)
				return
			}
			fmt.Fprintf(out, "✓ %s -> %s (%d tokens)\n", filepath.Base(path), dest, res.Report.Usage.TotalTokens)
		}, func(err error) {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠ watcher: %v\n", err)
		})
	},
}

// watchLoop calls handle once per supported file after writes to it have been
// quiet for debounce. Files are handled one at a time. It returns nil when ctx ends.
func watchLoop(ctx context.Context, w *fsnotify.Watcher, debounce time.Duration, handle func(string), onErr func(error)) error {
	if debounce <= 0 {
		debounce = time.Second
	}
	var (
		mu      sync.Mutex
		pending = map[string]*time.Timer{}
		work    = make(chan string, 16)
	)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case p := <-work:
				handle(p)
			}
		}
	}()
	defer func() {
		mu.Lock()
		for _, t := range pending {
			t.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			// skip office lock files like ~$shifts.xlsx
			base := filepath.Base(ev.Name)
			if !table.IsSupported(ev.Name) || len(base) > 1 && base[0] == '~' {
				continue
			}
			mu.Lock()
			if t, ok := pending[ev.Name]; ok {
				t.Reset(debounce)
			} else {
				name := ev.Name
				pending[name] = time.AfterFunc(debounce, func() {
					mu.Lock()
					delete(pending, name)
					mu.Unlock()
					select {
					case work <- name:
					case <-ctx.Done():
					}
				})
			}
			mu.Unlock()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if onErr != nil {
				onErr(err)
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addAnalysisFlags(watchCmd)
	watchCmd.Flags().StringVar(&watchOutDir, "out-dir", "", "directory for reports (default: the watched folder)")
	watchCmd.Flags().StringVar(&watchFormat, "format", "md", "report format: md | txt | json")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 2*time.Second, "quiet period after the last write before a file is analyzed")
}
