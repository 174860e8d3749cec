package cmd

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/KaramelBytes/shiftlog-cli/internal/ai"
	"github.com/KaramelBytes/shiftlog-cli/internal/audit"
	cfgpkg "github.com/KaramelBytes/shiftlog-cli/internal/config"
	"github.com/KaramelBytes/shiftlog-cli/internal/history"
	"github.com/KaramelBytes/shiftlog-cli/internal/logging"
	"github.com/KaramelBytes/shiftlog-cli/internal/metrics"
	"github.com/KaramelBytes/shiftlog-cli/internal/pipeline"
	"github.com/KaramelBytes/shiftlog-cli/internal/redact"
)

// newRegistry builds the provider registry; tests swap it for fakes.
var newRegistry = ai.NewRegistry

// app bundles the collaborators shared by the commands of one process.
type app struct {
	cfg     *cfgpkg.Global
	log     *zap.Logger
	audit   *audit.Logger
	metrics *metrics.Recorder
	history *history.Store
	catalog ai.Catalog
	rules   redact.Rules
}

type appOptions struct {
	// History opens the history database.
	History bool
	// Audit opens the audit log.
	Audit bool
}

func newApp(opt appOptions) (*app, error) {
	c, err := requireConfig()
	if err != nil {
		return nil, err
	}
	log, err := logging.New(logging.Options{Debug: debug, File: c.LogFile})
	if err != nil {
		return nil, err
	}
	a := &app{cfg: c, log: log, audit: audit.Nop(), metrics: metrics.New()}

	if a.catalog, err = c.Catalog(); err != nil {
		a.Close()
		return nil, fmt.Errorf("load models file: %w", err)
	}
	if a.rules, err = redact.LoadRules(c.RulesFile); err != nil {
		a.Close()
		return nil, err
	}
	if opt.Audit && c.AuditLog != "" {
		al, err := audit.NewLogger(audit.DefaultConfig(c.AuditLog))
		if err != nil {
			// audit is best effort for a CLI run
			fmt.Fprintf(os.Stderr, "⚠ Warning: audit log disabled: %v\n", err)
		} else {
			a.audit = al
			a.audit.AppStart(Version)
		}
	}
	if opt.History && !flagNoHistory && c.HistoryDB != "" {
		st, err := history.Open(c.HistoryDB)
		if err != nil {
			fmt.Fprintf(os.Stderr, "⚠ Warning: history disabled: %v\n", err)
		} else {
			a.history = st
		}
	}
	return a, nil
}

// analyzer builds a fresh Analyzer; one per concurrent analysis.
func (a *app) analyzer() (*pipeline.Analyzer, error) {
	return pipeline.New(pipeline.Options{
		Registry:           newRegistry(),
		Catalog:            a.catalog,
		Windows:            a.cfg.Windows(),
		Rules:              a.rules,
		RuntimeConfig:      a.cfg.Runtime,
		DefaultProvider:    a.cfg.DefaultProvider,
		DefaultModel:       a.cfg.DefaultModel,
		DefaultMaxTokens:   a.cfg.MaxTokens,
		DefaultTemperature: a.cfg.Temperature,
		DisableAutoBudget:  !a.cfg.AutoBudget,
		Logger:             a.log,
		Audit:              a.audit,
		Metrics:            a.metrics,
		History:            a.history,
	})
}

// Close flushes metrics and closes stores. Errors are reported, not returned.
func (a *app) Close() {
	if a.cfg != nil && a.cfg.MetricsFile != "" {
		if err := a.metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
			fmt.Fprintf(os.Stderr, "⚠ Warning: write metrics: %v\n", err)
		}
	}
	if a.history != nil {
		_ = a.history.Close()
	}
	_ = a.audit.Close()
	_ = a.log.Sync()
}
