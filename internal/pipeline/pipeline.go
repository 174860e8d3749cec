// Package pipeline runs one shift-log analysis end to end: redact, digest,
// assemble, budget, call the provider, sanitize and parse.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KaramelBytes/shiftlog-cli/internal/ai"
	"github.com/KaramelBytes/shiftlog-cli/internal/analysis"
	"github.com/KaramelBytes/shiftlog-cli/internal/audit"
	"github.com/KaramelBytes/shiftlog-cli/internal/budget"
	"github.com/KaramelBytes/shiftlog-cli/internal/history"
	"github.com/KaramelBytes/shiftlog-cli/internal/metrics"
	"github.com/KaramelBytes/shiftlog-cli/internal/prompt"
	"github.com/KaramelBytes/shiftlog-cli/internal/redact"
	"github.com/KaramelBytes/shiftlog-cli/internal/report"
	"github.com/KaramelBytes/shiftlog-cli/internal/table"
)

// ValidationError is a local, fatal problem detected before any provider call.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// Options configure an Analyzer. They are copied at construction.
type Options struct {
	Registry *ai.Registry
	Catalog  ai.Catalog
	Windows  budget.Windows
	Rules    redact.Rules
	Digest   analysis.Options
	// Parser defaults to the built-in marker table.
	Parser *report.Parser
	// RuntimeConfig returns client settings, including the credential, per provider.
	RuntimeConfig func(provider string) ai.RuntimeConfig

	DefaultProvider    string
	DefaultModel       string
	DefaultMaxTokens   int
	DefaultTemperature float64
	// DisableAutoBudget sends the requested max tokens unchanged.
	DisableAutoBudget bool

	Logger  *zap.Logger
	Audit   *audit.Logger
	Metrics *metrics.Recorder
	History *history.Store
	Now     func() time.Time
}

// Analyzer runs analyses with a fixed configuration. It holds no per-request state.
type Analyzer struct {
	opt      Options
	redactor *redact.Redactor
	builder  *analysis.Builder
}

// New validates opt and returns an Analyzer.
func New(opt Options) (*Analyzer, error) {
	if opt.Registry == nil {
		opt.Registry = ai.NewRegistry()
	}
	if opt.Logger == nil {
		opt.Logger = zap.NewNop()
	}
	if opt.Audit == nil {
		opt.Audit = audit.Nop()
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if opt.RuntimeConfig == nil {
		opt.RuntimeConfig = func(string) ai.RuntimeConfig { return ai.RuntimeConfig{} }
	}
	if opt.DefaultProvider == "" {
		opt.DefaultProvider = ai.ProviderOpenAI
	}
	if opt.DefaultMaxTokens < 0 {
		return nil, invalid("max_tokens", "must not be negative (got %d)", opt.DefaultMaxTokens)
	}
	if opt.DefaultMaxTokens == 0 {
		opt.DefaultMaxTokens = 12000
	}
	if opt.Windows.IsZero() {
		opt.Windows = budget.DefaultWindows()
	}
	if len(opt.Catalog.Providers()) == 0 {
		opt.Catalog = ai.DefaultCatalog()
	}
	if len(opt.Rules.SafeKeywords) == 0 && len(opt.Rules.StrictKeywords) == 0 {
		opt.Rules = redact.DefaultRules()
	}
	r, err := redact.New(opt.Rules, opt.Logger.Named("redact"))
	if err != nil {
		return nil, invalid("rules", "%v", err)
	}
	if opt.Digest.Now.IsZero() && opt.Digest.TopN == 0 && len(opt.Digest.Rules) == 0 {
		opt.Digest = analysis.DefaultOptions()
	}
	return &Analyzer{
		opt:      opt,
		redactor: r,
		builder:  analysis.NewBuilder(opt.Digest, opt.Logger.Named("digest")),
	}, nil
}

// Request is one analysis. Either Table or File must be set; File alone is loaded.
type Request struct {
	Table *table.Table
	File  string
	Load  table.LoadOptions

	DateRange  table.DateRange
	DateColumn string

	Provider string
	Model    string
	// MaxTokens and Temperature override the defaults when positive / non-nil.
	MaxTokens   int
	Temperature *float64
	Sections    []string
	Question    string
}

// Result is the outcome of a request that passed validation. Err is set and
// Report is nil when the provider call failed.
type Result struct {
	RequestID    string                   `json:"request_id"`
	File         string                   `json:"file,omitempty"`
	Provider     string                   `json:"provider"`
	Model        string                   `json:"model"`
	Report       *report.StructuredReport `json:"report,omitempty"`
	ReportDigest string                   `json:"report_digest,omitempty"`
	Budget       budget.Budget            `json:"budget"`
	Retries      int                      `json:"retries"`
	Redaction    redact.Report            `json:"-"`
	Digest       analysis.Digest          `json:"-"`
	PromptTokens int                      `json:"prompt_tokens_estimate"`
	Warnings     []string                 `json:"warnings,omitempty"`
	Err          error                    `json:"-"`
	ErrorMessage string                   `json:"error,omitempty"`
	StartedAt    time.Time                `json:"started_at"`
	FinishedAt   time.Time                `json:"finished_at"`
}

// OK reports whether a report was produced.
func (r *Result) OK() bool { return r.Err == nil && r.Report != nil }

// ManagerSummary renders the short management view, or the failure line.
func (r *Result) ManagerSummary(period string) string {
	if !r.OK() {
		return "❌ Report could not be generated: " + r.ErrorMessage
	}
	return report.ManagerSummary(r.Report, report.SummaryOptions{Period: period, Now: r.FinishedAt})
}

// Analyze runs one request. Only *ValidationError is returned as an error;
// provider failures are reported through Result.Err.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*Result, error) {
	res := &Result{RequestID: uuid.NewString(), StartedAt: a.opt.Now(), File: req.File}
	log := a.opt.Logger.With(zap.String("request_id", res.RequestID))

	provider := ai.NormalizeProvider(strings.ToLower(strings.TrimSpace(req.Provider)))
	if provider == "" {
		provider = a.opt.DefaultProvider
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = a.defaultModel(provider)
	}
	if model == "" {
		return nil, invalid("model", "no model configured for provider %s", provider)
	}
	res.Provider, res.Model = provider, model

	maxTokens := a.opt.DefaultMaxTokens
	if req.MaxTokens < 0 {
		return nil, invalid("max_tokens", "must not be negative (got %d)", req.MaxTokens)
	}
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	temperature := a.opt.DefaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	if temperature < 0 || temperature > 2 {
		return nil, invalid("temperature", "must be within [0,2] (got %g)", temperature)
	}
	sections, err := prompt.ResolveSections(req.Sections)
	if err != nil {
		return nil, invalid("sections", "%v", err)
	}

	rc := a.opt.RuntimeConfig(provider)
	if ai.NeedsAPIKey(provider) && strings.TrimSpace(rc.APIKey) == "" {
		return nil, invalid("api_key", "%s API key is missing", ai.ProviderLabel(provider))
	}
	rt, err := a.opt.Registry.Resolve(provider, rc)
	if err != nil {
		return nil, invalid("provider", "%v", err)
	}

	t, err := a.load(req)
	if err != nil {
		return nil, err
	}
	if !isZeroRange(req.DateRange) {
		filtered, ferr := table.FilterByDate(t, req.DateColumn, req.DateRange)
		switch {
		case ferr != nil:
			res.Warnings = append(res.Warnings, fmt.Sprintf("date filter skipped: %v", ferr))
			log.Warn("date filter skipped", zap.Error(ferr))
		case filtered.Rows() == 0:
			return nil, invalid("date_range", "no rows in the selected date range")
		default:
			t = filtered
		}
	}

	clean, rep := a.redactor.Redact(t)
	res.Redaction = rep
	reasons := reasonStrings(rep)
	a.opt.Audit.Redaction(res.RequestID, reasons)
	a.opt.Metrics.ObserveRedaction(reasons)
	for _, w := range rep.Warnings() {
		res.Warnings = append(res.Warnings, fmt.Sprintf("column %q not evaluated: %s", w.Column, w.Reason))
	}

	dg := a.builder.Build(clean)
	res.Digest = dg
	omitted := make([]string, 0, len(dg.Omitted()))
	for _, b := range dg.Omitted() {
		omitted = append(omitted, b.Name)
	}
	a.opt.Metrics.ObserveDigest(dg.Rows, omitted)
	digestText := dg.Text()

	base, err := prompt.Assemble(prompt.Request{Digest: digestText, Sections: sections, Question: req.Question, MaxOutputTokens: maxTokens})
	if err != nil {
		return nil, invalid("digest", "%v", err)
	}
	b := budget.Compute(budget.Input{
		Prompt:               base.Text,
		Provider:             provider,
		Rows:                 dg.Rows,
		RequestedMaxTokens:   maxTokens,
		RequestedTemperature: temperature,
	}, a.opt.Windows)
	if a.opt.DisableAutoBudget {
		b.MaxTokens = maxTokens
	}
	log.Info("budget computed",
		zap.String("provider", provider), zap.String("model", model),
		zap.Int("rows", dg.Rows), zap.Int("prompt_tokens", b.PromptTokens),
		zap.Int("max_tokens", b.MaxTokens), zap.Float64("temperature", b.Temperature))

	call := func(ctx context.Context, b budget.Budget) (*ai.GenerateResponse, error) {
		p, err := prompt.Assemble(prompt.Request{Digest: digestText, Sections: sections, Question: req.Question, MaxOutputTokens: b.MaxTokens})
		if err != nil {
			return nil, err
		}
		res.PromptTokens = p.Tokens
		return rt.Generate(ctx, ai.UserPrompt(model, p.Text, b.MaxTokens, b.Temperature))
	}
	hook := func(from, to int, cause error) {
		res.Retries++
		a.opt.Metrics.ObserveRetry(provider)
		log.Warn("context length exceeded, retrying with smaller budget",
			zap.Int("from", from), zap.Int("to", to), zap.Error(cause))
	}

	started := time.Now()
	resp, final, callErr := budget.RetryOnContextLength(ctx, b, call, ai.IsContextLength, hook)
	elapsed := time.Since(started)
	res.Budget = final
	res.FinishedAt = a.opt.Now()

	if callErr != nil {
		res.Err = callErr
		res.ErrorMessage = Describe(callErr)
		log.Error("analysis failed", zap.Error(callErr))
		a.opt.Audit.APICall(res.RequestID, provider, model, 0, elapsed, callErr)
		a.opt.Metrics.ObserveCall(provider, model, false, 0, 0, 0, elapsed)
		a.save(ctx, res, log)
		return res, nil
	}

	usage := report.Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	if cost, ok := a.opt.Catalog.EstimateCostUSD(model, usage.PromptTokens, usage.CompletionTokens); ok {
		usage.EstimatedCostUSD = cost
	}
	res.Report = report.FromResponse(a.opt.Parser, resp.Text(), usage)
	if d, err := report.Digest(res.Report); err == nil {
		res.ReportDigest = d
	} else {
		log.Warn("report digest failed", zap.Error(err))
	}
	if res.Report.Empty() {
		res.Warnings = append(res.Warnings, "no report sections recognized; full text kept")
	}

	log.Info("analysis complete",
		zap.Int("total_tokens", usage.TotalTokens), zap.Int("retries", res.Retries),
		zap.Duration("elapsed", elapsed))
	a.opt.Audit.APICall(res.RequestID, provider, model, usage.TotalTokens, elapsed, nil)
	a.opt.Metrics.ObserveCall(provider, model, true, usage.PromptTokens, usage.CompletionTokens, usage.EstimatedCostUSD, elapsed)
	a.save(ctx, res, log)
	return res, nil
}

func (a *Analyzer) defaultModel(provider string) string {
	if provider == ai.NormalizeProvider(a.opt.DefaultProvider) && a.opt.DefaultModel != "" {
		return a.opt.DefaultModel
	}
	return a.opt.Catalog.DefaultModel(provider)
}

func (a *Analyzer) load(req Request) (*table.Table, error) {
	if req.Table != nil {
		return req.Table, nil
	}
	if req.File == "" {
		return nil, invalid("file", "no input table")
	}
	t, err := table.Load(req.File, req.Load)
	if err != nil {
		a.opt.Audit.FileLoad(req.File, 0, 0, err)
		return nil, invalid("file", "%v", err)
	}
	a.opt.Audit.FileLoad(req.File, t.Rows(), t.Width(), nil)
	if t.Rows() == 0 {
		return nil, invalid("file", "%s has no data rows", req.File)
	}
	return t, nil
}

func (a *Analyzer) save(ctx context.Context, res *Result, log *zap.Logger) {
	if a.opt.History == nil {
		return
	}
	rec := &history.Record{
		ID:             res.RequestID,
		File:           res.File,
		Provider:       res.Provider,
		Model:          res.Model,
		Rows:           res.Digest.Rows,
		RemovedColumns: len(res.Redaction.Removed()),
		Digest:         res.ReportDigest,
		Error:          res.ErrorMessage,
		StartedAt:      res.StartedAt,
		FinishedAt:     res.FinishedAt,
	}
	if res.Report != nil {
		rec.PromptTokens = res.Report.Usage.PromptTokens
		rec.CompletionTokens = res.Report.Usage.CompletionTokens
		rec.TotalTokens = res.Report.Usage.TotalTokens
		rec.Raw = res.Report.Raw
		rec.Sanitized = res.Report.Sanitized
		if b, err := res.Report.JSON(); err == nil {
			rec.ReportJSON = string(b)
		}
	}
	// a history failure must not turn a finished analysis into a failure
	if err := a.opt.History.Save(ctx, rec); err != nil {
		log.Warn("history save failed", zap.Error(err))
		a.opt.Audit.Error("history save", err)
	}
}

func reasonStrings(rep redact.Report) map[string]string {
	out := make(map[string]string)
	for col, r := range rep.Reasons() {
		out[col] = string(r)
	}
	return out
}

func isZeroRange(r table.DateRange) bool { return r.From.IsZero() && r.To.IsZero() }

// Describe turns a provider error into a short operator-facing message that
// keeps the provider's original text.
func Describe(err error) string {
	var (
		auth    *ai.AuthError
		rate    *ai.RateLimitError
		nf      *ai.ModelNotFoundError
		quota   *ai.QuotaExceededError
		unreach *ai.UnreachableError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "provider did not answer in time: " + err.Error()
	case errors.Is(err, context.Canceled):
		return "analysis cancelled"
	case ai.IsContextLength(err):
		return "prompt does not fit the model context even after reducing the output budget: " + err.Error()
	case errors.As(err, &auth):
		return "authentication failed, check the API key: " + err.Error()
	case errors.As(err, &rate):
		return "rate limited by provider, retry later: " + err.Error()
	case errors.As(err, &nf):
		return "model not available: " + err.Error()
	case errors.As(err, &quota):
		return "quota exceeded: " + err.Error()
	case errors.As(err, &unreach):
		return "provider unreachable: " + err.Error()
	}
	return err.Error()
}
