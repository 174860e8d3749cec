// Package metrics keeps per-process analysis counters on a private
// Prometheus registry and exports them as a node-exporter textfile.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the collectors. The zero value is not usable; use New.
type Recorder struct {
	reg *prometheus.Registry

	Analyses        *prometheus.CounterVec
	Tokens          *prometheus.CounterVec
	CostUSD         *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	BudgetRetries   *prometheus.CounterVec
	ColumnsRemoved  *prometheus.CounterVec
	BlocksOmitted   *prometheus.CounterVec
	RowsAnalyzed    prometheus.Counter
}

// New registers every collector on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		Analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shiftlog_analyses_total",
			Help: "Analyses run, by provider, model and outcome",
		}, []string{"provider", "model", "status"}),
		Tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shiftlog_llm_tokens_total",
			Help: "LLM tokens consumed",
		}, []string{"provider", "model", "type"}),
		CostUSD: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shiftlog_llm_cost_usd_total",
			Help: "Estimated LLM cost in USD",
		}, []string{"provider", "model"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shiftlog_llm_request_duration_seconds",
			Help:    "LLM request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"provider", "model"}),
		BudgetRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shiftlog_budget_retries_total",
			Help: "Context-overflow retries with a reduced output budget",
		}, []string{"provider"}),
		ColumnsRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shiftlog_columns_removed_total",
			Help: "Columns removed by redaction, by reason",
		}, []string{"reason"}),
		BlocksOmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shiftlog_digest_blocks_omitted_total",
			Help: "Digest blocks omitted, by block",
		}, []string{"block"}),
		RowsAnalyzed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shiftlog_rows_analyzed_total",
			Help: "Table rows sent through the digest",
		}),
	}
	r.reg.MustRegister(r.Analyses, r.Tokens, r.CostUSD, r.RequestDuration,
		r.BudgetRetries, r.ColumnsRemoved, r.BlocksOmitted, r.RowsAnalyzed)
	return r
}

// Registry exposes the private registry as a Gatherer.
func (r *Recorder) Registry() prometheus.Gatherer { return r.reg }

// ObserveCall records one provider call.
func (r *Recorder) ObserveCall(provider, model string, ok bool, promptTokens, completionTokens int, costUSD float64, d time.Duration) {
	if r == nil {
		return
	}
	status := "success"
	if !ok {
		status = "failure"
	}
	r.Analyses.WithLabelValues(provider, model, status).Inc()
	r.Tokens.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	r.Tokens.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	if costUSD > 0 {
		r.CostUSD.WithLabelValues(provider, model).Add(costUSD)
	}
	r.RequestDuration.WithLabelValues(provider, model).Observe(d.Seconds())
}

// ObserveRetry counts one budget shrink.
func (r *Recorder) ObserveRetry(provider string) {
	if r == nil {
		return
	}
	r.BudgetRetries.WithLabelValues(provider).Inc()
}

// ObserveRedaction counts removed columns by reason.
func (r *Recorder) ObserveRedaction(reasons map[string]string) {
	if r == nil {
		return
	}
	for _, reason := range reasons {
		r.ColumnsRemoved.WithLabelValues(reason).Inc()
	}
}

// ObserveDigest counts rows and omitted blocks.
func (r *Recorder) ObserveDigest(rows int, omitted []string) {
	if r == nil {
		return
	}
	r.RowsAnalyzed.Add(float64(rows))
	for _, b := range omitted {
		r.BlocksOmitted.WithLabelValues(b).Inc()
	}
}

// WriteTextfile writes the registry in text exposition format, atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
