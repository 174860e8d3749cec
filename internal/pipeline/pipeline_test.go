package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/shiftlog-cli/internal/ai"
	"github.com/KaramelBytes/shiftlog-cli/internal/history"
	"github.com/KaramelBytes/shiftlog-cli/internal/metrics"
	"github.com/KaramelBytes/shiftlog-cli/internal/report"
	"github.com/KaramelBytes/shiftlog-cli/internal/table"
)

const modelAnswer = `📊 DAILY SUMMARY
Kiln 1 stable. Cost was $1200 (see https://example.com/x).
⚠️ ISSUES
- Overheating on mill 2 (%60)
- Belt jam %40
🎯 RECOMMENDATIONS
- Add vibration sensor`

// fakeRuntime answers from a script of errors, then with modelAnswer.
type fakeRuntime struct {
	mu       sync.Mutex
	errs     []error
	requests []ai.GenerateRequest
}

func (f *fakeRuntime) Generate(_ context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return &ai.GenerateResponse{
		Choices: []ai.Choice{{Message: ai.Message{Role: "assistant", Content: modelAnswer}}},
		Usage:   ai.Usage{PromptTokens: 1000, CompletionTokens: 500, TotalTokens: 1500},
	}, nil
}

func (f *fakeRuntime) maxTokens() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, 0, len(f.requests))
	for _, r := range f.requests {
		out = append(out, r.MaxTokens)
	}
	return out
}

type fixture struct {
	analyzer *Analyzer
	runtime  *fakeRuntime
	metrics  *metrics.Recorder
	history  *history.Store
}

func newFixture(t *testing.T, errs ...error) *fixture {
	t.Helper()
	rt := &fakeRuntime{errs: errs}
	reg := ai.NewRegistry()
	reg.Register(ai.ProviderOpenAI, func(ai.RuntimeConfig) ai.Runtime { return rt })
	store, err := history.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	rec := metrics.New()
	a, err := New(Options{
		Registry: reg,
		RuntimeConfig: func(p string) ai.RuntimeConfig {
			if p == ai.ProviderOpenAI {
				return ai.RuntimeConfig{APIKey: "sk-test"}
			}
			return ai.RuntimeConfig{}
		},
		DefaultProvider:    ai.ProviderOpenAI,
		DefaultModel:       "gpt-4o-mini",
		DefaultMaxTokens:   12000,
		DefaultTemperature: 0.7,
		Metrics:            rec,
		History:            store,
		Now:                func() time.Time { return time.Date(2025, 8, 7, 10, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return &fixture{analyzer: a, runtime: rt, metrics: rec, history: store}
}

func shiftTable(t *testing.T) *table.Table {
	t.Helper()
	tb, err := table.FromRecords("shifts", []string{"Date", "Shift", "Equipment", "Description", "Personel"}, [][]string{
		{"2025-08-01", "A", "Kiln", "Overheating", "Ali Veli"},
		{"2025-08-02", "B", "Mill", "Belt jam", "Ayşe Kaya"},
		{"2025-08-03", "C", "Mill", "Overheating", "Mehmet Demir"},
	})
	require.NoError(t, err)
	return tb
}

func TestAnalyzeSuccess(t *testing.T) {
	f := newFixture(t)
	res, err := f.analyzer.Analyze(context.Background(), Request{Table: shiftTable(t), File: "shifts.xlsx"})
	require.NoError(t, err)
	require.True(t, res.OK(), res.ErrorMessage)

	assert.Equal(t, "openai", res.Provider)
	assert.Equal(t, "gpt-4o-mini", res.Model)
	assert.Equal(t, []string{"Personel"}, res.Redaction.Removed())
	assert.Equal(t, 3, res.Digest.Rows)
	assert.Equal(t, 0, res.Retries)
	assert.Len(t, res.ReportDigest, 64)

	require.Len(t, f.runtime.requests, 1)
	sent := f.runtime.requests[0].Messages[0].Content
	assert.NotContains(t, sent, "Ali Veli", "removed column must not reach the provider")
	assert.Equal(t, 0.7, f.runtime.requests[0].Temperature)

	assert.Equal(t, []string{"Overheating on mill 2 (%60)", "Belt jam %40"}, res.Report.Items(report.SectionIssues))
	assert.NotContains(t, res.Report.Sanitized, "https://")
	assert.NotContains(t, res.Report.Sanitized, "$")
	assert.Equal(t, 1500, res.Report.Usage.TotalTokens)
	assert.Greater(t, res.Report.Usage.EstimatedCostUSD, 0.0)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Analyses.WithLabelValues("openai", "gpt-4o-mini", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ColumnsRemoved.WithLabelValues("name pattern")))

	rec, err := f.history.Get(context.Background(), res.RequestID)
	require.NoError(t, err)
	assert.True(t, rec.OK())
	assert.Equal(t, res.ReportDigest, rec.Digest)
	assert.Equal(t, 1, rec.RemovedColumns)
	assert.Contains(t, rec.ReportJSON, `"sections"`)

	summary := res.ManagerSummary("weekly")
	assert.Contains(t, summary, "CRITICAL ISSUES (2)")
	assert.Contains(t, summary, "Token usage: 1500")
}

func TestAnalyzeShrinksOnContextLength(t *testing.T) {
	overflow := &ai.ContextLengthError{APIError: &ai.APIError{StatusCode: 400, Code: "context_length_exceeded", Message: "maximum context length exceeded"}}
	f := newFixture(t, overflow, errors.New("This model's maximum context length is 128000 tokens"))

	res, err := f.analyzer.Analyze(context.Background(), Request{Table: shiftTable(t), MaxTokens: 16000})
	require.NoError(t, err)
	require.True(t, res.OK(), res.ErrorMessage)

	assert.Equal(t, []int{16000, 12000, 9000}, f.runtime.maxTokens())
	assert.Equal(t, 2, res.Retries)
	assert.Equal(t, 9000, res.Budget.MaxTokens)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.BudgetRetries.WithLabelValues("openai")))
	assert.Contains(t, f.runtime.requests[2].Messages[0].Content, "9000")
}

func TestAnalyzeProviderErrorIsResult(t *testing.T) {
	authErr := &ai.AuthError{APIError: &ai.APIError{StatusCode: 401, Message: "invalid api key"}}
	f := newFixture(t, authErr)

	res, err := f.analyzer.Analyze(context.Background(), Request{Table: shiftTable(t)})
	require.NoError(t, err, "provider errors are reported in the result")
	assert.False(t, res.OK())
	assert.Nil(t, res.Report)
	assert.ErrorAs(t, res.Err, new(*ai.AuthError))
	assert.Contains(t, res.ErrorMessage, "invalid api key")
	assert.Len(t, f.runtime.requests, 1, "auth errors are not retried")
	assert.True(t, strings.HasPrefix(res.ManagerSummary("daily"), "❌ Report could not be generated: "))

	rec, err := f.history.Get(context.Background(), res.RequestID)
	require.NoError(t, err)
	assert.False(t, rec.OK())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Analyses.WithLabelValues("openai", "gpt-4o-mini", "failure")))
}

func TestAnalyzeValidation(t *testing.T) {
	hot := 3.0
	cases := []struct {
		name  string
		req   Request
		field string
	}{
		{"missing credential", Request{Provider: "anthropic"}, "api_key"},
		{"unknown section", Request{Sections: []string{"horoscope"}}, "sections"},
		{"negative tokens", Request{MaxTokens: -1}, "max_tokens"},
		{"temperature", Request{Temperature: &hot}, "temperature"},
		{"no input", Request{}, "file"},
		{"missing file", Request{File: filepath.Join("testdata", "nope.xlsx")}, "file"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.analyzer.Analyze(context.Background(), c.req)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, c.field, ve.Field)
			assert.Empty(t, f.runtime.requests, "nothing is sent on validation failure")
		})
	}
}

func TestAnalyzeDateRange(t *testing.T) {
	f := newFixture(t)
	from := time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC)
	res, err := f.analyzer.Analyze(context.Background(), Request{
		Table:     shiftTable(t),
		DateRange: table.DateRange{From: from},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Digest.Rows)

	_, err = f.analyzer.Analyze(context.Background(), Request{
		Table:     shiftTable(t),
		DateRange: table.DateRange{From: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)},
	})
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestDescribe(t *testing.T) {
	assert.Contains(t, Describe(context.DeadlineExceeded), "did not answer in time")
	assert.Contains(t, Describe(&ai.RateLimitError{APIError: &ai.APIError{StatusCode: 429, Message: "slow down"}}), "rate limited")
	assert.Equal(t, "boom", Describe(errors.New("boom")))
}
