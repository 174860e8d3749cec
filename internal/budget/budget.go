// Package budget sizes the model response for a prompt: output token ceiling,
// temperature cap, and the shrink step used after a context-length rejection.
package budget

import (
	"context"
	"math"
	"strings"

	"github.com/KaramelBytes/shiftlog-cli/internal/utils"
)

const (
	// MinTokens is the smallest output budget ever requested.
	MinTokens = 512
	// MaxTokens caps the output budget regardless of context room.
	MaxTokens = 20000
	// DefaultWindow is used for providers missing from the window table.
	DefaultWindow = 8192
	// LargeDatasetRows is the row count from which temperature is capped.
	LargeDatasetRows = 5000
	// LargeDatasetTemperature is the temperature ceiling for large datasets.
	LargeDatasetTemperature = 0.6
	usableWindowShare       = 0.8
)

// Windows is an immutable provider -> approximate context window table.
type Windows struct {
	m map[string]int
}

var defaultWindows = map[string]int{
	"openai":     128000,
	"anthropic":  200000,
	"xai":        131072,
	"gemini":     1000000,
	"openrouter": 128000,
	"ollama":     8192,
}

// DefaultWindows returns the built-in table.
func DefaultWindows() Windows { return NewWindows(nil) }

// NewWindows returns the built-in table overlaid with overrides. Non-positive
// override values are ignored.
func NewWindows(overrides map[string]int) Windows {
	m := make(map[string]int, len(defaultWindows)+len(overrides))
	for k, v := range defaultWindows {
		m[k] = v
	}
	for k, v := range overrides {
		if v > 0 {
			m[strings.ToLower(strings.TrimSpace(k))] = v
		}
	}
	return Windows{m: m}
}

// Lookup returns the provider's window or DefaultWindow.
func (w Windows) Lookup(provider string) int {
	if v, ok := w.m[strings.ToLower(strings.TrimSpace(provider))]; ok {
		return v
	}
	return DefaultWindow
}

// IsZero reports whether w is the zero value rather than a built table.
func (w Windows) IsZero() bool { return w.m == nil }

// All returns a copy of the table.
func (w Windows) All() map[string]int {
	out := make(map[string]int, len(w.m))
	for k, v := range w.m {
		out[k] = v
	}
	return out
}

// Input describes one request to budget.
type Input struct {
	Prompt               string
	Provider             string
	Rows                 int
	RequestedMaxTokens   int
	RequestedTemperature float64
}

// Budget is the computed generation budget.
type Budget struct {
	MaxTokens     int     `json:"max_tokens"`
	Temperature   float64 `json:"temperature"`
	PromptTokens  int     `json:"prompt_tokens"`
	ContextWindow int     `json:"context_window"`
	SafeRoom      int     `json:"safe_room"`
	RowFloor      int     `json:"row_floor"`
}

// RowFloor returns the minimum output budget for a dataset of the given size.
// It never decreases as rows grows.
func RowFloor(rows int) int {
	switch {
	case rows < 1000:
		return 4000
	case rows < 5000:
		return 8000
	case rows < 15000:
		return 12000
	default:
		return 16000
	}
}

// Compute sizes the response for in using the window table w.
func Compute(in Input, w Windows) Budget {
	b := Budget{
		PromptTokens:  utils.CountTokens(in.Prompt),
		ContextWindow: w.Lookup(in.Provider),
		RowFloor:      RowFloor(in.Rows),
	}
	b.SafeRoom = max(MinTokens, int(math.Floor(usableWindowShare*float64(b.ContextWindow)))-b.PromptTokens)
	want := max(in.RequestedMaxTokens, b.RowFloor)
	b.MaxTokens = max(MinTokens, min(want, b.SafeRoom, MaxTokens))

	t := math.Min(1, math.Max(0, in.RequestedTemperature))
	if in.Rows >= LargeDatasetRows && t > LargeDatasetTemperature {
		t = LargeDatasetTemperature
	}
	b.Temperature = t
	return b
}

// Shrink reduces a budget by 25%, stepping down at least MinTokens. ok is false
// when the result would fall below MinTokens.
func Shrink(maxTokens int) (int, bool) {
	step := max(MinTokens, maxTokens/4)
	next := maxTokens - step
	if next < MinTokens {
		return maxTokens, false
	}
	return next, true
}

// RetryHook observes each shrink before the retry is issued.
type RetryHook func(from, to int, cause error)

// RetryOnContextLength calls fn with b and, each time fn fails with an error that
// isContextLength accepts, shrinks MaxTokens once and retries. It stops at the first
// success, a different error, a cancelled context, or when no further shrink is possible.
func RetryOnContextLength[T any](ctx context.Context, b Budget, fn func(context.Context, Budget) (T, error), isContextLength func(error) bool, hook RetryHook) (T, Budget, error) {
	for {
		out, err := fn(ctx, b)
		if err == nil || !isContextLength(err) {
			return out, b, err
		}
		next, ok := Shrink(b.MaxTokens)
		if !ok || ctx.Err() != nil {
			return out, b, err
		}
		if hook != nil {
			hook(b.MaxTokens, next, err)
		}
		b.MaxTokens = next
	}
}
