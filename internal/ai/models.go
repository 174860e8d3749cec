package ai

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Model metadata and simple pricing helpers for UX warnings.
// Prices are illustrative and should be verified against provider docs.

// CostLevel is a coarse price tier used for operator warnings.
type CostLevel string

const (
	CostVeryLow CostLevel = "very_low"
	CostLow     CostLevel = "low"
	CostMedium  CostLevel = "medium"
	CostHigh    CostLevel = "high"
	CostUnknown CostLevel = "unknown"
)

type ModelInfo struct {
	Name          string    `json:"name"`
	Label         string    `json:"label,omitempty"`
	Provider      string    `json:"provider"`
	ContextTokens int       `json:"context_tokens,omitempty"` // approximate context window
	CostLevel     CostLevel `json:"cost_level,omitempty"`
	Recommended   bool      `json:"recommended,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	InputPerK     float64   `json:"input_per_k,omitempty"`  // USD per 1K input tokens
	OutputPerK    float64   `json:"output_per_k,omitempty"` // USD per 1K output tokens
}

// DisplayName prefers the label.
func (m ModelInfo) DisplayName() string {
	if m.Label != "" {
		return m.Label
	}
	return m.Name
}

// Catalog is an immutable provider/model table. Merge returns a new value.
type Catalog struct {
	models map[string]ModelInfo
}

var providerLabels = map[string]string{
	ProviderOpenAI:     "OpenAI",
	ProviderAnthropic:  "Anthropic Claude",
	ProviderXAI:        "xAI Grok",
	ProviderGemini:     "Google Gemini",
	ProviderOpenRouter: "OpenRouter",
	ProviderOllama:     "Ollama (local)",
}

// ProviderLabel returns a human label for a provider id.
func ProviderLabel(provider string) string {
	if l, ok := providerLabels[provider]; ok {
		return l
	}
	return provider
}

func builtinModels() []ModelInfo {
	return []ModelInfo{
		{Name: "gpt-4o-mini", Label: "GPT-4o Mini", Provider: ProviderOpenAI, ContextTokens: 128000, CostLevel: CostLow, Recommended: true, Notes: "Best token efficiency, complete answers", InputPerK: 0.00015, OutputPerK: 0.0006},
		{Name: "gpt-4o", Label: "GPT-4o", Provider: ProviderOpenAI, ContextTokens: 128000, CostLevel: CostMedium, Recommended: true, Notes: "Balanced choice, medium cost", InputPerK: 0.005, OutputPerK: 0.015},
		{Name: "gpt-3.5-turbo", Label: "GPT-3.5 Turbo", Provider: ProviderOpenAI, ContextTokens: 16385, CostLevel: CostVeryLow, Notes: "Quick tests, lower quality", InputPerK: 0.0005, OutputPerK: 0.0015},

		{Name: "claude-3-5-sonnet-20240620", Label: "Claude 3.5 Sonnet", Provider: ProviderAnthropic, ContextTokens: 200000, CostLevel: CostMedium, Recommended: true, Notes: "Strong alternative", InputPerK: 0.003, OutputPerK: 0.015},
		{Name: "claude-3-opus-20240229", Label: "Claude 3 Opus", Provider: ProviderAnthropic, ContextTokens: 200000, CostLevel: CostHigh, Notes: "Expensive and slow", InputPerK: 0.015, OutputPerK: 0.075},
		{Name: "claude-3-sonnet-20240229", Label: "Claude 3 Sonnet", Provider: ProviderAnthropic, ContextTokens: 200000, CostLevel: CostMedium, Recommended: true, Notes: "Balanced performance", InputPerK: 0.003, OutputPerK: 0.015},
		{Name: "claude-3-haiku-20240307", Label: "Claude 3 Haiku", Provider: ProviderAnthropic, ContextTokens: 200000, CostLevel: CostLow, Notes: "Quick tests", InputPerK: 0.00025, OutputPerK: 0.00125},

		{Name: "grok-2", Label: "Grok-2", Provider: ProviderXAI, ContextTokens: 131072, CostLevel: CostMedium, Notes: "Untested"},
		{Name: "grok-beta", Label: "Grok Beta", Provider: ProviderXAI, ContextTokens: 131072, CostLevel: CostMedium, Notes: "Beta, unstable"},

		{Name: "gemini-1.5-flash", Label: "Gemini 1.5 Flash", Provider: ProviderGemini, ContextTokens: 1000000, CostLevel: CostLow, Recommended: true, InputPerK: 0.0002, OutputPerK: 0.0008},
		{Name: "gemini-1.5-pro", Label: "Gemini 1.5 Pro", Provider: ProviderGemini, ContextTokens: 1000000, CostLevel: CostMedium, Recommended: true, InputPerK: 0.00125, OutputPerK: 0.005},

		{Name: "openai/gpt-4o-mini", Provider: ProviderOpenRouter, ContextTokens: 128000, CostLevel: CostLow, Recommended: true, InputPerK: 0.0006, OutputPerK: 0.0024},
		{Name: "anthropic/claude-3.5-sonnet", Provider: ProviderOpenRouter, ContextTokens: 200000, CostLevel: CostMedium, Recommended: true, InputPerK: 0.003, OutputPerK: 0.015},
		{Name: "deepseek/deepseek-r1:free", Provider: ProviderOpenRouter, ContextTokens: 128000, CostLevel: CostVeryLow, Notes: "Free tier, rate limited"},

		{Name: "llama3.1:8b-instruct", Provider: ProviderOllama, ContextTokens: 8192, CostLevel: CostVeryLow, Recommended: true, Notes: "Local runtime"},
		{Name: "mistral-nemo:latest", Provider: ProviderOllama, ContextTokens: 8192, CostLevel: CostVeryLow, Notes: "Local runtime"},
	}
}

// DefaultCatalog returns the built-in provider/model table.
func DefaultCatalog() Catalog { return NewCatalog(builtinModels()...) }

// NewCatalog builds a catalog from the given entries; later entries win.
func NewCatalog(models ...ModelInfo) Catalog {
	m := make(map[string]ModelInfo, len(models))
	for _, mi := range models {
		if mi.CostLevel == "" {
			mi.CostLevel = CostUnknown
		}
		m[mi.Name] = mi
	}
	return Catalog{models: m}
}

// Lookup returns ModelInfo and ok flag.
func (c Catalog) Lookup(name string) (ModelInfo, bool) {
	mi, ok := c.models[name]
	return mi, ok
}

// Merge returns a new catalog with the given entries added or replaced.
// Entries keyed by name; an empty Name takes the key.
func (c Catalog) Merge(m map[string]ModelInfo) Catalog {
	out := make([]ModelInfo, 0, len(c.models)+len(m))
	for _, v := range c.models {
		out = append(out, v)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := m[k]
		if v.Name == "" {
			v.Name = k
		}
		out = append(out, v)
	}
	return NewCatalog(out...)
}

// Providers lists provider ids present in the catalog, sorted.
func (c Catalog) Providers() []string {
	seen := map[string]bool{}
	var out []string
	for _, mi := range c.models {
		if !seen[mi.Provider] {
			seen[mi.Provider] = true
			out = append(out, mi.Provider)
		}
	}
	sort.Strings(out)
	return out
}

// Models returns a provider's models, recommended first, then by name.
// An empty provider returns every model.
func (c Catalog) Models(provider string) []ModelInfo {
	var out []ModelInfo
	for _, mi := range c.models {
		if provider == "" || mi.Provider == provider {
			out = append(out, mi)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		if out[i].Recommended != out[j].Recommended {
			return out[i].Recommended
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// RecommendedModels returns every recommended model across providers.
func (c Catalog) RecommendedModels() []ModelInfo {
	var out []ModelInfo
	for _, mi := range c.Models("") {
		if mi.Recommended {
			out = append(out, mi)
		}
	}
	return out
}

// DefaultModel returns the first recommended model of a provider, or "".
func (c Catalog) DefaultModel(provider string) string {
	ms := c.Models(provider)
	if len(ms) == 0 {
		return ""
	}
	return ms[0].Name
}

// EstimateCostUSD estimates total cost in USD for given tokens using model pricing.
// If the model is unknown, returns 0 and ok=false.
func (c Catalog) EstimateCostUSD(model string, promptTokens, completionTokens int) (float64, bool) {
	mi, ok := c.Lookup(model)
	if !ok {
		return 0, false
	}
	inCost := (float64(promptTokens) / 1000.0) * mi.InputPerK
	outCost := (float64(completionTokens) / 1000.0) * mi.OutputPerK
	return inCost + outCost, true
}

// CostWarning returns an operator warning for high-cost models and for
// medium-cost models that are not recommended. Unknown models get none.
func (c Catalog) CostWarning(provider, model string) (string, bool) {
	mi, ok := c.Lookup(model)
	if !ok || (provider != "" && mi.Provider != provider) {
		return "", false
	}
	switch {
	case mi.CostLevel == CostHigh:
		return fmt.Sprintf("HIGH COST: '%s' has high token costs. %s", mi.DisplayName(), mi.Notes), true
	case mi.CostLevel == CostMedium && !mi.Recommended:
		return fmt.Sprintf("COST NOTICE: '%s' has medium token costs. %s", mi.DisplayName(), mi.Notes), true
	}
	return "", false
}

// RecommendModel returns a model name for a provider and tier (cheap|balanced|high-context).
func (c Catalog) RecommendModel(provider, tier string) (string, bool) {
	ms := c.Models(provider)
	if len(ms) == 0 {
		return "", false
	}
	var best ModelInfo
	found := false
	for _, mi := range ms {
		var better bool
		switch tier {
		case "cheap":
			better = !found || costRank(mi.CostLevel) < costRank(best.CostLevel)
		case "balanced":
			better = mi.Recommended && (!found || costRank(mi.CostLevel) > costRank(best.CostLevel))
		case "high-context":
			better = !found || mi.ContextTokens > best.ContextTokens
		default:
			return "", false
		}
		if better {
			best, found = mi, true
		}
	}
	return best.Name, found
}

func costRank(l CostLevel) int {
	switch l {
	case CostVeryLow:
		return 0
	case CostLow:
		return 1
	case CostMedium:
		return 2
	case CostHigh:
		return 3
	}
	return 4
}

// ContextWindows returns the largest known context window per provider.
func (c Catalog) ContextWindows() map[string]int {
	out := map[string]int{}
	for _, mi := range c.models {
		if mi.ContextTokens > out[mi.Provider] {
			out[mi.Provider] = mi.ContextTokens
		}
	}
	return out
}

// ---- Sync/override helpers ----

// LoadCatalogFromJSON loads a JSON object map[string]ModelInfo from a file path.
// Example JSON entry:
// { "gpt-4o-mini": {"provider":"openai","context_tokens":128000,"cost_level":"low","input_per_k":0.00015} }
func LoadCatalogFromJSON(path string) (map[string]ModelInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	var m map[string]ModelInfo
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	return m, nil
}
