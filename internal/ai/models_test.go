package ai

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCostWarning(t *testing.T) {
	c := DefaultCatalog()
	cases := []struct {
		provider, model string
		want            bool
	}{
		{ProviderAnthropic, "claude-3-opus-20240229", true},
		{ProviderXAI, "grok-2", true},
		{ProviderOpenAI, "gpt-4o", false},
		{ProviderOpenAI, "gpt-4o-mini", false},
		{ProviderOpenAI, "gpt-3.5-turbo", false},
		{ProviderOpenAI, "unknown-model", false},
		{ProviderOpenAI, "claude-3-opus-20240229", false},
	}
	for _, tc := range cases {
		msg, got := c.CostWarning(tc.provider, tc.model)
		if got != tc.want {
			t.Errorf("%s/%s: warning=%v want %v (%q)", tc.provider, tc.model, got, tc.want, msg)
		}
	}
}

func TestRecommendModel(t *testing.T) {
	c := DefaultCatalog()
	if name, ok := c.RecommendModel(ProviderOpenAI, "cheap"); !ok || name != "gpt-3.5-turbo" {
		t.Fatalf("unexpected recommendation for openai/cheap: %s", name)
	}
	if name, ok := c.RecommendModel(ProviderOpenAI, "balanced"); !ok || name != "gpt-4o" {
		t.Fatalf("unexpected recommendation for openai/balanced: %s", name)
	}
	if name, ok := c.RecommendModel(ProviderGemini, "high-context"); !ok || name != "gemini-1.5-flash" {
		t.Fatalf("unexpected recommendation for gemini/high-context: %s", name)
	}
	if _, ok := c.RecommendModel(ProviderOpenAI, "unknown"); ok {
		t.Fatalf("expected unknown tier to be false")
	}
	if _, ok := c.RecommendModel("nope", "cheap"); ok {
		t.Fatalf("expected unknown provider to be false")
	}
}

func TestDefaultModelPrefersRecommended(t *testing.T) {
	c := DefaultCatalog()
	if got := c.DefaultModel(ProviderOpenAI); got != "gpt-4o" && got != "gpt-4o-mini" {
		t.Fatalf("expected a recommended openai model, got %s", got)
	}
	if got := c.DefaultModel("nope"); got != "" {
		t.Fatalf("expected empty default, got %s", got)
	}
}

func TestMergeDoesNotMutate(t *testing.T) {
	base := DefaultCatalog()
	merged := base.Merge(map[string]ModelInfo{"gpt-4o": {Provider: ProviderOpenAI, CostLevel: CostHigh}})
	if mi, _ := base.Lookup("gpt-4o"); mi.CostLevel != CostMedium {
		t.Fatalf("base catalog mutated: %+v", mi)
	}
	mi, ok := merged.Lookup("gpt-4o")
	if !ok || mi.CostLevel != CostHigh || mi.Name != "gpt-4o" {
		t.Fatalf("merge not applied: %+v", mi)
	}
}

func TestLoadCatalogFromJSON(t *testing.T) {
	p := filepath.Join(t.TempDir(), "cat.json")
	body := `{"my-model":{"provider":"ollama","context_tokens":32768,"cost_level":"very_low"}}`
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := LoadCatalogFromJSON(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	c := DefaultCatalog().Merge(m)
	mi, ok := c.Lookup("my-model")
	if !ok || mi.ContextTokens != 32768 || mi.Provider != ProviderOllama {
		t.Fatalf("unexpected entry %+v", mi)
	}
	if w := c.ContextWindows()[ProviderOllama]; w != 32768 {
		t.Fatalf("expected ollama window 32768, got %d", w)
	}
}

func TestEstimateCost(t *testing.T) {
	c := DefaultCatalog()
	cost, ok := c.EstimateCostUSD("gpt-4o", 1000, 1000)
	if !ok || cost < 0.0199 || cost > 0.0201 {
		t.Fatalf("unexpected cost %v ok=%v", cost, ok)
	}
	if _, ok := c.EstimateCostUSD("nope", 1, 1); ok {
		t.Fatal("unknown model should not be priced")
	}
}
