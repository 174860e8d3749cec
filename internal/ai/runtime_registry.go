package ai

import (
	"fmt"
	"sort"
	"time"
)

// RuntimeFactory builds a Runtime from the generic config below.
type RuntimeFactory func(RuntimeConfig) Runtime

// RuntimeConfig carries common knobs used by runtimes.
type RuntimeConfig struct {
	// Common
	HTTPTimeout time.Duration
	RetryMax    int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Hosted providers
	APIKey  string
	BaseURL string
	// Ollama
	Host string
}

// Registry maps provider names to factories. The zero value is empty;
// NewRegistry returns one with the built-in providers.
type Registry struct {
	factories map[string]RuntimeFactory
}

// NewRegistry returns a registry with every built-in provider registered.
func NewRegistry() *Registry {
	r := &Registry{factories: map[string]RuntimeFactory{}}
	for _, p := range []string{ProviderOpenAI, ProviderXAI, ProviderOpenRouter} {
		provider := p
		r.Register(provider, func(c RuntimeConfig) Runtime {
			c = withHostedDefaults(c)
			return NewClientWithBaseURL(provider, c.APIKey, c.HTTPTimeout, c.RetryMax, c.BaseDelay, c.MaxDelay, c.BaseURL)
		})
	}
	r.Register(ProviderAnthropic, func(c RuntimeConfig) Runtime {
		c = withHostedDefaults(c)
		return NewAnthropicClient(c.APIKey, c.HTTPTimeout, c.RetryMax, c.BaseURL)
	})
	r.Register(ProviderGemini, func(c RuntimeConfig) Runtime {
		c = withHostedDefaults(c)
		return NewGeminiClientWithBaseURL(c.APIKey, c.HTTPTimeout, c.BaseURL)
	})
	r.Register(ProviderOllama, func(c RuntimeConfig) Runtime {
		if c.HTTPTimeout <= 0 {
			c.HTTPTimeout = 60 * time.Second
		}
		if c.RetryMax <= 0 {
			c.RetryMax = 2
		}
		if c.BaseDelay <= 0 {
			c.BaseDelay = 200 * time.Millisecond
		}
		if c.MaxDelay <= 0 {
			c.MaxDelay = 1 * time.Second
		}
		return NewOllamaClient(c.Host, c.HTTPTimeout, c.RetryMax, c.BaseDelay, c.MaxDelay)
	})
	return r
}

func withHostedDefaults(c RuntimeConfig) RuntimeConfig {
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 60 * time.Second
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 4 * time.Second
	}
	return c
}

// Register registers a provider name with its factory, replacing any previous one.
func (r *Registry) Register(name string, f RuntimeFactory) {
	if r.factories == nil {
		r.factories = map[string]RuntimeFactory{}
	}
	r.factories[name] = f
}

// Get creates a Runtime for the given provider if registered.
func (r *Registry) Get(name string, cfg RuntimeConfig) (Runtime, bool) {
	if f, ok := r.factories[NormalizeProvider(name)]; ok {
		return f(cfg), true
	}
	return nil, false
}

// Resolve is Get with an error for unknown providers.
func (r *Registry) Resolve(name string, cfg RuntimeConfig) (Runtime, error) {
	rt, ok := r.Get(name, cfg)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (known: %v)", name, r.Names())
	}
	return rt, nil
}

// Names lists registered providers, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
