package ai

import "context"

// Runtime is a minimal interface implemented by AI backends/runtimes:
// hosted chat-completion providers and local runtimes (e.g., Ollama).
// It aligns to the shared request/response types in this package.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider identifiers used across the CLI for selection.
const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderXAI        = "xai"
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
)

// NormalizeProvider maps common aliases onto provider ids.
func NormalizeProvider(p string) string {
	switch p {
	case "google":
		return ProviderGemini
	case "claude":
		return ProviderAnthropic
	case "grok":
		return ProviderXAI
	case "local":
		return ProviderOllama
	}
	return p
}

// NeedsAPIKey reports whether the provider requires a credential.
func NeedsAPIKey(provider string) bool { return provider != ProviderOllama }
