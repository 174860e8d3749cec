package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/shiftlog-cli/internal/ai"
	"github.com/KaramelBytes/shiftlog-cli/internal/budget"
)

// DirName is the per-user configuration directory under $HOME.
const DirName = ".shiftlog"

// Global configuration structure.
type Global struct {
	DefaultProvider string  `mapstructure:"default_provider" yaml:"default_provider"`
	DefaultModel    string  `mapstructure:"default_model" yaml:"default_model"`
	MaxTokens       int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature" yaml:"temperature"`
	AutoBudget      bool    `mapstructure:"auto_budget" yaml:"auto_budget"`

	// Provider credentials. Also read from the provider's standard env var.
	OpenAIAPIKey     string `mapstructure:"openai_api_key" yaml:"openai_api_key,omitempty"`
	AnthropicAPIKey  string `mapstructure:"anthropic_api_key" yaml:"anthropic_api_key,omitempty"`
	XAIAPIKey        string `mapstructure:"xai_api_key" yaml:"xai_api_key,omitempty"`
	GeminiAPIKey     string `mapstructure:"gemini_api_key" yaml:"gemini_api_key,omitempty"`
	OpenRouterAPIKey string `mapstructure:"openrouter_api_key" yaml:"openrouter_api_key,omitempty"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Local runtimes (Ollama)
	OllamaHost string `mapstructure:"ollama_host" yaml:"ollama_host"`

	// ContextWindows overrides the approximate per-provider context windows.
	ContextWindows map[string]int `mapstructure:"context_windows" yaml:"context_windows,omitempty"`
	// ModelsFile is an optional JSON catalog merged over the built-in models.
	ModelsFile string `mapstructure:"models_file" yaml:"models_file,omitempty"`
	// RulesFile is an optional YAML override of the redaction keyword lists.
	RulesFile string `mapstructure:"rules_file" yaml:"rules_file,omitempty"`

	LogFile     string `mapstructure:"log_file" yaml:"log_file,omitempty"`
	AuditLog    string `mapstructure:"audit_log" yaml:"audit_log"`
	HistoryDB   string `mapstructure:"history_db" yaml:"history_db"`
	MetricsFile string `mapstructure:"metrics_file" yaml:"metrics_file,omitempty"`
}

// apiKeyEnv maps providers to their conventional env vars.
var apiKeyEnv = map[string][]string{
	ai.ProviderOpenAI:     {"OPENAI_API_KEY"},
	ai.ProviderAnthropic:  {"ANTHROPIC_API_KEY"},
	ai.ProviderXAI:        {"XAI_API_KEY"},
	ai.ProviderGemini:     {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	ai.ProviderOpenRouter: {"OPENROUTER_API_KEY"},
}

// Dir returns ~/.shiftlog.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.shiftlog/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		path = filepath.Join(dir, "config.yaml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	// may hold API keys
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetEnvPrefix("SHIFTLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for provider, envs := range apiKeyEnv {
		key := provider + "_api_key"
		_ = v.BindEnv(append([]string{key, "SHIFTLOG_" + strings.ToUpper(key)}, envs...)...)
	}

	v.SetDefault("default_provider", ai.ProviderOpenAI)
	v.SetDefault("default_model", "gpt-4o-mini")
	v.SetDefault("max_tokens", 12000)
	v.SetDefault("temperature", 0.7)
	v.SetDefault("auto_budget", true)
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("ollama_host", ai.DefaultOllamaHost)
	v.SetDefault("audit_log", filepath.Join(dir, "logs", "audit.log"))
	v.SetDefault("history_db", filepath.Join(dir, "history.db"))

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	c.DefaultProvider = ai.NormalizeProvider(c.DefaultProvider)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate reports malformed values.
func (c *Global) Validate() error {
	var problems []string
	if c.MaxTokens <= 0 {
		problems = append(problems, fmt.Sprintf("max_tokens must be positive (got %d)", c.MaxTokens))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		problems = append(problems, fmt.Sprintf("temperature must be within [0,2] (got %g)", c.Temperature))
	}
	if c.HTTPTimeoutSec <= 0 {
		problems = append(problems, "http_timeout_sec must be positive")
	}
	if c.RetryMaxAttempts < 0 {
		problems = append(problems, "retry_max_attempts must not be negative")
	}
	for p, w := range c.ContextWindows {
		if w <= 0 {
			problems = append(problems, fmt.Sprintf("context_windows.%s must be positive", p))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// APIKey returns the configured credential for provider.
func (c *Global) APIKey(provider string) string {
	switch ai.NormalizeProvider(provider) {
	case ai.ProviderOpenAI:
		return c.OpenAIAPIKey
	case ai.ProviderAnthropic:
		return c.AnthropicAPIKey
	case ai.ProviderXAI:
		return c.XAIAPIKey
	case ai.ProviderGemini:
		return c.GeminiAPIKey
	case ai.ProviderOpenRouter:
		return c.OpenRouterAPIKey
	}
	return ""
}

// SetAPIKey stores key for provider.
func (c *Global) SetAPIKey(provider, key string) error {
	switch ai.NormalizeProvider(provider) {
	case ai.ProviderOpenAI:
		c.OpenAIAPIKey = key
	case ai.ProviderAnthropic:
		c.AnthropicAPIKey = key
	case ai.ProviderXAI:
		c.XAIAPIKey = key
	case ai.ProviderGemini:
		c.GeminiAPIKey = key
	case ai.ProviderOpenRouter:
		c.OpenRouterAPIKey = key
	default:
		return fmt.Errorf("provider %q takes no API key", provider)
	}
	return nil
}

// Windows returns the context window table with config overrides applied.
func (c *Global) Windows() budget.Windows { return budget.NewWindows(c.ContextWindows) }

// Runtime returns the client settings for provider.
func (c *Global) Runtime(provider string) ai.RuntimeConfig {
	rc := ai.RuntimeConfig{
		HTTPTimeout: time.Duration(c.HTTPTimeoutSec) * time.Second,
		RetryMax:    c.RetryMaxAttempts,
		BaseDelay:   time.Duration(c.RetryBaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(c.RetryMaxDelayMs) * time.Millisecond,
		APIKey:      c.APIKey(provider),
	}
	if ai.NormalizeProvider(provider) == ai.ProviderOllama {
		rc.Host = c.OllamaHost
	}
	return rc
}

// Catalog returns the built-in model catalog merged with ModelsFile, if set.
func (c *Global) Catalog() (ai.Catalog, error) {
	cat := ai.DefaultCatalog()
	if c.ModelsFile == "" {
		return cat, nil
	}
	extra, err := ai.LoadCatalogFromJSON(c.ModelsFile)
	if err != nil {
		return ai.Catalog{}, err
	}
	return cat.Merge(extra), nil
}

// Redacted returns a copy safe to print, with credentials masked.
func (c Global) Redacted() Global {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		if len(s) <= 8 {
			return "****"
		}
		return s[:4] + "****" + s[len(s)-4:]
	}
	c.OpenAIAPIKey = mask(c.OpenAIAPIKey)
	c.AnthropicAPIKey = mask(c.AnthropicAPIKey)
	c.XAIAPIKey = mask(c.XAIAPIKey)
	c.GeminiAPIKey = mask(c.GeminiAPIKey)
	c.OpenRouterAPIKey = mask(c.OpenRouterAPIKey)
	return c
}
