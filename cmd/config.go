package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/shiftlog-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/shiftlog-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set Shiftlog configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration (API keys masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		b, err := yaml.Marshal(c.Redacted())
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), string(b))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			fmt.Fprintln(cmd.OutOrStdout(), cfgFile)
			return nil
		}
		dir, err := cfgpkg.Dir()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(dir, "config.yaml"))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Example: `  shiftlog config set default_provider anthropic
  shiftlog config set openai_api_key sk-...
  shiftlog config set context_windows.ollama 32768`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if err := applySetting(c, args[0], args[1]); err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Saved config")
		return nil
	},
}

// applySetting updates one key on c.
func applySetting(c *cfgpkg.Global, key, val string) error {
	atoi := func() (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return 0, fmt.Errorf("invalid int for %s: %v", key, val)
		}
		return i, nil
	}
	var err error
	switch {
	case key == "default_provider":
		p := ai.NormalizeProvider(strings.ToLower(strings.TrimSpace(val)))
		if _, ok := ai.NewRegistry().Get(p, ai.RuntimeConfig{}); !ok {
			return fmt.Errorf("invalid default_provider: %s (use one of %s)", val, strings.Join(ai.NewRegistry().Names(), ", "))
		}
		c.DefaultProvider = p
	case key == "default_model":
		c.DefaultModel = val
	case key == "max_tokens":
		c.MaxTokens, err = atoi()
	case key == "temperature":
		f, perr := strconv.ParseFloat(val, 64)
		if perr != nil {
			return fmt.Errorf("invalid float for temperature: %w", perr)
		}
		c.Temperature = f
	case key == "auto_budget":
		b, perr := strconv.ParseBool(val)
		if perr != nil {
			return fmt.Errorf("invalid bool for auto_budget: %w", perr)
		}
		c.AutoBudget = b
	case key == "http_timeout_sec":
		c.HTTPTimeoutSec, err = atoi()
	case key == "retry_max_attempts":
		c.RetryMaxAttempts, err = atoi()
	case key == "ollama_host":
		c.OllamaHost = val
	case key == "models_file":
		c.ModelsFile = val
	case key == "rules_file":
		c.RulesFile = val
	case key == "log_file":
		c.LogFile = val
	case key == "audit_log":
		c.AuditLog = val
	case key == "history_db":
		c.HistoryDB = val
	case key == "metrics_file":
		c.MetricsFile = val
	case strings.HasSuffix(key, "_api_key"):
		return c.SetAPIKey(strings.TrimSuffix(key, "_api_key"), val)
	case strings.HasPrefix(key, "context_windows."):
		n, aerr := atoi()
		if aerr != nil {
			return aerr
		}
		if c.ContextWindows == nil {
			c.ContextWindows = map[string]int{}
		}
		c.ContextWindows[ai.NormalizeProvider(strings.TrimPrefix(key, "context_windows."))] = n
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return err
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
}
