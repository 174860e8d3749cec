package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/shiftlog-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/shiftlog-cli/internal/config"
)

var modelsProvider string

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List providers and models with cost levels",
	Example: `  shiftlog models
  shiftlog models --provider anthropic
  shiftlog models show
  shiftlog models recommend --provider openai --tier cheap
  shiftlog models check anthropic claude-3-opus-20240229
  shiftlog models sync --file ./models.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()
		provider := ai.NormalizeProvider(strings.ToLower(modelsProvider))
		windows := a.catalog.ContextWindows()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		for _, p := range a.catalog.Providers() {
			if provider != "" && p != provider {
				continue
			}
			key := "set"
			if ai.NeedsAPIKey(p) && a.cfg.APIKey(p) == "" {
				key = "missing"
			} else if !ai.NeedsAPIKey(p) {
				key = "not needed"
			}
			fmt.Fprintf(w, "\n%s (%s)\tAPI key: %s\tmax context: %d\n", ai.ProviderLabel(p), p, key, windows[p])
			for _, m := range a.catalog.Models(p) {
				mark := " "
				if m.Recommended {
					mark = "★"
				}
				if p == a.cfg.DefaultProvider && m.Name == a.cfg.DefaultModel {
					mark = "✓"
				}
				fmt.Fprintf(w, "  %s %s\t%s\t%s\t%s\n", mark, m.Name, m.DisplayName(), m.CostLevel, m.Notes)
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "\n✓ default  ★ recommended")
		return nil
	},
}

var modelsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective model catalog as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()
		m := map[string]ai.ModelInfo{}
		for _, mi := range a.catalog.Models("") {
			m[mi.Name] = mi
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	},
}

var recommendTier string

var modelsRecommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Suggest a model for a provider and tier (cheap|balanced|high-context)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()
		provider := ai.NormalizeProvider(strings.ToLower(modelsProvider))
		if provider == "" {
			provider = a.cfg.DefaultProvider
		}
		name, ok := a.catalog.RecommendModel(provider, recommendTier)
		if !ok {
			return fmt.Errorf("no %s model known for provider %s", recommendTier, provider)
		}
		fmt.Fprintln(cmd.OutOrStdout(), name)
		return nil
	},
}

var modelsCheckCmd = &cobra.Command{
	Use:   "check <provider> <model>",
	Short: "Print the cost notice for a model, if any",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()
		provider := ai.NormalizeProvider(strings.ToLower(args[0]))
		if msg, ok := a.catalog.CostWarning(provider, args[1]); ok {
			fmt.Fprintf(cmd.OutOrStdout(), "⚠ %s\n", msg)
			return nil
		}
		if _, known := a.catalog.Lookup(args[1]); !known {
			fmt.Fprintf(cmd.OutOrStdout(), "⚠ %s is not in the catalog; cost unknown\n", args[1])
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s has no cost notice\n", args[1])
		return nil
	},
}

var syncPath string

var modelsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Merge a JSON model catalog into the configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncPath == "" {
			return fmt.Errorf("--file is required")
		}
		m, err := ai.LoadCatalogFromJSON(syncPath)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		c, err := requireConfig()
		if err != nil {
			return err
		}
		abs, err := filepath.Abs(syncPath)
		if err != nil {
			return err
		}
		c.ModelsFile = abs
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Merged %d model(s) from %s into the catalog\n", len(m), abs)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsShowCmd)
	modelsCmd.AddCommand(modelsRecommendCmd)
	modelsCmd.AddCommand(modelsCheckCmd)
	modelsCmd.AddCommand(modelsSyncCmd)

	modelsCmd.PersistentFlags().StringVar(&modelsProvider, "provider", "", "limit to one provider")
	modelsRecommendCmd.Flags().StringVar(&recommendTier, "tier", "balanced", "cheap | balanced | high-context")
	modelsSyncCmd.Flags().StringVar(&syncPath, "file", "", "path to JSON catalog file")
}
