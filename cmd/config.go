package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/heywhy/bucket/internal/config"
	"github.com/heywhy/bucket/internal/loader"
)

var (
	configForce        bool
	configCacheAuto    bool
	configCacheExpires string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the bucket configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [PATH]",
	Short: "Write a commented default config file",
	Long: `Write a commented default config file to PATH, or to .bucket/config.yaml
when no path is given. An existing file is kept unless --force is set.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := localConfigPath
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.WriteDefaultConfig(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := config.Validate(cfg); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Fprintf(out, "# %s\n", used)
		}
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(effectiveConfig(cfg)); err != nil {
			return err
		}
		return enc.Close()
	},
}

var configFilterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Add or remove id filters",
}

var configFilterAddCmd = &cobra.Command{
	Use:   "add PREFIX REPLACEMENT",
	Short: "Route ids starting with PREFIX to REPLACEMENT",
	Long: `Route ids starting with PREFIX (case-insensitive) to REPLACEMENT. A filter
with the same prefix is replaced.

Example:
  bucket config filter add Shared/ https://cdn.example.com/shared/`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		filters, err := config.AddFilter(configPath(), cfg.Filters, loader.Filter{Prefix: args[0], Replacement: args[1]})
		if err != nil {
			return err
		}
		cfg.Filters = filters
		fmt.Fprintf(cmd.OutOrStdout(), "%d filter(s) in %s\n", len(filters), configPath())
		return nil
	},
}

var configFilterRemoveCmd = &cobra.Command{
	Use:   "remove PREFIX",
	Short: "Remove the filter for PREFIX",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filters, err := config.RemoveFilter(configPath(), cfg.Filters, args[0])
		if err != nil {
			return err
		}
		cfg.Filters = filters
		fmt.Fprintf(cmd.OutOrStdout(), "%d filter(s) in %s\n", len(filters), configPath())
		return nil
	},
}

var configCacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Set the source cache policy",
	Long: `Set the source cache policy. --expires takes "<n> <unit>" where unit is
minute, hour, day, week or month (plural forms accepted).

Example:
  bucket config cache --automate --expires "2 days"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		policy := cfg.Cache
		if cmd.Flags().Changed("automate") {
			policy.Automate = configCacheAuto
		}
		if cmd.Flags().Changed("expires") {
			policy.Expires = configCacheExpires
		}
		if err := config.SaveCachePolicy(configPath(), policy); err != nil {
			return err
		}
		cfg.Cache = policy
		fmt.Fprintf(cmd.OutOrStdout(), "cache automate=%t expires=%q in %s\n", policy.Automate, policy.Expires, configPath())
		return nil
	},
}

func init() {
	configCacheCmd.Flags().BoolVar(&configCacheAuto, "automate", false, "cache fetched sources in storage")
	configCacheCmd.Flags().StringVar(&configCacheExpires, "expires", "", "cache lifetime, e.g. \"1 week\"")
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "overwrite an existing file")

	configFilterCmd.AddCommand(configFilterAddCmd, configFilterRemoveCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configFilterCmd, configCacheCmd)
	rootCmd.AddCommand(configCmd)
}

// effectiveConfig shapes cfg for display with the same keys as the file.
func effectiveConfig(c config.Config) map[string]any {
	return map[string]any{
		"base":      c.Base,
		"extension": c.Extension,
		"filters":   c.Filters,
		"cache":     c.Cache,
		"storage": map[string]any{
			"driver": c.Storage.Driver,
			"path":   c.StoragePath(),
		},
		"log": map[string]any{
			"debug": c.Log.Debug,
			"level": c.Log.Level,
			"path":  c.Log.Path,
		},
		"watch": map[string]any{
			"debounce_ms": c.Watch.DebounceMs,
		},
		"tracing": c.Tracing,
	}
}
