package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var resolveOutput string

var resolveCmd = &cobra.Command{
	Use:   "resolve ID...",
	Short: "Resolve components and print the constructed instances",
	Long: `Resolve each id, loading its manifest and every dependency's manifest
from the configured base, and print the constructed instance.

Examples:
  bucket resolve App
  bucket resolve App/Welcome --base https://cdn.example.com/app
  bucket resolve App -o json | jq '.App'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVarP(&resolveOutput, "output", "o", "yaml", "output format: yaml or json")
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	if resolveOutput != "yaml" && resolveOutput != "json" {
		return fmt.Errorf("unknown output format %q (want yaml or json)", resolveOutput)
	}

	b, err := openBucket()
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	resolved := make(map[string]any, len(args))
	for _, id := range args {
		instance, err := b.Resolve(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", id, err)
		}
		resolved[id] = instance
	}
	return writeInstances(cmd.OutOrStdout(), resolveOutput, resolved)
}

func writeInstances(w io.Writer, format string, resolved map[string]any) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resolved)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(resolved); err != nil {
		return err
	}
	return enc.Close()
}
