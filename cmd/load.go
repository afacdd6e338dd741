package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var loadEvaluate bool

var loadCmd = &cobra.Command{
	Use:   "load FILE...",
	Short: "Fetch files without evaluating them",
	Long: `Fetch the raw text of each file and print it. Relative files are read
from the working directory, or from the origin of an http(s) base.

With --evaluate the arguments are component ids instead: their manifests
are fetched and evaluated, and the registered ids are listed.

Examples:
  bucket load assets/site.css
  bucket load --evaluate App Shared/Logger`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBucket()
		if err != nil {
			return err
		}
		defer func() { _ = b.Close() }()

		out := cmd.OutOrStdout()
		if loadEvaluate {
			if err := b.Preload(cmd.Context(), args...); err != nil {
				return err
			}
			for _, id := range b.IDs() {
				fmt.Fprintln(out, id)
			}
			return nil
		}

		texts, err := b.Load(cmd.Context(), args...)
		if err != nil {
			return err
		}
		for _, text := range texts {
			fmt.Fprintln(out, text)
		}
		return nil
	},
}

func init() {
	loadCmd.Flags().BoolVarP(&loadEvaluate, "evaluate", "e", false, "treat arguments as ids and evaluate their manifests")
	rootCmd.AddCommand(loadCmd)
}
