package cmd

import (
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var cacheBurstAll bool

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and clear the source cache",
	Long: `The source cache keeps fetched manifests when cache.automate is on, so
later runs skip the network. Entries expire together after cache.expires.`,
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached source locations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		b, err := openBucket()
		if err != nil {
			return err
		}
		defer func() { _ = b.Close() }()

		locations, err := b.CachedLocations()
		if err != nil {
			return err
		}
		namespaces, err := b.CacheNamespaces()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(locations) == 0 {
			fmt.Fprintln(out, "No cached sources")
		} else {
			sort.Strings(locations)
			t := table.NewWriter()
			t.SetOutputMirror(out)
			t.SetStyle(table.StyleRounded)
			t.Style().Format.Footer = text.FormatDefault
			t.AppendHeader(table.Row{"#", "Location"})
			for i, location := range locations {
				t.AppendRow(table.Row{i + 1, location})
			}
			t.AppendFooter(table.Row{"", fmt.Sprintf("%d cached", len(locations))})
			t.Render()
		}
		fmt.Fprintf(out, "Namespaces: %v\n", namespaces)
		return nil
	},
}

var cacheBurstCmd = &cobra.Command{
	Use:   "burst",
	Short: "Drop cached sources",
	Long: `Drop every cached source. With --all, every cache namespace in the
storage backend is wiped, including application caches.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		b, err := openBucket()
		if err != nil {
			return err
		}
		defer func() { _ = b.Close() }()

		if cacheBurstAll {
			if err := b.BurstAllCache(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Burst all cache namespaces")
			return nil
		}
		if err := b.BurstCache(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Burst source cache")
		return nil
	},
}

var cacheDiffCmd = &cobra.Command{
	Use:   "diff ID",
	Short: "Compare a cached source with a fresh fetch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBucket()
		if err != nil {
			return err
		}
		defer func() { _ = b.Close() }()

		diff, err := b.Diff(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if !diff.Cached {
			fmt.Fprintf(out, "%s is not cached\n", diff.Location)
		}
		if !diff.Changed() {
			fmt.Fprintln(out, text.FgGreen.Sprint("Up to date"))
			return nil
		}
		_, err = fmt.Fprint(out, diff.String())
		return err
	},
}

func init() {
	cacheBurstCmd.Flags().BoolVar(&cacheBurstAll, "all", false, "wipe every cache namespace")

	cacheCmd.AddCommand(cacheListCmd, cacheBurstCmd, cacheDiffCmd)
	rootCmd.AddCommand(cacheCmd)
}
