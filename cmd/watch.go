package cmd

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/heywhy/bucket/internal/log"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Invalidate cached sources as local manifests change",
	Long: `Watch the local base directory and drop cached sources whose files
change, so the next resolve picks up the edit. Runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		b, err := openBucket()
		if err != nil {
			return err
		}
		defer func() { _ = b.Close() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", b.Options().Base)
		err = b.Watch(ctx, func(batch []string) {
			fmt.Fprintf(out, "changed: %s\n", strings.Join(batch, ", "))
		})
		if err != nil && ctx.Err() == nil {
			log.ErrorErr(log.CatWatcher, "watch stopped", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

