package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/adalundhe/agentpm/core/hierarchy"
	"github.com/adalundhe/agentpm/core/profile"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch profile directories and invalidate stale cached prompts",
	Long: `Watches the tier directories and the config files until interrupted.
When a profile document changes on disk, every cached prompt for that
agent is dropped so the next composition re-renders from the new
document instead of waiting out the cache TTL.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		out := cmd.OutOrStdout()
		watcher, err := hierarchy.NewWatcher(rt.store,
			func(agent string, tier profile.Tier) {
				removed := rt.composer.InvalidateAgent(agent)
				fmt.Fprintf(out, "%s changed (%s tier); invalidated %d cached prompts\n",
					agent, tier, removed)
			}, slog.Default())
		if err != nil {
			return fmt.Errorf("starting profile watcher: %w", err)
		}
		defer watcher.Close()

		if err := rt.manager.Watch(); err != nil {
			return fmt.Errorf("starting config watcher: %w", err)
		}

		fmt.Fprintln(out, "watching profile and config directories; ctrl-c to stop")
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
