package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Inspect and administer improved-prompt records",
}

var trainDeployCmd = &cobra.Command{
	Use:   "deploy <agent> <session-id>",
	Short: "Mark a training record deployment-ready and invalidate cached prompts",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		record, err := rt.training.Deploy(args[0], args[1])
		if err != nil {
			return err
		}
		invalidated := rt.composer.InvalidateAgent(record.AgentType)

		fmt.Fprintf(cmd.OutOrStdout(),
			"deployed %s (score %.1f); invalidated %d cached prompts\n",
			record.ID(), record.ImprovementScore, invalidated)
		return nil
	},
}

var trainShowCmd = &cobra.Command{
	Use:   "show <agent>",
	Short: "Show the best deployment-ready record for an agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		best, err := rt.training.FindBest(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if best == nil {
			fmt.Fprintf(out, "no deployment-ready records for %s\n", args[0])
			return nil
		}
		fmt.Fprintf(out, "session:  %s\n", best.TrainingSessionID)
		fmt.Fprintf(out, "score:    %.1f\n", best.ImprovementScore)
		fmt.Fprintf(out, "recorded: %s\n", best.Timestamp.Format("2006-01-02 15:04:05"))
		for name, value := range best.ValidationMetrics {
			fmt.Fprintf(out, "metric %s: %.2f\n", name, value)
		}
		return nil
	},
}

func init() {
	trainCmd.AddCommand(trainDeployCmd, trainShowCmd)
	rootCmd.AddCommand(trainCmd)
}
