package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "agentpm",
	Short: "agentpm - agent profile resolution and prompt enhancement",
	Long: `agentpm resolves agent profiles across the project > user > system
hierarchy, overlays trained prompt improvements, and renders enhanced
task prompts for subprocess-based assistant delegation.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}
