package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List discoverable agents across all tiers",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		infos, err := rt.resolver.ListAgents()
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no agents found; run `agentpm setup` to install stock profiles")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "AGENT\tTIER\tROLE\tCAPABILITIES")
		for _, info := range infos {
			name := info.Name
			if info.Shadowed {
				name += " (shadowed)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				name, info.Tier, truncate(info.Role, 48),
				truncate(strings.Join(info.Capabilities, ", "), 64))
		}
		return w.Flush()
	},
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func init() {
	rootCmd.AddCommand(agentsCmd)
}
