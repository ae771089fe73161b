package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adalundhe/agentpm/core/composer"
)

var (
	composeAgent        string
	composeTask         string
	composeRequirements []string
	composeDeliverables []string
	composePriority     string
	composeContext      []string
	composePlain        bool
	composeShowMeta     bool
)

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Compose an enhanced task prompt for an agent",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		context, err := parseContextPairs(composeContext)
		if err != nil {
			return err
		}

		composed, err := rt.builder.Build(composer.TaskRequest{
			AgentName:           composeAgent,
			TaskDescription:     composeTask,
			Requirements:        composeRequirements,
			Deliverables:        composeDeliverables,
			Priority:            composePriority,
			Context:             context,
			EnhancedPrompts:     !composePlain,
			TrainingIntegration: !composePlain,
		})
		if err != nil {
			return err
		}

		fmt.Fprint(cmd.OutOrStdout(), composed.FinalText)
		if composeShowMeta {
			fmt.Fprintf(cmd.ErrOrStderr(),
				"\n--\ntier=%s cache_hit=%t degraded=%t improved=%s latency_ms=%.2f\n",
				composed.TierUsed, composed.CacheHit, composed.Degraded,
				orDash(composed.ImprovedPromptRef), composed.LatencyMS())
		}
		return nil
	},
}

func parseContextPairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	context := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("context entry %q is not key=value", pair)
		}
		context[key] = value
	}
	return context, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	composeCmd.Flags().StringVarP(&composeAgent, "agent", "a", "", "agent name (required)")
	composeCmd.Flags().StringVarP(&composeTask, "task", "t", "", "task description (required)")
	composeCmd.Flags().StringArrayVarP(&composeRequirements, "requirement", "r", nil, "task requirement (repeatable)")
	composeCmd.Flags().StringArrayVarP(&composeDeliverables, "deliverable", "d", nil, "expected deliverable (repeatable)")
	composeCmd.Flags().StringVarP(&composePriority, "priority", "p", "medium", "task priority")
	composeCmd.Flags().StringArrayVarP(&composeContext, "context", "c", nil, "ambient context key=value (repeatable)")
	composeCmd.Flags().BoolVar(&composePlain, "plain", false, "skip improved-prompt enhancement")
	composeCmd.Flags().BoolVar(&composeShowMeta, "meta", false, "print composition metadata to stderr")
	_ = composeCmd.MarkFlagRequired("agent")
	_ = composeCmd.MarkFlagRequired("task")
	rootCmd.AddCommand(composeCmd)
}
