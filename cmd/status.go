package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/adalundhe/agentpm/core/telemetry"
)

var (
	statusHistoryLimit int
	statusPrometheus   bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cache metrics and recent request history",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		out := cmd.OutOrStdout()

		if statusPrometheus {
			instruments := telemetry.NewMetrics()
			instruments.SyncCache(rt.cache.GetMetrics())
			resolverMetrics := rt.resolver.GetMetrics()
			instruments.SyncResolver(resolverMetrics.ProfilesLoaded, resolverMetrics.ParseWarnings)

			families, err := prometheus.DefaultGatherer.Gather()
			if err != nil {
				return err
			}
			enc := expfmt.NewEncoder(out, expfmt.NewFormat(expfmt.TypeTextPlain))
			for _, family := range families {
				if err := enc.Encode(family); err != nil {
					return err
				}
			}
			return nil
		}

		metrics := rt.cache.GetMetrics()
		fmt.Fprintln(out, "Prompt cache:")
		fmt.Fprintf(out, "  entries:     %d / %d\n", metrics.Size, metrics.Capacity)
		fmt.Fprintf(out, "  hits:        %d\n", metrics.Hits)
		fmt.Fprintf(out, "  misses:      %d\n", metrics.Misses)
		fmt.Fprintf(out, "  evictions:   %d\n", metrics.Evictions)
		fmt.Fprintf(out, "  expirations: %d\n", metrics.Expirations)
		fmt.Fprintf(out, "  hit rate:    %.1f%%\n", metrics.HitRate()*100)

		resolverMetrics := rt.resolver.GetMetrics()
		fmt.Fprintln(out, "Resolver:")
		fmt.Fprintf(out, "  profiles loaded: %d\n", resolverMetrics.ProfilesLoaded)
		fmt.Fprintf(out, "  parse warnings:  %d\n", resolverMetrics.ParseWarnings)

		entries := rt.builder.History().Recent(statusHistoryLimit)
		if len(entries) == 0 {
			return nil
		}
		fmt.Fprintln(out, "Recent requests:")
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "  TIME\tAGENT\tTIER\tHIT\tLATENCY_MS\tERROR")
		for _, entry := range entries {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%t\t%.2f\t%s\n",
				entry.Timestamp.Format("15:04:05"), entry.Agent,
				orDash(entry.Tier), entry.CacheHit, entry.LatencyMS, orDash(entry.Error))
		}
		return w.Flush()
	},
}

func init() {
	statusCmd.Flags().IntVarP(&statusHistoryLimit, "limit", "n", 20, "history entries to show")
	statusCmd.Flags().BoolVar(&statusPrometheus, "prometheus", false, "emit metrics in Prometheus exposition format")
	rootCmd.AddCommand(statusCmd)
}
