package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/moai-adk/orchestrator/internal/config"
	"github.com/moai-adk/orchestrator/internal/velocity"
)

var velocityCmd = &cobra.Command{
	Use:     "velocity",
	GroupID: "views",
	Short:   "Show completion times, weekly trend, projection and bottlenecks",
	Run: func(cmd *cobra.Command, args []string) {
		now := asOfTime(cmd)
		settings := config.GetVelocitySettings()
		doc := store.Roadmap()
		report := velocity.Compute(doc, now, velocity.Options{
			StaleDays:    float64(settings.StaleDays),
			DefaultDays:  settings.DefaultDays,
			BlockedLimit: settings.BlockedLimit,
		})

		if path, _ := cmd.Flags().GetString("prom-file"); path != "" {
			if err := velocity.WriteTextfile(path, report, doc.CountByStatus()); err != nil {
				WarnError("writing metrics: %v", err)
			}
		}

		if jsonOutput {
			outputJSON(report)
			return
		}
		printMarkdown(cmd, formatVelocity(report))
	},
}

func formatVelocity(r velocity.Report) string {
	var b strings.Builder
	b.WriteString("# Velocity Analytics\n\n")
	fmt.Fprintf(&b, "**Generated**: %s\n\n", r.GeneratedAt.Format("2006-01-02 15:04"))

	b.WriteString("## Completion Metrics\n\n")
	if r.HasData {
		fmt.Fprintf(&b, "- **Average completion time**: %.1f days/SPEC\n", r.AverageDays)
		fmt.Fprintf(&b, "- **Fastest**: %s (%.1f days)\n", r.Fastest.SpecID, r.Fastest.Days)
		fmt.Fprintf(&b, "- **Slowest**: %s (%.1f days)\n", r.Slowest.SpecID, r.Slowest.Days)
		fmt.Fprintf(&b, "- **Data points**: %d completed SPECs\n", len(r.Completions))
	} else {
		b.WriteString("- No completed SPECs with timing data yet.\n")
	}
	b.WriteString("\n")

	b.WriteString("## Weekly Trend\n\n")
	for _, w := range r.Weeks {
		fmt.Fprintf(&b, "- **%s**: %d completed\n", w.Label, w.Completed)
	}
	b.WriteString("\n")

	b.WriteString("## Projection\n\n")
	p := r.Projection
	if p.Available {
		fmt.Fprintf(&b, "- **Remaining**: %d SPECs (%d in progress)\n", p.Remaining, p.InProgress)
		fmt.Fprintf(&b, "- **Estimated completion**: %s (%.0f days)\n", p.EstimatedDate.Format("2006-01-02"), p.EstimatedDays)
		if p.UsedDefault {
			fmt.Fprintf(&b, "- **Confidence**: %s (assuming %.1f days/SPEC, no data yet)\n", p.Confidence, p.DaysPerSpec)
		} else {
			fmt.Fprintf(&b, "- **Confidence**: %s (based on %d data points)\n", p.Confidence, p.Samples)
		}
	} else {
		fmt.Fprintf(&b, "- **Remaining**: %d SPECs\n", p.Remaining)
		if p.Remaining > 0 {
			b.WriteString("- Insufficient data for projection\n")
		}
	}
	b.WriteString("\n")

	b.WriteString("## Bottlenecks\n\n")
	for _, bn := range r.Bottlenecks {
		fmt.Fprintf(&b, "- **%s**: In progress for %.0f days (above %.0f-day threshold)\n", bn.SpecID, bn.Days, r.StaleDays)
	}
	for _, bl := range r.Blocked {
		fmt.Fprintf(&b, "- **%s**: Blocked by %s\n", bl.SpecID, bl.BlockedBy)
	}
	if len(r.Bottlenecks) == 0 && len(r.Blocked) == 0 {
		b.WriteString("- No bottlenecks detected\n")
	}
	return b.String()
}

func init() {
	addReportFlags(velocityCmd)
	velocityCmd.Flags().String("prom-file", "", "Also write Prometheus metrics to this textfile-collector path")
	rootCmd.AddCommand(velocityCmd)
}
