package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/moai-adk/orchestrator/internal/timeparsing"
	"github.com/moai-adk/orchestrator/internal/types"
	"github.com/moai-adk/orchestrator/internal/ui"
	"github.com/moai-adk/orchestrator/internal/velocity"
)

const reportWindow = 7 * 24 * time.Hour

// reportData is the --json shape of report.
type reportData struct {
	GeneratedAt     time.Time            `json:"generated_at"`
	Total           int                  `json:"total"`
	Counts          map[types.Status]int `json:"counts"`
	CompletedPct    float64              `json:"completed_pct"`
	CompletedLast7d int                  `json:"completed_last_7d"`
	Active          []*types.Spec        `json:"active"`
}

var reportCmd = &cobra.Command{
	Use:     "report",
	GroupID: "views",
	Short:   "Print a weekly progress report",
	Run: func(cmd *cobra.Command, args []string) {
		now := asOfTime(cmd)
		data := buildReport(store.Roadmap(), now)
		if jsonOutput {
			outputJSON(data)
			return
		}
		printMarkdown(cmd, formatReport(data))
	},
}

func buildReport(doc *types.Roadmap, now time.Time) reportData {
	specs := doc.Sorted()
	counts := doc.CountByStatus()
	d := reportData{
		GeneratedAt:     now,
		Total:           len(specs),
		Counts:          counts,
		CompletedLast7d: velocity.CompletedWithin(specs, now, reportWindow),
		Active:          []*types.Spec{},
	}
	if d.Total > 0 {
		d.CompletedPct = float64(counts[types.StatusCompleted]) / float64(d.Total) * 100
	}
	for _, s := range specs {
		if s.Status != types.StatusPending {
			d.Active = append(d.Active, s)
		}
	}
	return d
}

func formatReport(d reportData) string {
	var b strings.Builder
	b.WriteString("# MoAI Weekly Report\n\n")
	fmt.Fprintf(&b, "**Generated**: %s\n\n", d.GeneratedAt.Format("2006-01-02 15:04"))

	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "- **Total Specs**: %d\n", d.Total)
	fmt.Fprintf(&b, "- **Completed**: %d (%.1f%%)\n", d.Counts[types.StatusCompleted], d.CompletedPct)
	fmt.Fprintf(&b, "- **In Progress**: %d\n", d.Counts[types.StatusInProgress])
	if n := d.Counts[types.StatusVerification]; n > 0 {
		fmt.Fprintf(&b, "- **In Verification**: %d\n", n)
	}
	fmt.Fprintf(&b, "- **Pending**: %d\n\n", d.Counts[types.StatusPending])

	b.WriteString("## Weekly Velocity\n\n")
	fmt.Fprintf(&b, "- **Specs Completed (Last 7 Days)**: %d\n\n", d.CompletedLast7d)

	b.WriteString("## Active Work\n\n")
	b.WriteString("| Spec ID | Status | Dependencies |\n")
	b.WriteString("|---------|--------|--------------|\n")
	for _, s := range d.Active {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", s.ID, s.Status, strings.Join(s.Dependencies, ", "))
	}
	return b.String()
}

// asOfTime returns --as-of resolved against the invocation clock, or the
// clock itself.
func asOfTime(cmd *cobra.Command) time.Time {
	now := store.Now()
	raw, _ := cmd.Flags().GetString("as-of")
	if raw == "" {
		return now
	}
	t, err := timeparsing.ParseRelativeTime(raw, now)
	if err != nil {
		FatalError("invalid --as-of: %v", err)
	}
	return t
}

// printMarkdown renders md for the terminal and pages it when it is long.
func printMarkdown(cmd *cobra.Command, md string) {
	noPager, _ := cmd.Flags().GetBool("no-pager")
	if err := ui.ToPager(ui.RenderMarkdown(md), ui.PagerOptions{NoPager: noPager}); err != nil {
		WarnError("pager: %v", err)
	}
}

func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().String("as-of", "", `Evaluate at this time: -1w, 2025-06-01, "last friday"`)
	cmd.Flags().Bool("no-pager", false, "Disable the pager")
}

func init() {
	addReportFlags(reportCmd)
	rootCmd.AddCommand(reportCmd)
}
