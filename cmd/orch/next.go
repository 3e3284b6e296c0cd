package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/moai-adk/orchestrator/internal/config"
	"github.com/moai-adk/orchestrator/internal/deps"
	"github.com/moai-adk/orchestrator/internal/scheduler"
	"github.com/moai-adk/orchestrator/internal/ui"
)

var nextCmd = &cobra.Command{
	Use:     "next",
	GroupID: "specs",
	Short:   "Recommend what to work on next",
	Long: `Work already in progress always comes first. Otherwise the first pending spec
whose dependencies are all completed is recommended, with a few alternates.`,
	Run: func(cmd *cobra.Command, args []string) {
		action := scheduler.NextAction(store.Roadmap(), config.GetAlternates())
		if jsonOutput {
			outputJSON(action)
			return
		}
		fmt.Print(formatNextAction(action))
	},
}

func formatNextAction(a scheduler.Action) string {
	var b strings.Builder
	switch a.Kind {
	case scheduler.ActionRunning:
		fmt.Fprintf(&b, "Running: %s\n", ui.RenderAccent(a.SpecID))
	case scheduler.ActionRecommend:
		fmt.Fprintf(&b, "Next Recommended: %s\n", ui.RenderPass(a.SpecID))
		if len(a.Alternates) > 0 {
			fmt.Fprintf(&b, "(Also available: %s)\n", strings.Join(a.Alternates, ", "))
		}
	default:
		b.WriteString("No actionable specs found (All completed or blocked).\n")
	}
	return b.String()
}

var blockedCmd = &cobra.Command{
	Use:     "blocked",
	GroupID: "specs",
	Short:   "List pending specs waiting on dependencies",
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		blocked := deps.BlockedPending(store.Roadmap(), limit)
		if jsonOutput {
			if blocked == nil {
				blocked = []deps.Blocked{}
			}
			outputJSON(blocked)
			return
		}
		fmt.Print(formatBlocked(blocked))
	},
}

func formatBlocked(blocked []deps.Blocked) string {
	if len(blocked) == 0 {
		return "No blocked specs.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s Blocked specs (%d):\n\n", ui.RenderWarnIcon(), len(blocked))
	for _, item := range blocked {
		fmt.Fprintf(&b, "  %s\n", item.SpecID)
		fmt.Fprintf(&b, "    %s%s\n", ui.TreeLast, ui.RenderMuted("blocked by "+strings.Join(item.Blockers, ", ")))
	}
	return b.String()
}

func init() {
	blockedCmd.Flags().Int("limit", 0, "Maximum number of specs to show (0 = all)")
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(blockedCmd)
}
