package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/moai-adk/orchestrator/internal/branchsync"
	"github.com/moai-adk/orchestrator/internal/config"
	"github.com/moai-adk/orchestrator/internal/debug"
	"github.com/moai-adk/orchestrator/internal/git"
	"github.com/moai-adk/orchestrator/internal/ui"
)

var gitSyncCmd = &cobra.Command{
	Use:     "git-sync",
	GroupID: "sync",
	Short:   "Mark pending specs with a feature branch as in progress",
	Long: `Lists local and remote branches (after a best-effort fetch) and moves every
pending spec named by a feature/SPEC-* branch to in_progress. Specs in any other
status are left alone. Failures are reported but never abort the command.`,
	Run: func(cmd *cobra.Command, args []string) {
		noFetch, _ := cmd.Flags().GetBool("no-fetch")
		fetch := config.GetBool(config.KeyGitFetch) && !noFetch

		re, err := git.CompileBranchPattern(config.GetString(config.KeyGitBranchPattern))
		if err != nil {
			FatalError("%v", err)
		}

		debug.PrintNormal("Syncing with Git branches...\n")
		branches, err := git.ListBranches(rootCtx, repoDir(rootCtx, rootDir), fetch, WarnError)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error syncing git: %v\n", err)
			return
		}

		summary, err := branchsync.Sync(rootCtx, store, newMachine(store), git.SpecIDsFromBranches(branches, re))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error syncing git: %v\n", err)
		}
		if jsonOutput {
			outputJSON(summary)
			return
		}
		fmt.Print(formatSyncSummary(summary))
	},
}

// repoDir returns the working tree holding root, falling back to root's
// parent when git cannot tell.
func repoDir(ctx context.Context, root string) string {
	parent := filepath.Dir(root)
	top, err := git.TopLevel(ctx, parent)
	if err != nil {
		debug.Logf("git-sync: %v; using %s\n", err, parent)
		return parent
	}
	return top
}

func formatSyncSummary(s branchsync.Summary) string {
	var b strings.Builder
	for _, c := range s.Changes {
		switch c.Outcome {
		case branchsync.OutcomeStarted:
			fmt.Fprintf(&b, "  %s Found branch '%s' -> Mark %s In Progress\n", ui.RenderPassIcon(), c.Branch, c.SpecID)
		case branchsync.OutcomeFailed:
			fmt.Fprintf(&b, "  %s Branch '%s': failed to update %s: %s\n", ui.RenderFailIcon(), c.Branch, c.SpecID, c.Error)
		case branchsync.OutcomeUnknown:
			if debug.Enabled() {
				fmt.Fprintf(&b, "  %s Branch '%s': %s is not tracked\n", ui.RenderSkipIcon(), c.Branch, c.SpecID)
			}
		}
	}
	if s.Started == 0 {
		fmt.Fprintf(&b, "  %s No new status updates from Git.\n", ui.RenderInfoIcon())
	}
	return b.String()
}

func init() {
	gitSyncCmd.Flags().Bool("no-fetch", false, "Skip 'git fetch' and use local branches only")
	rootCmd.AddCommand(gitSyncCmd)
}
