package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/moai-adk/orchestrator/internal/lifecycle"
	"github.com/moai-adk/orchestrator/internal/types"
	"github.com/moai-adk/orchestrator/internal/ui"
)

var updateCmd = &cobra.Command{
	Use:     "update [<spec-id> <status>]",
	GroupID: "specs",
	Short:   "Change the status of a spec",
	Long: `Moves a spec to a new status and records the transition in its history.
Valid statuses: pending, in_progress, verification, completed.

Run without arguments in a terminal to pick the spec and status interactively.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 || len(args) == 2 {
			return nil
		}
		return fmt.Errorf("accepts 0 or 2 args, received %d", len(args))
	},
	Run: func(cmd *cobra.Command, args []string) {
		var id, rawStatus string
		if len(args) == 2 {
			id, rawStatus = args[0], args[1]
		} else {
			if !ui.IsStdinTerminal() || jsonOutput {
				FatalErrorWithHint("spec id and status are required", "Usage: orch update <spec-id> <status>")
			}
			id, rawStatus = runUpdateForm(store.Roadmap())
		}

		status, err := types.ParseStatus(rawStatus)
		if err != nil {
			FatalError("%v", err)
		}

		res, err := newMachine(store).Update(rootCtx, id, status)
		if err != nil {
			if errors.Is(err, lifecycle.ErrNotFound) {
				// Already reported by the machine; an unknown id is skipped.
				if jsonOutput {
					outputJSON(map[string]string{"error": err.Error(), "code": "not_found"})
				}
				return
			}
			FatalError("%v", err)
		}

		if jsonOutput {
			outputJSON(res)
			return
		}
		if !res.Changed {
			fmt.Printf("%s is already %s\n", res.SpecID, res.To)
			return
		}
		fmt.Printf("Updated %s: %s -> %s\n", res.SpecID, res.From, res.To)
	},
}

// runUpdateForm asks for the spec and the target status.
func runUpdateForm(doc *types.Roadmap) (string, string) {
	specs := doc.Sorted()
	if len(specs) == 0 {
		FatalErrorWithHint("no specs tracked", "Run 'orch init' first")
	}

	specOptions := make([]huh.Option[string], 0, len(specs))
	for _, s := range specs {
		specOptions = append(specOptions, huh.NewOption(fmt.Sprintf("%s (%s)", s.ID, s.Status), s.ID))
	}
	statusOptions := make([]huh.Option[string], 0, len(types.AllStatuses))
	for _, s := range types.AllStatuses {
		statusOptions = append(statusOptions, huh.NewOption(s.String(), s.String()))
	}

	var id, status string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Spec").
				Description("Which spec changed?").
				Options(specOptions...).
				Value(&id),

			huh.NewSelect[string]().
				Title("Status").
				Description("Move it to").
				Options(statusOptions...).
				Value(&status),
		),
	).WithTheme(huh.ThemeDracula())

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Fprintln(os.Stderr, "Update cancelled.")
			os.Exit(0)
		}
		FatalError("form error: %v", err)
	}
	return id, status
}

func init() {
	rootCmd.AddCommand(updateCmd)
}
