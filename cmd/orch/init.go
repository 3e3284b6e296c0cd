package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moai-adk/orchestrator/internal/config"
	"github.com/moai-adk/orchestrator/internal/debug"
	"github.com/moai-adk/orchestrator/internal/discovery"
	"github.com/moai-adk/orchestrator/internal/roadmap"
)

// initResult is the --json shape of init.
type initResult struct {
	Found         int    `json:"found"`
	Added         int    `json:"added"`
	Updated       int    `json:"updated"`
	Root          string `json:"root"`
	ConfigWritten bool   `json:"config_written"`
}

var initCmd = &cobra.Command{
	Use:     "init",
	GroupID: "specs",
	Short:   "Discover specs and create or refresh the roadmap",
	Long: `Scans the specs directory for SPEC-* directories, adds new specs as pending and
refreshes the path and dependencies of known ones. Status and history are never
touched. Safe to run repeatedly.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := rootCtx
		specsDir := config.GetString(config.KeySpecsDir)

		debug.PrintNormal("Scanning %s...\n", specsDir)
		found, err := discovery.Scan(ctx, rootDir, specsDir)
		if err != nil {
			if errors.Is(err, discovery.ErrSpecsDirNotFound) {
				// Nothing to discover is not a failure.
				WarnError("%v", err)
				if jsonOutput {
					outputJSON(initResult{Root: rootDir})
					return
				}
				fmt.Println("Initialized 0 specs.")
				return
			}
			FatalError("scanning specs: %v", err)
		}

		res := initResult{Found: len(found), Root: rootDir}
		for _, f := range found {
			switch store.Upsert(f.ID, f.Path, f.Dependencies) {
			case roadmap.Added:
				res.Added++
			case roadmap.Updated:
				res.Updated++
			}
		}
		if err := store.Save(ctx); err != nil {
			FatalError("%v", err)
		}
		written, err := config.WriteDefaultConfig(rootDir)
		if err != nil {
			WarnError("failed to create %s: %v", config.ConfigFileName, err)
		}
		res.ConfigWritten = written
		debug.LogEvent("roadmap.init", "", fmt.Sprintf("found=%d added=%d updated=%d", res.Found, res.Added, res.Updated))

		if jsonOutput {
			outputJSON(res)
			return
		}
		fmt.Printf("Initialized %d specs.\n", res.Found)
		if res.Added > 0 || res.Updated > 0 {
			debug.PrintNormal("  %d added, %d refreshed\n", res.Added, res.Updated)
		}
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
