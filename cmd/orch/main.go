package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/moai-adk/orchestrator/internal/config"
	"github.com/moai-adk/orchestrator/internal/debug"
	"github.com/moai-adk/orchestrator/internal/hooks"
	"github.com/moai-adk/orchestrator/internal/lifecycle"
	"github.com/moai-adk/orchestrator/internal/roadmap"
	"github.com/moai-adk/orchestrator/internal/storage/factory"
	s3store "github.com/moai-adk/orchestrator/internal/storage/s3"
	"github.com/moai-adk/orchestrator/internal/telemetry"
	"github.com/moai-adk/orchestrator/internal/ui"
)

var (
	rootFlag    string
	jsonOutput  bool
	verboseFlag bool
	quietFlag   bool
	noColorFlag bool

	// rootDir is the resolved project directory (.moai), injected everywhere
	// below the command layer.
	rootDir string
	store   *roadmap.Store

	// Signal-aware context for graceful cancellation
	rootCtx    context.Context
	rootCancel context.CancelFunc
)

const telemetryFlushTimeout = 5 * time.Second

// noStoreCommands run without opening the roadmap store in PersistentPreRun.
// The session-end hook opens it itself so a broken backend never fails the hook.
var noStoreCommands = map[string]bool{
	"version":     true,
	"help":        true,
	"completion":  true,
	"session-end": true,
	"hook":        true,
}

func init() {
	if err := config.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize config: %v\n", err)
	}

	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", "", "Project directory (default: walk up from cwd for .moai, else ./.moai)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output (errors only)")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", false, "Disable colored output")

	rootCmd.Flags().BoolP("version", "V", false, "Print version information")

	rootCmd.AddGroup(&cobra.Group{ID: "specs", Title: "Working With Specs:"})
	rootCmd.AddGroup(&cobra.Group{ID: "views", Title: "Views & Reports:"})
	rootCmd.AddGroup(&cobra.Group{ID: "sync", Title: "Sync & Integrations:"})
}

var rootCmd = &cobra.Command{
	Use:   "orch",
	Short: "orch - Spec roadmap orchestrator",
	Long: `Tracks the lifecycle of specs, their dependencies and the history of every
status change, then recommends what to work on next and how fast work is moving.`,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("orch version %s (%s)\n", Version, Build)
			return
		}
		_ = cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupSignalContext()
		applyVerbosityFlags()

		if !resolveProjectRoot(cmd.Name()) {
			return
		}
		if err := config.InitializeAt(rootDir); err != nil {
			WarnError("%v", err)
		}
		if used := config.ConfigFileUsed(); used != "" {
			debug.Logf("config: %s\n", used)
		}
		applyViperOverrides(cmd)
		debug.SetEventLog(filepath.Join(rootDir, "logs", "events.log"))

		if err := telemetry.Init(rootCtx, "orch", Version); err != nil {
			debug.Logf("telemetry init failed: %v\n", err)
		}

		if noStoreCommands[cmd.Name()] {
			return
		}
		s, err := openStore(rootCtx)
		if err != nil {
			FatalErrorWithHint(err.Error(), "Check storage.backend in "+filepath.Join(rootDir, config.ConfigFileName))
		}
		store = s
		if rec := store.Recovered(); rec != nil {
			WarnError("could not read roadmap (%v); starting from an empty store", rec)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			_ = store.Close()
		}
		ctx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
		defer cancel()
		if err := telemetry.Shutdown(ctx); err != nil {
			debug.Logf("telemetry shutdown: %v\n", err)
		}
		if rootCancel != nil {
			rootCancel()
		}
	},
}

func setupSignalContext() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// resolveProjectRoot sets rootDir. Commands that run without a store only get
// false back when the root cannot be resolved; the rest exit.
func resolveProjectRoot(cmdName string) bool {
	root, err := config.ResolveRootDir(rootFlag)
	if err != nil {
		if noStoreCommands[cmdName] {
			debug.Logf("resolving root: %v\n", err)
			return false
		}
		FatalError("%v", err)
	}
	rootDir = root
	return true
}

// applyVerbosityFlags propagates --verbose, --quiet and --no-color before any
// output is produced.
func applyVerbosityFlags() {
	debug.SetVerbose(verboseFlag)
	debug.SetQuiet(quietFlag)
	ui.SetColorEnabled(!noColorFlag)
}

// applyViperOverrides lets ORCH_JSON / config json: true switch output mode
// when the flag was not given explicitly.
func applyViperOverrides(cmd *cobra.Command) {
	if !cmd.Flags().Changed("json") {
		jsonOutput = config.GetBool(config.KeyJSON)
	}
	if !cmd.Flags().Changed("no-color") && config.GetBool(config.KeyNoColor) {
		ui.SetColorEnabled(false)
	}
}

func storageOptions() factory.Options {
	return factory.Options{
		Backend: config.GetString(config.KeyStorageBackend),
		Root:    rootDir,
		Path:    config.GetString(config.KeyStoragePath),
		DSN:     config.GetString(config.KeyStorageDSN),
		S3: s3store.Config{
			Region:    config.GetString(config.KeyStorageS3Region),
			Bucket:    config.GetString(config.KeyStorageS3Bucket),
			Key:       config.GetString(config.KeyStorageS3Key),
			Endpoint:  config.GetString(config.KeyStorageS3Endpoint),
			PathStyle: config.GetBool(config.KeyStorageS3PathStyle),
		},
	}
}

func openStore(ctx context.Context) (*roadmap.Store, error) {
	backend, err := factory.New(ctx, storageOptions())
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	debug.Logf("storage: %s backend, root %s\n", backend.Name(), rootDir)
	return roadmap.Open(ctx, backend), nil
}

// newMachine builds the state machine over s with the project's hook scripts.
func newMachine(s *roadmap.Store) *lifecycle.Machine {
	runner := hooks.NewRunnerFromRoot(rootDir, config.GetHooksTimeout())
	for _, event := range []string{hooks.EventTransition, hooks.EventComplete} {
		if runner.HookExists(event) {
			debug.Logf("hooks: %s handler found in %s\n", event, runner.Dir())
		}
	}
	return lifecycle.New(s, lifecycle.WithHooks(runner))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
