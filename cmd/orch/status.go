package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/moai-adk/orchestrator/internal/roadmap"
	"github.com/moai-adk/orchestrator/internal/storage"
	"github.com/moai-adk/orchestrator/internal/types"
	"github.com/moai-adk/orchestrator/internal/ui"
)

const (
	statusIDWidth     = 30
	statusStatusWidth = 17
	progressBarWidth  = 30
)

// statusSummary is the --json shape of status.
type statusSummary struct {
	Total     int                  `json:"total"`
	Completed int                  `json:"completed"`
	Counts    map[types.Status]int `json:"counts"`
	Specs     []*types.Spec        `json:"specs"`
}

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "views",
	Short:   "Show every spec with its status",
	Run: func(cmd *cobra.Command, args []string) {
		watch, _ := cmd.Flags().GetBool("watch")
		if watch && !jsonOutput {
			watchStatus(store)
			return
		}
		doc := store.Roadmap()
		if jsonOutput {
			counts := doc.CountByStatus()
			outputJSON(statusSummary{
				Total:     len(doc.Specs),
				Completed: counts[types.StatusCompleted],
				Counts:    counts,
				Specs:     doc.Sorted(),
			})
			return
		}
		fmt.Print(formatStatusTable(doc))
	},
}

// formatStatusTable renders the progress line and one row per spec.
func formatStatusTable(doc *types.Roadmap) string {
	total := len(doc.Specs)
	if total == 0 {
		return "No specs found.\n"
	}
	done := doc.CountByStatus()[types.StatusCompleted]

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n", ui.RenderCategory("Spec Status"))
	fmt.Fprintf(&b, "Progress: %s\n", ui.RenderProgressBar(done, total, progressBarWidth))
	b.WriteString(ui.RenderSeparator() + "\n")
	fmt.Fprintf(&b, "%-*s %-*s %s\n", statusIDWidth, "SPEC ID", statusStatusWidth, "STATUS", "DEPS")
	b.WriteString(ui.RenderSeparator() + "\n")
	for _, s := range doc.Sorted() {
		fmt.Fprintf(&b, "%-*s %s %d\n", statusIDWidth, s.ID, ui.RenderStatus(s.Status, statusStatusWidth), len(s.Dependencies))
	}
	b.WriteString(ui.RenderSeparator() + "\n")
	return b.String()
}

// watchStatus re-renders the table whenever the store file changes. Only
// file-backed storage can be watched.
func watchStatus(s *roadmap.Store) {
	loc, ok := s.Backend().(storage.Locator)
	if !ok || loc.Path() == "" {
		FatalErrorWithHint(fmt.Sprintf("--watch is not supported by the %s backend", s.Backend().Name()),
			"Use the json or sqlite storage backend")
	}
	path := loc.Path()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		FatalError("creating %s: %v", dir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		FatalError("creating watcher: %v", err)
	}
	defer func() { _ = watcher.Close() }()

	// The directory is watched because atomic saves replace the file.
	if err := watcher.Add(dir); err != nil {
		FatalError("watching %s: %v", dir, err)
	}

	render := func() {
		fresh := roadmap.Open(rootCtx, s.Backend())
		fmt.Print("\033[2J\033[H")
		fmt.Print(formatStatusTable(fresh.Roadmap()))
		fmt.Fprintf(os.Stderr, "\nWatching %s for changes... (Press Ctrl+C to exit)\n", path)
	}
	render()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var debounceTimer *time.Timer
	const debounceDelay = 500 * time.Millisecond
	refresh := make(chan struct{}, 1)

	for {
		select {
		case <-sigChan:
			fmt.Fprintf(os.Stderr, "\nStopped watching.\n")
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDelay, func() {
				select {
				case refresh <- struct{}{}:
				default:
				}
			})
		case <-refresh:
			render()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			WarnError("watcher: %v", err)
		}
	}
}

func init() {
	statusCmd.Flags().BoolP("watch", "w", false, "Re-render when the roadmap changes")
	rootCmd.AddCommand(statusCmd)
}
