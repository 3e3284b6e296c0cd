package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/moai-adk/orchestrator/internal/config"
	"github.com/moai-adk/orchestrator/internal/debug"
	"github.com/moai-adk/orchestrator/internal/lifecycle"
	"github.com/moai-adk/orchestrator/internal/transcript"
	"github.com/moai-adk/orchestrator/internal/types"
)

// maxHookInput bounds how much of stdin the session-end hook reads.
const maxHookInput = 32 << 20

var hookCmd = &cobra.Command{
	Use:     "hook",
	GroupID: "sync",
	Short:   "Entry points for agent session hooks",
}

var sessionEndCmd = &cobra.Command{
	Use:   "session-end",
	Short: "Complete specs marked done in a session transcript (reads stdin)",
	Long: `Reads the session payload from stdin: JSON with "conversation" or
"transcript[].content", or raw text. When the transcript contains the
<promise>DONE</promise> marker, every spec id it names as done and that is
tracked in the roadmap is moved to completed.

This command always exits 0; problems are reported on stderr.`,
	Run: func(cmd *cobra.Command, args []string) {
		raw, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), maxHookInput))
		if err != nil {
			fmt.Fprintf(os.Stderr, "orch hook: reading input: %v\n", err)
			return
		}
		runSessionEnd(rootCtx, raw, cmd.OutOrStdout())
	},
}

// runSessionEnd applies the completions found in raw. It never panics out or
// returns an error to the caller.
func runSessionEnd(ctx context.Context, raw []byte, out io.Writer) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "orch hook: %v\n", r)
		}
	}()

	text := transcript.ParseHookInput(raw)
	if !transcript.HasMarker(text) {
		debug.Logf("hook: no completion marker\n")
		return
	}

	extractor := transcript.NewExtractor(config.GetTranscriptExtractor(), config.GetString(config.KeyTranscriptModel), WarnError)
	ids, err := extractor.ExtractCompletedIDs(ctx, text)
	if err != nil {
		if _, isRegex := extractor.(transcript.RegexExtractor); isRegex {
			fmt.Fprintf(os.Stderr, "orch hook: extracting spec ids: %v\n", err)
			return
		}
		WarnError("extractor failed, using regex: %v", err)
		ids, _ = transcript.RegexExtractor{}.ExtractCompletedIDs(ctx, text)
	}
	if len(ids) == 0 {
		return
	}

	if rootDir == "" {
		fmt.Fprintf(os.Stderr, "orch hook: no project root, skipping %s\n", strings.Join(ids, ", "))
		return
	}
	s, err := openStore(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "orch hook: %v\n", err)
		return
	}
	defer func() { _ = s.Close() }()

	known, unknown := transcript.FilterKnown(s.Roadmap(), ids)
	if len(unknown) > 0 {
		fmt.Fprintf(os.Stderr, "orch hook: ignoring untracked ids: %s\n", strings.Join(unknown, ", "))
	}
	completeSpecs(ctx, newMachine(s), known, out)
}

func completeSpecs(ctx context.Context, m *lifecycle.Machine, ids []string, out io.Writer) {
	timeout := config.GetHookTimeout()
	for _, id := range ids {
		uctx, cancel := context.WithTimeout(ctx, timeout)
		res, err := m.Update(uctx, id, types.StatusCompleted)
		cancel()
		switch {
		case err != nil:
			fmt.Fprintf(os.Stderr, "Failed to update %s: %v\n", id, err)
		case res.Changed:
			fmt.Fprintf(out, "Updated %s to completed\n", res.SpecID)
			debug.LogEvent("hook.session-end", res.SpecID, "completed from transcript")
		default:
			debug.Logf("hook: %s already completed\n", res.SpecID)
		}
	}
}

func init() {
	hookCmd.AddCommand(sessionEndCmd)
	rootCmd.AddCommand(hookCmd)
}
