package ui

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/term"
)

// PagerOptions controls pager behavior for one command.
type PagerOptions struct {
	// NoPager disables the pager (--no-pager).
	NoPager bool
}

// pagerCommand returns the configured pager argv: ORCH_PAGER, then PAGER,
// then less. An empty result means paging is disabled.
func pagerCommand() []string {
	for _, env := range []string{"ORCH_PAGER", "PAGER"} {
		if v, ok := os.LookupEnv(env); ok {
			return strings.Fields(v)
		}
	}
	return []string{"less"}
}

// fitsScreen reports whether content fits on a screen of height rows,
// keeping one row for the shell prompt.
func fitsScreen(content string, height int) bool {
	if height <= 0 {
		return true
	}
	return strings.Count(strings.TrimSuffix(content, "\n"), "\n")+1 < height
}

func usePager(opts PagerOptions) bool {
	if opts.NoPager || os.Getenv("ORCH_NO_PAGER") != "" {
		return false
	}
	return IsTerminal()
}

// ToPager writes content to stdout, through a pager when stdout is a
// terminal and the content is taller than the screen.
func ToPager(content string, opts PagerOptions) error {
	if !usePager(opts) {
		return writeAll(os.Stdout, content)
	}
	_, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || fitsScreen(content, height) {
		return writeAll(os.Stdout, content)
	}
	argv := pagerCommand()
	if len(argv) == 0 {
		return writeAll(os.Stdout, content)
	}

	cmd := exec.Command(argv[0], argv[1:]...) // #nosec G204 -- the pager is chosen by the user
	cmd.Stdin = strings.NewReader(content)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	if os.Getenv("LESS") == "" {
		// Colors pass through, short output exits, the screen is kept.
		cmd.Env = append(cmd.Env, "LESS=-RFX")
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pager %s: %w", argv[0], err)
	}
	return nil
}

func writeAll(w io.Writer, content string) error {
	_, err := io.WriteString(w, content)
	return err
}
