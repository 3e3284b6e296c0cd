package ui

import (
	"os"
	"sync/atomic"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var colorDisabled atomic.Bool

// IsTerminal reports whether stdout is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// IsStdinTerminal reports whether stdin is a terminal.
func IsStdinTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// ShouldUseColor decides whether to emit ANSI colors.
// Precedence: --no-color, NO_COLOR, CLICOLOR_FORCE, CLICOLOR=0, then TTY detection.
func ShouldUseColor() bool {
	if colorDisabled.Load() {
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if v := os.Getenv("CLICOLOR_FORCE"); v != "" && v != "0" {
		return true
	}
	if os.Getenv("CLICOLOR") == "0" {
		return false
	}
	return IsTerminal()
}

// ShouldUseEmoji reports whether status icons may use non-ASCII glyphs.
func ShouldUseEmoji() bool {
	if os.Getenv("ORCH_NO_EMOJI") != "" {
		return false
	}
	return IsTerminal()
}

// SetColorEnabled applies the color decision to lipgloss. Passing false
// forces plain ASCII output for the rest of the process.
func SetColorEnabled(enabled bool) {
	colorDisabled.Store(!enabled)
	if !enabled || !ShouldUseColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	if v := os.Getenv("CLICOLOR_FORCE"); v != "" && v != "0" && !IsTerminal() {
		lipgloss.SetColorProfile(termenv.ANSI256)
		return
	}
	lipgloss.SetColorProfile(termenv.EnvColorProfile())
}
