package ui

import (
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

const (
	defaultMarkdownWidth = 80
	maxMarkdownWidth     = 100
)

// markdownWidth is the wrap column: the terminal width, capped for
// readability.
func markdownWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return defaultMarkdownWidth
	}
	return min(w, maxMarkdownWidth)
}

// RenderMarkdown renders reports for the terminal with glamour. Without
// color the markdown source is returned unchanged, so piped output stays
// machine-readable; rendering errors also fall back to the source.
func RenderMarkdown(markdown string) string {
	if !ShouldUseColor() {
		return markdown
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(markdownWidth()),
	)
	if err != nil {
		return markdown
	}
	out, err := r.Render(markdown)
	if err != nil {
		return markdown
	}
	return out
}
