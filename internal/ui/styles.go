// Package ui provides terminal styling for orch CLI output.
// Uses the Ayu color theme with adaptive light/dark mode support.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/moai-adk/orchestrator/internal/types"
)

// Ayu theme color palette
// Dark: https://terminalcolors.com/themes/ayu/dark/
// Light: https://terminalcolors.com/themes/ayu/light/
var (
	// Semantic status colors (Ayu theme - adaptive light/dark)
	ColorPass = lipgloss.AdaptiveColor{
		Light: "#86b300", // ayu light bright green
		Dark:  "#c2d94c", // ayu dark bright green
	}
	ColorWarn = lipgloss.AdaptiveColor{
		Light: "#f2ae49", // ayu light bright yellow
		Dark:  "#ffb454", // ayu dark bright yellow
	}
	ColorFail = lipgloss.AdaptiveColor{
		Light: "#f07171", // ayu light bright red
		Dark:  "#f07178", // ayu dark bright red
	}
	ColorMuted = lipgloss.AdaptiveColor{
		Light: "#828c99", // ayu light muted
		Dark:  "#6c7680", // ayu dark muted
	}
	ColorAccent = lipgloss.AdaptiveColor{
		Light: "#399ee6", // ayu light bright blue
		Dark:  "#59c2ff", // ayu dark bright blue
	}
)

// Status styles - consistent across all commands
var (
	PassStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle   = lipgloss.NewStyle().Foreground(ColorFail)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	AccentStyle = lipgloss.NewStyle().Foreground(ColorAccent)
)

// categoryStyle for section headers - bold with accent color
var categoryStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)

// Status icons - consistent semantic indicators
const (
	IconPass = "✓"
	IconWarn = "⚠"
	IconFail = "✗"
	IconSkip = "-"
	IconInfo = "ℹ"
)

// Spec status icons
const (
	IconPending      = "○"
	IconInProgress   = "◐"
	IconVerification = "◑"
	IconCompleted    = "●"
)

// Tree characters for detail lines
const (
	TreeLast   = "└─ "
	TreeIndent = "  "
)

// SeparatorLight divides table headers from rows.
const SeparatorLight = "──────────────────────────────────────────"

// RenderPass renders text with pass (green) styling
func RenderPass(s string) string {
	return PassStyle.Render(s)
}

// RenderWarn renders text with warning (yellow) styling
func RenderWarn(s string) string {
	return WarnStyle.Render(s)
}

// RenderFail renders text with fail (red) styling
func RenderFail(s string) string {
	return FailStyle.Render(s)
}

// RenderMuted renders text with muted (gray) styling
func RenderMuted(s string) string {
	return MutedStyle.Render(s)
}

// RenderAccent renders text with accent (blue) styling
func RenderAccent(s string) string {
	return AccentStyle.Render(s)
}

// RenderCategory renders a category header in uppercase with accent color
func RenderCategory(s string) string {
	return categoryStyle.Render(strings.ToUpper(s))
}

// RenderSeparator renders the light separator line in muted color
func RenderSeparator() string {
	return MutedStyle.Render(SeparatorLight)
}

// RenderPassIcon renders the pass icon with styling
func RenderPassIcon() string {
	return PassStyle.Render(IconPass)
}

// RenderWarnIcon renders the warning icon with styling
func RenderWarnIcon() string {
	return WarnStyle.Render(IconWarn)
}

// RenderFailIcon renders the fail icon with styling
func RenderFailIcon() string {
	return FailStyle.Render(IconFail)
}

// RenderSkipIcon renders the skip icon with styling
func RenderSkipIcon() string {
	return MutedStyle.Render(IconSkip)
}

// RenderInfoIcon renders the info icon with styling
func RenderInfoIcon() string {
	return AccentStyle.Render(IconInfo)
}

// StatusIcon returns the icon for a spec status. Without emoji support the
// icons degrade to ASCII.
func StatusIcon(s types.Status) string {
	if !ShouldUseEmoji() {
		return asciiStatusIcon(s)
	}
	switch s {
	case types.StatusInProgress:
		return IconInProgress
	case types.StatusVerification:
		return IconVerification
	case types.StatusCompleted:
		return IconCompleted
	default:
		return IconPending
	}
}

func asciiStatusIcon(s types.Status) string {
	switch s {
	case types.StatusInProgress:
		return "[~]"
	case types.StatusVerification:
		return "[?]"
	case types.StatusCompleted:
		return "[x]"
	default:
		return "[ ]"
	}
}

// StatusStyle returns the style used for a spec status.
func StatusStyle(s types.Status) lipgloss.Style {
	switch s {
	case types.StatusInProgress:
		return AccentStyle
	case types.StatusVerification:
		return WarnStyle
	case types.StatusCompleted:
		return PassStyle
	default:
		return MutedStyle
	}
}

// RenderStatus renders a status with its icon, padded to width before styling
// so columns line up with and without color.
func RenderStatus(s types.Status, width int) string {
	text := StatusIcon(s) + " " + s.String()
	if pad := width - lipgloss.Width(text); pad > 0 {
		text += strings.Repeat(" ", pad)
	}
	return StatusStyle(s).Render(text)
}

// RenderProgressBar renders done/total as a fixed-width bar with a percentage.
func RenderProgressBar(done, total, width int) string {
	if width <= 0 {
		width = 20
	}
	filled := 0
	pct := 0.0
	if total > 0 {
		filled = done * width / total
		pct = float64(done) / float64(total) * 100
	}
	bar := PassStyle.Render(strings.Repeat("█", filled)) + MutedStyle.Render(strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s %d/%d (%.1f%%)", bar, done, total, pct)
}
