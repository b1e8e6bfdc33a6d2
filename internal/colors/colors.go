// Package colors wraps command output in ANSI colors when stdout is a
// terminal that supports them. NO_COLOR disables colors, FORCE_COLOR forces
// them on, and color.ui = false in the repository config turns them off
// through SetColorEnabled.
package colors

import (
	"os"
	"runtime"
	"strings"

	"golang.org/x/term"
)

// ANSI color codes
const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorDim   = "\033[2m"

	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorCyan   = "\033[36m"
	ColorGray   = "\033[90m"
)

var colorEnabled = shouldUseColor()

func shouldUseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}

	termName := strings.ToLower(os.Getenv("TERM"))
	if runtime.GOOS == "windows" {
		// Windows Terminal and VS Code both handle ANSI sequences.
		if os.Getenv("WT_SESSION") == "" && os.Getenv("VSCODE_PID") == "" &&
			!strings.Contains(termName, "color") && !strings.Contains(termName, "xterm") {
			return false
		}
	} else if termName == "" || termName == "dumb" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// SetColorEnabled overrides terminal detection.
func SetColorEnabled(enabled bool) {
	colorEnabled = enabled
}

// IsColorEnabled reports whether output is being colored.
func IsColorEnabled() bool {
	return colorEnabled
}

func colorize(text, color string) string {
	if !colorEnabled {
		return text
	}
	return color + text + ColorReset
}

// Added colors text for a file present only in the newer state.
func Added(text string) string { return colorize(text, ColorGreen) }

// Modified colors text for a file whose content changed.
func Modified(text string) string { return colorize(text, ColorYellow) }

// Deleted colors text for a file present only in the older state.
func Deleted(text string) string { return colorize(text, ColorRed) }

func Green(text string) string  { return colorize(text, ColorGreen) }
func Red(text string) string    { return colorize(text, ColorRed) }
func Yellow(text string) string { return colorize(text, ColorYellow) }
func Blue(text string) string   { return colorize(text, ColorBlue) }
func Cyan(text string) string   { return colorize(text, ColorCyan) }
func Gray(text string) string   { return colorize(text, ColorGray) }
func Bold(text string) string   { return colorize(text, ColorBold) }
func Dim(text string) string    { return colorize(text, ColorDim) }

// ChangePrefix returns the one-character marker for a change kind: "+",
// "~" or "-", colored to match. Unknown kinds get a blank marker.
func ChangePrefix(kind string) string {
	switch kind {
	case "added":
		return Added("+")
	case "modified":
		return Modified("~")
	case "deleted":
		return Deleted("-")
	}
	return " "
}

// SectionHeader formats a heading line.
func SectionHeader(text string) string {
	return Bold(text)
}

func SuccessText(text string) string { return Green(text) }
func WarningText(text string) string { return Yellow(text) }
func ErrorText(text string) string   { return Red(text) }
func InfoText(text string) string    { return Cyan(text) }
