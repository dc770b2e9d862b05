// Package ui holds terminal styling for CLI output.
package ui

import (
	"os"

	"github.com/mattn/go-isatty"
)

// ANSI color and style constants for CLI output
const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorDim   = "\033[2m"

	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorWhite  = "\033[97m"
	ColorRed    = "\033[31m"
)

// Enabled reports whether stdout is a terminal that should get colors.
// NO_COLOR disables them.
func Enabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func style(code, s string) string {
	if !Enabled() {
		return s
	}
	return code + s + ColorReset
}

func Bold(s string) string {
	return style(ColorBold, s)
}

func Success(s string) string {
	return style(ColorGreen, s)
}

func Info(s string) string {
	return style(ColorDim+ColorYellow, s)
}

func Warn(s string) string {
	return style(ColorYellow, s)
}

func Error(s string) string {
	return style(ColorRed, s)
}
