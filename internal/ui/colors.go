// Package ui holds the terminal styling of the CLI summaries and help.
package ui

import "os"

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

// Plain disables styling in the helpers below. It starts true when
// NO_COLOR is set.
var Plain = os.Getenv("NO_COLOR") != ""

func style(code, s string) string {
	if Plain {
		return s
	}
	return code + s + ColorReset
}

func Bold(s string) string    { return style(ColorBold, s) }
func Success(s string) string { return style(ColorGreen, s) }
func Info(s string) string    { return style(ColorDim+ColorYellow, s) }
func Error(s string) string   { return style(ColorRed, s) }
