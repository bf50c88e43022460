// Package telnet serves the line-oriented admin console over TCP, speaking just
// enough Telnet to strip client negotiation and render ANSI colour.
package telnet

import (
	"fmt"
	"regexp"
)

// ANSI SGR sequences used by the console.
const (
	Reset = "\033[0m"
	Bold  = "\033[1m"
	Dim   = "\033[2m"

	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"

	BrightRed     = "\033[91m"
	BrightGreen   = "\033[92m"
	BrightYellow  = "\033[93m"
	BrightMagenta = "\033[95m"
	BrightCyan    = "\033[96m"
	BrightWhite   = "\033[97m"
)

var sgrPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// Colorize wraps text in color and a trailing Reset.
func Colorize(color, text string) string {
	return color + text + Reset
}

// Colorf formats args and wraps the result in color and a trailing Reset.
func Colorf(color, format string, args ...any) string {
	return Colorize(color, fmt.Sprintf(format, args...))
}

// StripANSI removes every SGR sequence from s.
func StripANSI(s string) string {
	return sgrPattern.ReplaceAllString(s, "")
}

// Palette renders console output with or without colour.
type Palette struct {
	Enabled bool
}

// Paint applies color to text when the palette is enabled.
func (p Palette) Paint(color, text string) string {
	if !p.Enabled {
		return text
	}
	return Colorize(color, text)
}

// Paintf formats then paints.
func (p Palette) Paintf(color, format string, args ...any) string {
	return p.Paint(color, fmt.Sprintf(format, args...))
}
