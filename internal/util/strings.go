// Package util holds small helpers shared by the wormhole packages: atomic
// file writes for transports and spools, and terminal-safe text shortening
// for the listen output and the demo.
package util

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Ellipsis marks shortened text.
const Ellipsis = "..."

// TruncateRunes shortens s to maxLen runes, ending in Ellipsis when cut.
// Escape sequences count as text; use TruncateANSI for styled output.
func TruncateRunes(s string, maxLen int) string {
	if maxLen <= len(Ellipsis) {
		return Ellipsis
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-len(Ellipsis)]) + Ellipsis
}

// TruncateANSI shortens s to maxWidth terminal columns, ending in Ellipsis
// when cut. Escape sequences are kept and wide runes count double.
func TruncateANSI(s string, maxWidth int) string {
	if maxWidth <= len(Ellipsis) {
		return Ellipsis
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	return ansi.Truncate(s, maxWidth, Ellipsis)
}

// OneLine folds every run of whitespace in s, line breaks included, into a
// single space.
func OneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// FitLine renders s as one terminal row of at most width columns. A width of
// zero or less only folds line breaks.
func FitLine(s string, width int) string {
	s = OneLine(s)
	if width <= 0 {
		return s
	}
	return TruncateANSI(s, width)
}
