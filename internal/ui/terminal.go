// Package ui holds the terminal colour helpers used by the CLI.
package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ShouldUseColor reports whether ANSI colors should be used on stdout.
// NO_COLOR wins, then CLICOLOR_FORCE=1, then CLICOLOR=0, then TTY detection.
func ShouldUseColor() bool {
	return shouldUseColor(os.Stdout)
}

func shouldUseColor(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) == "1" {
		return true
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR")) == "0" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Configure disables color when disable is set or stdout should not get it.
func Configure(disable bool) {
	if disable || !ShouldUseColor() {
		ForceNoColor()
	}
}
