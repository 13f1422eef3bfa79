package ui

import (
	"fmt"

	"github.com/alfredjeanlab/statusd/internal/model"
)

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorOK     = 114 // green
	colorWarn   = 179 // amber
	colorMuted  = 245 // medium gray
)

var noColor bool

func paint(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return paint(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return paint(colorMuted, s) }

// RenderOK returns s in green.
func RenderOK(s string) string { return paint(colorOK, s) }

// RenderKind colors a status by the producer that reported it: socket
// reports in amber, process matches in blue, everything else muted.
func RenderKind(kind model.Kind, s string) string {
	switch kind {
	case model.KindSocket:
		return paint(colorWarn, s)
	case model.KindProcess:
		return paint(colorAccent, s)
	default:
		return paint(colorMuted, s)
	}
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
