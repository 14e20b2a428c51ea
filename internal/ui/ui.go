// Package ui renders tuner results and connection status.
package ui

import (
	"math"
	"strings"

	"github.com/MrWong99/pitchstream/internal/transport"
	"github.com/MrWong99/pitchstream/internal/tuner"
)

// Renderer is the sink for everything the user sees. Implementations are
// called from the session loop only, one call at a time.
type Renderer interface {
	// Status replaces the status line.
	Status(text string)

	// Result shows a new tuner reading.
	Result(d tuner.Display)

	// Close releases the output.
	Close() error
}

// Status lines shown for transport transitions.
const (
	StatusStarting     = "Starting…"
	StatusListening    = "Connected. Listening…"
	StatusDisconnected = "Disconnected."
	StatusError        = "WebSocket error"
)

// StatusLine returns the status text for a transport transition.
func StatusLine(s transport.Status, err error) string {
	switch s {
	case transport.StatusConnecting:
		return StatusStarting
	case transport.StatusConnected:
		return StatusListening
	case transport.StatusDisconnected:
		if err != nil {
			return StatusError
		}
		return StatusDisconnected
	}
	return ""
}

// NeedleBar draws the needle as width cells with a '|' marker at the needle
// position and a '+' at the centre.
func NeedleBar(needle float64, width int) string {
	if width < 3 {
		width = 3
	}
	cells := []rune(strings.Repeat("-", width))
	cells[width/2] = '+'
	cells[NeedleIndex(needle, width)] = '|'
	return string(cells)
}

// NeedleIndex maps a needle position in percent to a cell in [0, width).
func NeedleIndex(needle float64, width int) int {
	if width <= 1 {
		return 0
	}
	i := int(math.Round(needle / 100 * float64(width-1)))
	return max(0, min(width-1, i))
}
