package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/MrWong99/pitchstream/internal/tuner"
)

const textNeedleWidth = 41

// Text writes one line per status change and per reading. Repeated
// identical lines are suppressed so silence does not flood the output.
type Text struct {
	mu   sync.Mutex
	w    io.Writer
	last string
}

// NewText returns a renderer writing to w.
func NewText(w io.Writer) *Text {
	return &Text{w: w}
}

// Status implements [Renderer].
func (t *Text) Status(text string) {
	t.line("status: " + text)
}

// Result implements [Renderer].
func (t *Text) Result(d tuner.Display) {
	line := fmt.Sprintf("%-3s %8s Hz %6s cents [%s] %s",
		d.Note, d.Freq, d.Cents, NeedleBar(d.Needle, textNeedleWidth), d.Tone)
	if d.Target != "" {
		line += " target " + d.Target + " Hz"
	}
	t.line(line)
}

// Close implements [Renderer].
func (t *Text) Close() error { return nil }

func (t *Text) line(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s == t.last {
		return
	}
	t.last = s
	fmt.Fprintln(t.w, s)
}
