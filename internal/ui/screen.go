package ui

import (
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/MrWong99/pitchstream/internal/tuner"
)

// Screen draws a full-screen tuner with tcell: title, status line, note,
// frequency, cents and a coloured needle.
type Screen struct {
	screen tcell.Screen
	title  string
	onQuit func()

	mu      sync.Mutex // guards the fields below and serialises drawing
	status  string
	display tuner.Display
	closed  bool

	done chan struct{}
	once sync.Once
}

// NewScreen opens the terminal. onQuit runs when the user presses q, Esc or
// Ctrl-C.
func NewScreen(title string, onQuit func()) (*Screen, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("ui: open terminal: %w", err)
	}
	return NewScreenOn(s, title, onQuit)
}

// NewScreenOn draws on an existing, uninitialised tcell screen. Tests pass
// a simulation screen.
func NewScreenOn(s tcell.Screen, title string, onQuit func()) (*Screen, error) {
	if err := s.Init(); err != nil {
		return nil, fmt.Errorf("ui: init terminal: %w", err)
	}
	s.SetStyle(tcell.StyleDefault)
	s.HideCursor()

	sc := &Screen{
		screen: s,
		title:  title,
		onQuit: onQuit,
		display: tuner.Display{
			Note:   tuner.Placeholder,
			Freq:   tuner.Placeholder,
			Cents:  tuner.Placeholder,
			Needle: 50,
		},
		done: make(chan struct{}),
	}
	sc.mu.Lock()
	sc.drawLocked()
	sc.mu.Unlock()
	go sc.pollEvents()
	return sc, nil
}

// Status implements [Renderer].
func (sc *Screen) Status(text string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.status = text
	sc.drawLocked()
}

// Result implements [Renderer].
func (sc *Screen) Result(d tuner.Display) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.display = d
	sc.drawLocked()
}

// Close restores the terminal. It is safe to call more than once.
func (sc *Screen) Close() error {
	sc.once.Do(func() {
		sc.mu.Lock()
		sc.closed = true
		sc.mu.Unlock()
		sc.screen.Fini()
		<-sc.done
	})
	return nil
}

func (sc *Screen) pollEvents() {
	defer close(sc.done)
	for {
		ev := sc.screen.PollEvent()
		if ev == nil {
			return
		}
		switch ev := ev.(type) {
		case *tcell.EventResize:
			sc.mu.Lock()
			if !sc.closed {
				sc.screen.Sync()
				sc.drawLocked()
			}
			sc.mu.Unlock()
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q' {
				if sc.onQuit != nil {
					sc.onQuit()
				}
			}
		}
	}
}

// toneStyle colours the needle: green in tune, orange sharp, red flat.
func toneStyle(t tuner.Tone) tcell.Style {
	switch t {
	case tuner.ToneInTune:
		return tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
	case tuner.ToneSharp:
		return tcell.StyleDefault.Foreground(tcell.ColorOrange).Bold(true)
	}
	return tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
}

// drawLocked redraws everything. The caller holds sc.mu.
func (sc *Screen) drawLocked() {
	if sc.closed {
		return
	}
	status, d := sc.status, sc.display
	s := sc.screen
	s.Clear()
	w, _ := s.Size()
	plain := tcell.StyleDefault
	dim := plain.Dim(true)

	drawText(s, 1, 0, plain.Bold(true), sc.title)
	drawText(s, 1, 1, dim, status)

	drawText(s, 1, 3, plain, "Note   ")
	drawText(s, 8, 3, plain.Bold(true), d.Note)
	drawText(s, 1, 4, plain, "Freq   "+d.Freq+" Hz")
	drawText(s, 1, 5, plain, "Cents  "+d.Cents)
	if d.Target != "" {
		drawText(s, 1, 6, dim, "Target "+d.Target+" Hz")
	}

	barWidth := max(11, min(61, w-2))
	drawText(s, 1, 8, dim, NeedleBar(50, barWidth))
	s.SetContent(1+NeedleIndex(d.Needle, barWidth), 8, '█', nil, toneStyle(d.Tone))
	drawText(s, 1, 9, dim, "-50")
	drawText(s, 1+barWidth-3, 9, dim, "+50")

	drawText(s, 1, 11, dim, "q: quit")
	s.Show()
}

func drawText(s tcell.Screen, x, y int, style tcell.Style, text string) {
	for _, r := range text {
		s.SetContent(x, y, r, nil, style)
		x++
	}
}
