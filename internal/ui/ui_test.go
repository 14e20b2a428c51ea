package ui_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/MrWong99/pitchstream/internal/transport"
	"github.com/MrWong99/pitchstream/internal/tuner"
	"github.com/MrWong99/pitchstream/internal/ui"
)

func TestStatusLine(t *testing.T) {
	t.Parallel()
	tests := []struct {
		status transport.Status
		err    error
		want   string
	}{
		{transport.StatusConnecting, nil, "Starting…"},
		{transport.StatusConnected, nil, "Connected. Listening…"},
		{transport.StatusDisconnected, nil, "Disconnected."},
		{transport.StatusDisconnected, errors.New("boom"), "WebSocket error"},
		{transport.StatusNotStarted, nil, ""},
	}
	for _, tc := range tests {
		if got := ui.StatusLine(tc.status, tc.err); got != tc.want {
			t.Errorf("StatusLine(%s, %v) = %q, want %q", tc.status, tc.err, got, tc.want)
		}
	}
}

func TestNeedleBar(t *testing.T) {
	t.Parallel()
	tests := []struct {
		needle float64
		width  int
		want   string
	}{
		{50, 5, "--|--"},
		{0, 5, "|-+--"},
		{100, 5, "--+-|"},
		{75, 5, "--+|-"},
	}
	for _, tc := range tests {
		if got := ui.NeedleBar(tc.needle, tc.width); got != tc.want {
			t.Errorf("NeedleBar(%v, %d) = %q, want %q", tc.needle, tc.width, got, tc.want)
		}
	}
}

func TestText_WritesStatusAndResults(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	r := ui.NewText(&buf)

	r.Status(ui.StatusListening)
	r.Result(tuner.Display{Note: "A4", Freq: "440.00", Cents: "0.0", Needle: 50, Tone: tuner.ToneInTune, Target: "440.00"})
	r.Result(tuner.Display{Note: "A4", Freq: "440.00", Cents: "0.0", Needle: 50, Tone: tuner.ToneInTune, Target: "440.00"})
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2 (duplicates suppressed):\n%s", len(lines), buf.String())
	}
	if lines[0] != "status: Connected. Listening…" {
		t.Errorf("status line = %q", lines[0])
	}
	for _, want := range []string{"A4", "440.00 Hz", "ok", "target 440.00 Hz"} {
		if !strings.Contains(lines[1], want) {
			t.Errorf("result line %q missing %q", lines[1], want)
		}
	}
}

// screenText returns row y of a simulation screen as a string.
func screenText(s tcell.Screen, y int) string {
	w, _ := s.Size()
	var b strings.Builder
	for x := range w {
		r, _, _, _ := s.GetContent(x, y)
		if r == 0 {
			r = ' '
		}
		b.WriteRune(r)
	}
	return strings.TrimRight(b.String(), " ")
}

func TestScreen_DrawsReading(t *testing.T) {
	sim := tcell.NewSimulationScreen("UTF-8")
	sc, err := ui.NewScreenOn(sim, "pitchstream guitar", nil)
	if err != nil {
		t.Fatalf("NewScreenOn: %v", err)
	}
	defer sc.Close()
	sim.SetSize(80, 24)

	sc.Status(ui.StatusListening)
	sc.Result(tuner.Display{Note: "E2", Freq: "82.41", Cents: "-3.0", Needle: 47, Tone: tuner.ToneFlat})

	if got := screenText(sim, 0); !strings.Contains(got, "pitchstream guitar") {
		t.Errorf("title row = %q", got)
	}
	if got := screenText(sim, 1); !strings.Contains(got, "Connected. Listening…") {
		t.Errorf("status row = %q", got)
	}
	if got := screenText(sim, 3); !strings.Contains(got, "E2") {
		t.Errorf("note row = %q", got)
	}
	if got := screenText(sim, 4); !strings.Contains(got, "82.41 Hz") {
		t.Errorf("freq row = %q", got)
	}
	if got := screenText(sim, 8); !strings.ContainsRune(got, '█') {
		t.Errorf("needle row = %q, want a marker", got)
	}
}

func TestScreen_QuitKey(t *testing.T) {
	sim := tcell.NewSimulationScreen("UTF-8")
	quit := make(chan struct{}, 1)
	sc, err := ui.NewScreenOn(sim, "t", func() {
		select {
		case quit <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewScreenOn: %v", err)
	}
	defer sc.Close()

	sim.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)
	select {
	case <-quit:
	case <-time.After(2 * time.Second):
		t.Fatal("onQuit not called for q")
	}
}

func TestScreen_CloseTwice(t *testing.T) {
	sim := tcell.NewSimulationScreen("UTF-8")
	sc, err := ui.NewScreenOn(sim, "t", nil)
	if err != nil {
		t.Fatalf("NewScreenOn: %v", err)
	}
	if err := sc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sc.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	// Drawing after Close is a no-op.
	sc.Status("ignored")
}
