package tuner

import (
	"fmt"
	"math"
)

// Placeholder is shown for a value that is absent.
const Placeholder = "–"

// Needle range in cents on either side of the target.
const needleSpan = 50.0

// Tone classifies how far the played note is from its target.
type Tone int

const (
	ToneFlat Tone = iota
	ToneInTune
	ToneSharp
)

// String returns "flat", "ok" or "sharp".
func (t Tone) String() string {
	switch t {
	case ToneInTune:
		return "ok"
	case ToneSharp:
		return "sharp"
	}
	return "flat"
}

// Display holds the rendered form of a [Result].
type Display struct {
	Note   string
	Freq   string
	Cents  string
	Target string // empty when the service did not report one

	// Needle is the needle position in percent: 0 at -50 cents, 50 in tune,
	// 100 at +50 cents.
	Needle float64
	Tone   Tone
}

// Render converts r into display values. It has no side effects.
func Render(r Result) Display {
	d := Display{
		Note:   Placeholder,
		Freq:   Placeholder,
		Cents:  Placeholder,
		Needle: needleSpan,
		Tone:   toneOf(r.State),
	}
	if r.HasPitch() {
		d.Freq = fmt.Sprintf("%.2f", *r.Freq)
	}
	if r.Note != nil && *r.Note != "" {
		d.Note = *r.Note
	}
	if r.Cents != nil {
		d.Cents = fmt.Sprintf("%.1f", *r.Cents)
		d.Needle = NeedlePosition(*r.Cents)
	}
	if r.Target != nil && *r.Target > 0 {
		d.Target = fmt.Sprintf("%.2f", *r.Target)
	}
	return d
}

// NeedlePosition maps cents to a needle position in percent, clamping to
// the ±50 cent range.
func NeedlePosition(cents float64) float64 {
	if math.IsNaN(cents) {
		return needleSpan
	}
	c := max(-needleSpan, min(needleSpan, cents))
	return needleSpan + c
}

func toneOf(state string) Tone {
	switch state {
	case "ok":
		return ToneInTune
	case "sharp":
		return ToneSharp
	}
	return ToneFlat
}
