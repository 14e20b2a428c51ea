package audio

import (
	"fmt"
	"log/slog"
	"sync"
)

// Resample converts a mono block from inRate to outRate using linear
// interpolation. The output has floor(len(block) / ratio) samples where
// ratio = inRate / outRate.
//
// No state is carried between calls: every block is resampled on its own,
// so interpolation phase restarts at each block boundary.
//
// If either rate is non-positive the input is returned unchanged. If the
// rates are equal a copy of the input is returned.
func Resample(block []float32, inRate, outRate int) []float32 {
	if inRate <= 0 || outRate <= 0 {
		return block
	}
	n := len(block)
	if n == 0 {
		return []float32{}
	}
	if inRate == outRate {
		out := make([]float32, n)
		copy(out, block)
		return out
	}

	// floor(n / ratio), computed in integers to avoid rounding at exact multiples.
	outLen := int(int64(n) * int64(outRate) / int64(inRate))
	ratio := float64(inRate) / float64(outRate)
	out := make([]float32, outLen)

	for i := range outLen {
		t := float64(i) * ratio
		i0 := int(t)
		i1 := min(i0+1, n-1)
		frac := t - float64(i0)
		out[i] = float32(float64(block[i0])*(1-frac) + float64(block[i1])*frac)
	}
	return out
}

// Resampler converts blocks to a fixed target rate. It logs a warning on the
// first rate mismatch so that device rates show up in the logs once.
// Create one per session; not designed for shared use across goroutines.
type Resampler struct {
	Target         int
	warnedMismatch sync.Once
	warnedInvalid  sync.Once
}

// Resample converts b to r.Target. A block already at the target rate is
// copied unchanged.
func (r *Resampler) Resample(b Block) []float32 {
	if b.SampleRate <= 0 {
		r.warnedInvalid.Do(func() {
			slog.Warn("audio resampler: block has no sample rate, passing through",
				"samples", len(b.Samples),
			)
		})
		return Resample(b.Samples, b.SampleRate, r.Target)
	}
	if b.SampleRate != r.Target {
		r.warnedMismatch.Do(func() {
			slog.Info("audio resampler: converting",
				"from", formatString(b.SampleRate, 1),
				"to", formatString(r.Target, 1),
			)
		})
	}
	return Resample(b.Samples, b.SampleRate, r.Target)
}

// Int16ToFloat32 converts signed 16-bit PCM samples to float32 in [-1, 1).
func Int16ToFloat32(pcm []int16) []float32 {
	out := make([]float32, len(pcm))
	for i, s := range pcm {
		out[i] = float32(s) / 32768
	}
	return out
}

// formatString returns a human-readable string for a sample rate and channel count,
// e.g. "48000Hz mono".
func formatString(rate, channels int) string {
	ch := "mono"
	if channels == 2 {
		ch = "stereo"
	} else if channels > 2 {
		ch = fmt.Sprintf("%dch", channels)
	}
	return fmt.Sprintf("%dHz %s", rate, ch)
}
