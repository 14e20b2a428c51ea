package audio

import "time"

const (
	// TargetSampleRate is the rate in Hz agreed with the pitch-analysis
	// service. Every outbound frame is sampled at this rate.
	TargetSampleRate = 16000

	// FrameDuration is the amount of audio carried by one outbound frame.
	FrameDuration = 50 * time.Millisecond

	// BytesPerSample is the wire size of one float32 sample.
	BytesPerSample = 4
)

// SamplesPerChunk returns the number of samples in one frame of duration d at
// the given sample rate, rounded to the nearest integer.
// For the defaults (16000 Hz, 50 ms) this is 800.
func SamplesPerChunk(sampleRate int, d time.Duration) int {
	n := float64(sampleRate) * d.Seconds()
	return int(n + 0.5)
}

// Block is one capture callback's worth of mono audio at the device's
// native sample rate. Samples are nominally in the range [-1, 1].
//
// Blocks are ephemeral: they are produced by a [Source] callback and consumed
// by a single pass through the pipeline.
type Block struct {
	// Samples holds the PCM data. Sources may reuse the backing array between
	// callbacks; consumers that retain a block must copy it.
	Samples []float32

	// SampleRate in Hz of Samples (e.g., 44100 or 48000 for most devices).
	SampleRate int

	// Timestamp marks when this block was captured, relative to source start.
	Timestamp time.Duration
}

// Clone returns a copy of b whose Samples do not alias the original.
func (b Block) Clone() Block {
	s := make([]float32, len(b.Samples))
	copy(s, b.Samples)
	b.Samples = s
	return b
}

// Duration reports how much audio the block carries.
func (b Block) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}
