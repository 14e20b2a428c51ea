package audio

// Accumulator concatenates resampled samples across capture callbacks and
// slices off fixed-length frames once enough samples are available. Samples
// leave in the order they arrived; a frame may span a callback boundary.
//
// After every [Accumulator.Drain] the buffer holds fewer than one frame of
// samples, so memory stays bounded as long as Drain follows each Append.
//
// An Accumulator is owned by a single goroutine and is not safe for
// concurrent use.
type Accumulator struct {
	size int
	buf  []float32
}

// NewAccumulator returns an Accumulator emitting frames of frameSize samples.
// It panics if frameSize is not positive.
func NewAccumulator(frameSize int) *Accumulator {
	if frameSize <= 0 {
		panic("audio: accumulator frame size must be positive")
	}
	return &Accumulator{
		size: frameSize,
		buf:  make([]float32, 0, 2*frameSize),
	}
}

// FrameSize returns the number of samples per emitted frame.
func (a *Accumulator) FrameSize() int { return a.size }

// Len returns the number of buffered samples not yet emitted.
func (a *Accumulator) Len() int { return len(a.buf) }

// Append adds samples to the end of the buffer.
func (a *Accumulator) Append(samples []float32) {
	a.buf = append(a.buf, samples...)
}

// Drain removes and returns every complete frame currently buffered, oldest
// first. The remainder stays buffered for the next call. Returned frames do
// not alias the internal buffer. Drain returns nil when no full frame is
// available.
func (a *Accumulator) Drain() [][]float32 {
	n := len(a.buf) / a.size
	if n == 0 {
		return nil
	}
	frames := make([][]float32, n)
	for i := range n {
		f := make([]float32, a.size)
		copy(f, a.buf[i*a.size:(i+1)*a.size])
		frames[i] = f
	}
	// Shift the remainder to the front so the backing array is reused.
	rest := copy(a.buf, a.buf[n*a.size:])
	a.buf = a.buf[:rest]
	return frames
}

// Reset discards all buffered samples.
func (a *Accumulator) Reset() {
	a.buf = a.buf[:0]
}
