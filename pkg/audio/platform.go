// Package audio defines the capture abstraction and the sample-level building
// blocks of the pitchstream pipeline.
//
// The primary abstractions are:
//
//   - [Source]: a capture device (microphone, file replay) that pushes
//     [Block] values at its own cadence and block size.
//   - [Resample]: stateless linear-interpolation rate conversion of a
//     single block to [TargetSampleRate].
//   - [Accumulator]: a FIFO carry-over buffer that slices fixed-length
//     frames out of an irregular stream of resampled blocks.
//   - [EncodeFrame]: the little-endian float32 wire encoding of a frame.
//
// Implementations of [Source] live in adapter packages (audio/mic,
// audio/wavfile, audio/mock). The interface is narrow so
// the session controller does not depend on any device library.
package audio

import (
	"context"
	"errors"
)

// ErrSourceClosed is returned by [Source.Open] when the source has already
// been closed.
var ErrSourceClosed = errors.New("audio: source is closed")

// CaptureConstraints describes the capture request sent to a [Source].
// Devices may ignore SampleRate; the pipeline resamples whatever arrives.
type CaptureConstraints struct {
	// Channels is the requested channel count. Only mono (1) is supported.
	Channels int

	// SampleRate is the requested capture rate in Hz.
	SampleRate int

	// EchoCancellation, NoiseSuppression and AutoGainControl request the
	// corresponding device-side processing. Pitch tracking wants the raw
	// signal, so all three default to false.
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// DefaultConstraints returns the capture request used by the session:
// mono, no processing, requested rate = [TargetSampleRate].
func DefaultConstraints() CaptureConstraints {
	return CaptureConstraints{
		Channels:   1,
		SampleRate: TargetSampleRate,
	}
}

// BlockFunc receives captured blocks. It is invoked on the source's own
// goroutine (or audio thread) and must not block. The Samples slice is only
// valid for the duration of the call.
type BlockFunc func(Block)

// Source is a capture device that drives the pipeline.
//
// Implementations must be safe for concurrent use of Close with an in-flight
// callback.
type Source interface {
	// Open acquires the device and starts delivering blocks to fn. Block sizes
	// are chosen by the device and may vary between callbacks. Open returns
	// once capture is running or acquisition failed (e.g., permission denied,
	// no device). ctx bounds the acquisition only; capture continues until
	// Close.
	Open(ctx context.Context, c CaptureConstraints, fn BlockFunc) error

	// SampleRate reports the native rate of delivered blocks. Only valid
	// after a successful Open.
	SampleRate() int

	// Close stops capture and releases the device. It is safe to call Close
	// more than once; subsequent calls are no-ops and return nil.
	Close() error
}
