// Package mock provides an in-memory implementation of [audio.Source] for use
// in unit tests.
//
// The mock is safe for concurrent use. It records every method call so that
// tests can assert on call counts, and exposes exported fields the test can
// set to control return values. Blocks are pushed synchronously with
// [Source.Push], which invokes the registered callback on the caller's
// goroutine, the way a device driver invokes it on its audio thread.
//
// Typical usage:
//
//	src := &mock.Source{Rate: 48000}
//	_ = src.Open(ctx, audio.DefaultConstraints(), fn)
//	src.Push(make([]float32, 2048))
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/pitchstream/pkg/audio"
)

// Source is a mock implementation of [audio.Source].
// Set the exported fields before use; inspect the Call* fields after.
type Source struct {
	mu sync.Mutex

	// Rate is returned by [Source.SampleRate] and stamped on pushed blocks.
	// Defaults to 48000 if zero.
	Rate int

	// OpenError is returned by [Source.Open]. When non-nil the callback is not
	// registered.
	OpenError error

	// CloseError is returned by [Source.Close].
	CloseError error

	// CallCountOpen records how many times Open was called.
	CallCountOpen int

	// CallCountClose records how many times Close was called.
	CallCountClose int

	// LastConstraints holds the constraints passed to the most recent Open.
	LastConstraints audio.CaptureConstraints

	fn     audio.BlockFunc
	pushed int
	closed bool
	opened bool
}

// Open implements [audio.Source].
func (s *Source) Open(_ context.Context, c audio.CaptureConstraints, fn audio.BlockFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountOpen++
	s.LastConstraints = c
	if s.OpenError != nil {
		return s.OpenError
	}
	if s.closed {
		return audio.ErrSourceClosed
	}
	s.fn = fn
	s.opened = true
	return nil
}

// SampleRate implements [audio.Source].
func (s *Source) SampleRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate()
}

func (s *Source) rate() int {
	if s.Rate == 0 {
		return 48000
	}
	return s.Rate
}

// Close implements [audio.Source]. It returns CloseError on every call.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	s.closed = true
	s.fn = nil
	return s.CloseError
}

// Push delivers samples to the registered callback as one block. It reports
// whether a callback was registered (false before Open or after Close).
func (s *Source) Push(samples []float32) bool {
	s.mu.Lock()
	fn := s.fn
	rate := s.rate()
	ts := time.Duration(s.pushed) * time.Second / time.Duration(rate)
	s.pushed += len(samples)
	s.mu.Unlock()

	if fn == nil {
		return false
	}
	fn(audio.Block{Samples: samples, SampleRate: rate, Timestamp: ts})
	return true
}

// Opened reports whether Open succeeded at least once.
func (s *Source) Opened() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

// Closed reports whether Close has been called.
func (s *Source) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

var _ audio.Source = (*Source)(nil)
