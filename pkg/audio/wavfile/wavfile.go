// Package wavfile provides an [audio.Source] that replays a mono WAV file as
// if it were a live capture device.
//
// Blocks are delivered from a background goroutine at wall-clock pace
// (configurable) and with a rotating set of block lengths, imitating the
// irregular callback sizes real audio hosts produce. It is intended for
// headless runs, demos against a remote service, and end-to-end tests.
package wavfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/mjibson/go-dsp/wav"

	"github.com/MrWong99/pitchstream/pkg/audio"
)

// defaultBlockSizes mirrors block lengths commonly seen from desktop audio
// hosts. They are cycled through in order.
var defaultBlockSizes = []int{2048, 1024, 4096, 480, 2048, 960}

// Option is a functional option for configuring a [Source].
type Option func(*Source)

// WithBlockSizes sets the rotating list of block lengths in samples.
// Non-positive entries are ignored.
func WithBlockSizes(sizes ...int) Option {
	return func(s *Source) {
		var valid []int
		for _, n := range sizes {
			if n > 0 {
				valid = append(valid, n)
			}
		}
		if len(valid) > 0 {
			s.blockSizes = valid
		}
	}
}

// WithRealtime controls pacing. When false, blocks are delivered as fast as
// the callback accepts them. Default true.
func WithRealtime(realtime bool) Option {
	return func(s *Source) {
		s.realtime = realtime
	}
}

// WithLoop restarts playback from the beginning of the file at EOF instead of
// going silent. Default false.
func WithLoop(loop bool) Option {
	return func(s *Source) {
		s.loop = loop
	}
}

// WithOnEOF registers a callback invoked once when playback reaches the end
// of the file (never called when looping).
func WithOnEOF(fn func()) Option {
	return func(s *Source) {
		s.onEOF = fn
	}
}

// Source implements [audio.Source] by replaying a WAV file.
type Source struct {
	path       string
	blockSizes []int
	realtime   bool
	loop       bool
	onEOF      func()

	mu     sync.Mutex
	rate   int
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// New creates a replay source for the WAV file at path. The file is not
// opened until [Source.Open].
func New(path string, opts ...Option) *Source {
	s := &Source{
		path:       path,
		blockSizes: defaultBlockSizes,
		realtime:   true,
		done:       make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open validates the file header and starts playback. Only mono files are
// accepted; the requested sample rate is ignored (the file's rate is used and
// the pipeline resamples).
func (s *Source) Open(ctx context.Context, c audio.CaptureConstraints, fn audio.BlockFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return audio.ErrSourceClosed
	}
	if c.Channels > 1 {
		return fmt.Errorf("wavfile: %d channels requested; only mono replay is supported", c.Channels)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f, w, err := s.openFile()
	if err != nil {
		return err
	}
	s.rate = int(w.SampleRate)

	slog.Info("wavfile: replay started",
		"path", s.path,
		"sample_rate", s.rate,
		"bits_per_sample", w.BitsPerSample,
	)

	s.wg.Add(1)
	go s.play(f, w, fn)
	return nil
}

// openFile opens s.path and decodes its header.
func (s *Source) openFile() (*os.File, *wav.Wav, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, nil, fmt.Errorf("wavfile: open %q: %w", s.path, err)
	}
	w, err := wav.New(f)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("wavfile: decode %q: %w", s.path, err)
	}
	if w.NumChannels != 1 {
		f.Close()
		return nil, nil, fmt.Errorf("wavfile: %q has %d channels; only mono is supported", s.path, w.NumChannels)
	}
	if w.SampleRate == 0 {
		f.Close()
		return nil, nil, fmt.Errorf("wavfile: %q declares a zero sample rate", s.path)
	}
	return f, w, nil
}

// play delivers blocks until EOF (without loop) or Close. Reads are clamped
// to the samples left in the data chunk, so the last block of a pass may be
// shorter than the rotation asks for.
func (s *Source) play(f *os.File, w *wav.Wav, fn audio.BlockFunc) {
	defer s.wg.Done()
	defer func() { f.Close() }()

	var (
		next   int
		pos    int64
		remain = w.Samples
		passed int
		start  = time.Now()
	)
	for {
		select {
		case <-s.done:
			return
		default:
		}

		if remain <= 0 {
			if !s.loop {
				if s.onEOF != nil {
					s.onEOF()
				}
				return
			}
			if passed == 0 {
				slog.Warn("wavfile: file has no samples, stopping replay", "path", s.path)
				return
			}
			f.Close()
			nf, nw, err := s.openFile()
			if err != nil {
				slog.Warn("wavfile: reopen for loop failed", "path", s.path, "err", err)
				return
			}
			f, w = nf, nw
			remain, passed = w.Samples, 0
			continue
		}

		n := min(s.blockSizes[next%len(s.blockSizes)], remain)
		next++

		samples, err := readSamples(w, n)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				// The header promised more data than the file holds.
				slog.Warn("wavfile: data chunk ends early", "path", s.path, "missing", remain)
				remain = 0
				continue
			}
			slog.Warn("wavfile: read failed, stopping replay", "path", s.path, "err", err)
			return
		}
		remain -= len(samples)
		passed += len(samples)
		fn(audio.Block{
			Samples:    samples,
			SampleRate: s.rate,
			Timestamp:  time.Duration(pos) * time.Second / time.Duration(s.rate),
		})
		pos += int64(len(samples))

		if s.realtime {
			due := start.Add(time.Duration(pos) * time.Second / time.Duration(s.rate))
			select {
			case <-s.done:
				return
			case <-time.After(time.Until(due)):
			}
		}
	}
}

// readSamples reads n samples and maps them to [-1, 1]. go-dsp's own float
// conversion maps integer PCM to [0, 1], which would add a DC offset.
func readSamples(w *wav.Wav, n int) ([]float32, error) {
	raw, err := w.ReadSamples(n)
	if err != nil {
		return nil, err
	}
	switch d := raw.(type) {
	case []int16:
		return audio.Int16ToFloat32(d), nil
	case []uint8:
		out := make([]float32, len(d))
		for i, v := range d {
			out[i] = (float32(v) - 128) / 128
		}
		return out, nil
	case []float32:
		return d, nil
	}
	return nil, fmt.Errorf("wavfile: unsupported sample type %T", raw)
}

// SampleRate reports the file's sample rate. Only valid after Open.
func (s *Source) SampleRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

// Close stops playback and waits for the replay goroutine to exit.
func (s *Source) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

var _ audio.Source = (*Source)(nil)
