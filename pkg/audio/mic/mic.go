// Package mic provides an [audio.Source] backed by the system's default
// (or a named) input device through PortAudio.
//
// The stream is opened in callback mode with an unspecified buffer size, so
// the host API decides how many samples each callback carries. Blocks are
// therefore not uniform in length, which the pipeline is built to tolerate.
package mic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/MrWong99/pitchstream/pkg/audio"
)

// ErrNoInputDevice is returned by [Source.Open] when the host exposes no
// usable capture device.
var ErrNoInputDevice = errors.New("mic: no input device available")

// Option is a functional option for configuring a [Source].
type Option func(*Source)

// WithDevice selects the input device by name or by a case-insensitive
// part of it. An empty name selects the host's default input device.
func WithDevice(name string) Option {
	return func(s *Source) {
		s.deviceName = name
	}
}

// WithLatency overrides the suggested input latency. Zero keeps the device's
// default low-latency setting.
func WithLatency(d time.Duration) Option {
	return func(s *Source) {
		s.latency = d
	}
}

// inputStream is the part of *portaudio.Stream the source drives.
type inputStream interface {
	Start() error
	Stop() error
	Close() error
}

// Source implements [audio.Source] on top of a PortAudio input stream.
type Source struct {
	deviceName string
	latency    time.Duration

	mu      sync.Mutex
	stream  inputStream
	rate    int
	fn      audio.BlockFunc
	samples int64
	closed  bool
	inited  bool
}

// New creates a PortAudio capture source. The device is not touched until
// [Source.Open].
func New(opts ...Option) *Source {
	s := &Source{}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open initialises PortAudio, opens the input device and starts capture.
// The stream is opened at c.SampleRate when the device supports it and at
// the device's default rate otherwise.
func (s *Source) Open(_ context.Context, c audio.CaptureConstraints, fn audio.BlockFunc) error {
	stream, err := s.openStream(c, fn)
	if err != nil {
		return err
	}
	return s.start(stream)
}

// start runs the opened stream. The audio thread takes s.mu in callback and
// may fire before Start returns, so the lock is not held here.
func (s *Source) start(stream inputStream) error {
	if err := stream.Start(); err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.stream == stream {
			_ = stream.Close()
			s.stream = nil
			s.fn = nil
			s.terminate()
		}
		return fmt.Errorf("mic: start input: %w", err)
	}

	s.mu.Lock()
	rate := s.rate
	s.mu.Unlock()
	slog.Info("mic: capture started",
		"device", s.deviceName,
		"sample_rate", rate,
	)
	return nil
}

// openStream initialises PortAudio and opens, but does not start, the input
// stream.
func (s *Source) openStream(c audio.CaptureConstraints, fn audio.BlockFunc) (inputStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, audio.ErrSourceClosed
	}
	if c.Channels > 1 {
		return nil, fmt.Errorf("mic: %d channels requested; only mono capture is supported", c.Channels)
	}
	if c.EchoCancellation || c.NoiseSuppression || c.AutoGainControl {
		slog.Warn("mic: device-side processing is not available; capturing raw signal",
			"echo_cancellation", c.EchoCancellation,
			"noise_suppression", c.NoiseSuppression,
			"auto_gain_control", c.AutoGainControl,
		)
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("mic: initialize: %w", err)
	}
	s.inited = true

	dev, err := s.inputDevice()
	if err != nil {
		s.terminate()
		return nil, err
	}

	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = 1
	params.FramesPerBuffer = portaudio.FramesPerBufferUnspecified
	if s.latency > 0 {
		params.Input.Latency = s.latency
	}
	if c.SampleRate > 0 {
		params.SampleRate = float64(c.SampleRate)
		if err := portaudio.IsFormatSupported(params, s.callback); err != nil {
			slog.Info("mic: requested rate not supported, using device default",
				"requested", c.SampleRate,
				"device_default", dev.DefaultSampleRate,
				"err", err,
			)
			params.SampleRate = dev.DefaultSampleRate
		}
	}

	stream, err := portaudio.OpenStream(params, s.callback)
	if err != nil {
		s.terminate()
		return nil, fmt.Errorf("mic: open input %q: %w", dev.Name, err)
	}

	s.stream = stream
	s.rate = int(params.SampleRate)
	s.fn = fn
	slog.Debug("mic: input opened",
		"device", dev.Name,
		"sample_rate", s.rate,
		"latency", params.Input.Latency,
	)
	return stream, nil
}

// inputDevice resolves the configured device name, or the default input.
func (s *Source) inputDevice() (*portaudio.DeviceInfo, error) {
	if s.deviceName == "" {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoInputDevice, err)
		}
		return dev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("mic: list devices: %w", err)
	}
	if dev := matchDevice(devices, s.deviceName); dev != nil {
		return dev, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNoInputDevice, s.deviceName)
}

// matchDevice returns the first capture-capable device whose name contains
// name, ignoring case. An exact match wins over a partial one.
func matchDevice(devices []*portaudio.DeviceInfo, name string) *portaudio.DeviceInfo {
	want := strings.ToLower(name)
	var partial *portaudio.DeviceInfo
	for _, d := range devices {
		if d.MaxInputChannels <= 0 {
			continue
		}
		got := strings.ToLower(d.Name)
		if got == want {
			return d
		}
		if partial == nil && strings.Contains(got, want) {
			partial = d
		}
	}
	return partial
}

// callback runs on the PortAudio audio thread. in is reused by PortAudio
// after the callback returns.
func (s *Source) callback(in []float32) {
	s.mu.Lock()
	fn := s.fn
	rate := s.rate
	ts := time.Duration(s.samples) * time.Second / time.Duration(max(rate, 1))
	s.samples += int64(len(in))
	s.mu.Unlock()

	if fn == nil {
		return
	}
	fn(audio.Block{Samples: in, SampleRate: rate, Timestamp: ts})
}

// SampleRate reports the rate the stream was opened at.
func (s *Source) SampleRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

// Close stops the stream, releases the device and terminates PortAudio.
func (s *Source) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.fn = nil
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()

	var errs []error
	if stream != nil {
		if err := stream.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("mic: stop: %w", err))
		}
		if err := stream.Close(); err != nil {
			errs = append(errs, fmt.Errorf("mic: close: %w", err))
		}
	}
	s.mu.Lock()
	s.terminate()
	s.mu.Unlock()
	return errors.Join(errs...)
}

// terminate balances a successful Initialize. Callers hold s.mu.
func (s *Source) terminate() {
	if !s.inited {
		return
	}
	s.inited = false
	if err := portaudio.Terminate(); err != nil {
		slog.Warn("mic: terminate", "err", err)
	}
}

var _ audio.Source = (*Source)(nil)
