// Package session drives one capture session: it opens the transport and the
// capture source, converts every captured block to 16 kHz frames, sends them,
// and renders the results the service sends back.
//
// All audio state lives on a single event-loop goroutine. Capture callbacks,
// the transport reader and status callbacks only hand events to that loop,
// so none of them ever touches the frame accumulator or blocks on it.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/MrWong99/pitchstream/internal/observe"
	"github.com/MrWong99/pitchstream/internal/transport"
	"github.com/MrWong99/pitchstream/internal/tuner"
	"github.com/MrWong99/pitchstream/internal/ui"
	"github.com/MrWong99/pitchstream/pkg/audio"
)

// State is the lifecycle state of a [Session].
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	// ErrAlreadyStarted is returned by [Session.Start] unless the session is idle.
	ErrAlreadyStarted = errors.New("session: already started")

	// ErrStopped is returned by [Session.Start] after [Session.Stop].
	ErrStopped = errors.New("session: stopped")

	// ErrInsecureContext is returned by [Session.Start] when the configured
	// origin is neither https nor localhost.
	ErrInsecureContext = transport.ErrInsecureContext
)

// PermissionError reports that the capture source could not be opened, for
// example because the microphone is missing or access was denied.
type PermissionError struct {
	Err error
}

func (e *PermissionError) Error() string {
	return "session: microphone unavailable: " + e.Err.Error()
}

func (e *PermissionError) Unwrap() error { return e.Err }

// Config holds the settings a session needs.
type Config struct {
	// Origin is the page origin; see [transport.CheckSecureContext].
	Origin string

	// Path is the service endpoint path, e.g. "/tune".
	Path string

	// Instrument is announced to the service once connected. Empty sends
	// nothing and leaves the service default.
	Instrument string

	// BlockQueue bounds captured blocks waiting for the loop. Default: 32.
	BlockQueue int

	// SendBuffer and DialTimeout are passed to the transport.
	SendBuffer  int
	DialTimeout time.Duration

	// Constraints are passed to the capture source. Zero value means
	// [audio.DefaultConstraints].
	Constraints audio.CaptureConstraints
}

// Stats are running totals for one session.
type Stats struct {
	BlocksCaptured int64
	CapturedAudio  time.Duration
	BlocksDropped  int64
	FramesSent     int64
	FramesDropped  int64
	Results        int64
	Discarded      int64
}

// Option configures a [Session].
type Option func(*Session)

// WithMetrics overrides the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// Session is the capture driver and session controller. Create one with
// [New]; it is safe for concurrent use.
type Session struct {
	cfg      Config
	source   audio.Source
	renderer ui.Renderer
	metrics  *observe.Metrics
	id       string

	mu         sync.Mutex
	state      State
	instrument string
	run        *run

	blocksCaptured atomic.Int64
	capturedNanos  atomic.Int64
	blocksDropped  atomic.Int64
	framesSent     atomic.Int64
	framesDropped  atomic.Int64
	results        atomic.Int64
	discarded      atomic.Int64

	last atomic.Pointer[tuner.Display]
}

// New creates an idle session capturing from src and rendering to r.
func New(cfg Config, src audio.Source, r ui.Renderer, opts ...Option) *Session {
	if cfg.BlockQueue <= 0 {
		cfg.BlockQueue = 32
	}
	if cfg.Constraints == (audio.CaptureConstraints{}) {
		cfg.Constraints = audio.DefaultConstraints()
	}
	s := &Session{
		cfg:        cfg,
		source:     src,
		renderer:   r,
		instrument: cfg.Instrument,
		id:         newID(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// ID returns the session identifier attached to log records.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns a snapshot of the running totals.
func (s *Session) Stats() Stats {
	return Stats{
		BlocksCaptured: s.blocksCaptured.Load(),
		CapturedAudio:  time.Duration(s.capturedNanos.Load()),
		BlocksDropped:  s.blocksDropped.Load(),
		FramesSent:     s.framesSent.Load(),
		FramesDropped:  s.framesDropped.Load(),
		Results:        s.results.Load(),
		Discarded:      s.discarded.Load(),
	}
}

// LastResult returns the most recently rendered reading. ok is false until
// the service has sent a result.
func (s *Session) LastResult() (d tuner.Display, ok bool) {
	if p := s.last.Load(); p != nil {
		return *p, true
	}
	return tuner.Display{}, false
}

// TransportStatus returns the status of the current channel, or
// [transport.StatusNotStarted] when there is none.
func (s *Session) TransportStatus() transport.Status {
	s.mu.Lock()
	r := s.run
	s.mu.Unlock()
	if r == nil {
		return transport.StatusNotStarted
	}
	return r.channel.Status()
}

// Done returns a channel closed when the running session's loop has exited.
// It returns nil before a successful [Session.Start].
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == nil {
		return nil
	}
	return s.run.done
}

// Start checks the origin, opens the transport and the capture source, and
// starts the event loop. On any failure the session is back in
// [StateIdle] and nothing is left open. The session runs until ctx is
// cancelled or [Session.Stop] is called.
func (s *Session) Start(ctx context.Context) (err error) {
	s.mu.Lock()
	switch s.state {
	case StateIdle:
	case StateStopped:
		s.mu.Unlock()
		return ErrStopped
	default:
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = StateStarting
	instrument := s.instrument
	s.mu.Unlock()

	ctx = observe.WithSessionID(ctx, s.id)
	ctx, span := observe.StartSpan(ctx, "session.start")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "start failed")
			s.setState(StateIdle)
		}
		span.End()
	}()
	log := observe.Logger(ctx)

	// The capability check runs before anything is opened.
	if err := transport.CheckSecureContext(s.cfg.Origin); err != nil {
		log.Warn("session: refusing to start", "origin", s.cfg.Origin, "err", err)
		return err
	}
	url, err := transport.Endpoint(s.cfg.Origin, s.cfg.Path)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.String("endpoint", url))

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{
		ctx:         runCtx,
		cancel:      cancel,
		blocks:      make(chan audio.Block, s.cfg.BlockQueue),
		inbound:     make(chan []byte, 8),
		statuses:    make(chan statusEvent, 8),
		instruments: make(chan string, 1),
		done:        make(chan struct{}),
		acc:         audio.NewAccumulator(audio.SamplesPerChunk(audio.TargetSampleRate, audio.FrameDuration)),
		resampler:   &audio.Resampler{Target: audio.TargetSampleRate},
		instrument:  instrument,
	}
	r.channel = transport.New(url,
		transport.WithSendBuffer(s.cfg.SendBuffer),
		transport.WithDialTimeout(s.cfg.DialTimeout),
		transport.WithOrigin(s.cfg.Origin),
		transport.WithMetrics(s.metrics),
		transport.WithOnMessage(r.onMessage),
		transport.WithOnStatus(r.onStatus),
	)
	if err := r.channel.Open(runCtx); err != nil {
		cancel()
		return err
	}

	if err := s.source.Open(runCtx, s.cfg.Constraints, s.onBlock(r)); err != nil {
		_ = r.channel.Close()
		cancel()
		log.Warn("session: capture source unavailable", "err", err)
		return &PermissionError{Err: err}
	}

	s.mu.Lock()
	s.run = r
	s.state = StateRunning
	s.mu.Unlock()

	s.metrics.ActiveSessions.Add(ctx, 1)
	log.Info("session: running",
		"endpoint", url,
		"device_rate", s.source.SampleRate(),
		"frame_samples", r.acc.FrameSize(),
		"instrument", instrument,
	)

	go s.loop(r)
	return nil
}

// Stop ends the session: it stops the loop, releases the capture source and
// closes the transport. It is safe to call more than once and from any
// state; a session that was never started moves straight to [StateStopped].
func (s *Session) Stop() {
	s.mu.Lock()
	r := s.run
	if r == nil {
		if s.state == StateIdle {
			s.state = StateStopped
		}
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	r.cancel()
	<-r.done
}

// SetInstrument changes the instrument announced to the service. A running
// session sends it over the live channel right away.
func (s *Session) SetInstrument(name string) {
	s.mu.Lock()
	s.instrument = name
	r := s.run
	s.mu.Unlock()
	if r == nil {
		return
	}
	// Keep only the newest pending change.
	for {
		select {
		case r.instruments <- name:
			return
		case <-r.done:
			return
		default:
		}
		select {
		case <-r.instruments:
		default:
		}
	}
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// onBlock returns the capture callback. It copies the block, because
// sources may reuse their buffers, and never waits for the loop.
func (s *Session) onBlock(r *run) audio.BlockFunc {
	return func(b audio.Block) {
		s.blocksCaptured.Add(1)
		s.capturedNanos.Add(int64(b.Duration()))
		s.metrics.BlocksCaptured.Add(r.ctx, 1)
		select {
		case r.blocks <- b.Clone():
		default:
			s.blocksDropped.Add(1)
			s.metrics.RecordBlockDropped(r.ctx, observe.ReasonLoopBusy)
		}
	}
}
