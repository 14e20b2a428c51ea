package session

import (
	"context"
	"errors"
	"time"

	"github.com/MrWong99/pitchstream/internal/observe"
	"github.com/MrWong99/pitchstream/internal/transport"
	"github.com/MrWong99/pitchstream/internal/tuner"
	"github.com/MrWong99/pitchstream/internal/ui"
	"github.com/MrWong99/pitchstream/pkg/audio"
)

type statusEvent struct {
	status transport.Status
	err    error
}

// run is the state of one started session. The fields below the channel
// block are owned by the loop goroutine.
type run struct {
	ctx     context.Context
	cancel  context.CancelFunc
	channel *transport.Channel

	blocks      chan audio.Block
	inbound     chan []byte
	statuses    chan statusEvent
	instruments chan string
	done        chan struct{}

	acc        *audio.Accumulator
	resampler  *audio.Resampler
	instrument string
}

// onMessage runs on the transport reader. Inbound messages wait for the
// loop; only outbound audio is ever dropped.
func (r *run) onMessage(data []byte) {
	select {
	case r.inbound <- data:
	case <-r.ctx.Done():
	}
}

// onStatus may run on the goroutine calling Open or Close, so it never
// waits.
func (r *run) onStatus(st transport.Status, err error) {
	select {
	case r.statuses <- statusEvent{status: st, err: err}:
	default:
	}
}

func (s *Session) loop(r *run) {
	defer close(r.done)
	defer s.release(r)

	for {
		select {
		case <-r.ctx.Done():
			return
		case b := <-r.blocks:
			s.processBlock(r, b)
		case data := <-r.inbound:
			s.handleMessage(r, data)
		case ev := <-r.statuses:
			s.handleStatus(r, ev)
		case name := <-r.instruments:
			r.instrument = name
			if r.channel.Status() == transport.StatusConnected {
				s.announce(r)
			}
		}
	}
}

// processBlock resamples one block, accumulates it, and sends every
// complete frame.
func (s *Session) processBlock(r *run, b audio.Block) {
	start := time.Now()
	r.acc.Append(r.resampler.Resample(b))
	for _, frame := range r.acc.Drain() {
		if r.channel.Send(audio.EncodeFrame(frame)) == transport.Sent {
			s.framesSent.Add(1)
		} else {
			s.framesDropped.Add(1)
		}
	}
	s.metrics.BlockProcessing.Record(r.ctx, time.Since(start).Seconds())
}

func (s *Session) handleMessage(r *run, data []byte) {
	res, err := tuner.Decode(data)
	switch {
	case errors.Is(err, tuner.ErrAck):
		observe.Logger(r.ctx).Debug("session: service acknowledged control message")
		return
	case err != nil:
		s.discarded.Add(1)
		s.metrics.ResultsDiscarded.Add(r.ctx, 1)
		observe.Logger(r.ctx).Debug("session: discarding inbound message", "err", err, "bytes", len(data))
		return
	}
	s.results.Add(1)
	s.metrics.ResultsReceived.Add(r.ctx, 1)
	d := tuner.Render(res)
	s.last.Store(&d)
	s.renderer.Result(d)
}

func (s *Session) handleStatus(r *run, ev statusEvent) {
	if line := ui.StatusLine(ev.status, ev.err); line != "" {
		s.renderer.Status(line)
	}
	if ev.status == transport.StatusConnected {
		s.announce(r)
	}
}

// announce tells the service which tuning table to match against.
func (s *Session) announce(r *run) {
	if r.instrument == "" {
		return
	}
	res := r.channel.SendControl(map[string]string{"instrument": r.instrument})
	observe.Logger(r.ctx).Info("session: instrument selected", "instrument", r.instrument, "result", res.String())
}

// release closes the source and the channel once the loop has ended.
func (s *Session) release(r *run) {
	log := observe.Logger(r.ctx)
	if err := s.source.Close(); err != nil {
		log.Warn("session: closing capture source", "err", err)
	}
	if err := r.channel.Close(); err != nil {
		log.Warn("session: closing transport", "err", err)
	}
	// A trailing partial frame is never sent.
	if n := r.acc.Len(); n > 0 {
		log.Debug("session: discarding partial frame", "samples", n)
		r.acc.Reset()
	}

	// The channel reports its final status synchronously from Close.
drain:
	for {
		select {
		case ev := <-r.statuses:
			if line := ui.StatusLine(ev.status, ev.err); line != "" {
				s.renderer.Status(line)
			}
		default:
			break drain
		}
	}

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
	s.metrics.ActiveSessions.Add(context.WithoutCancel(r.ctx), -1)

	st := s.Stats()
	log.Info("session: stopped",
		"blocks_captured", st.BlocksCaptured,
		"captured_audio", st.CapturedAudio,
		"blocks_dropped", st.BlocksDropped,
		"frames_sent", st.FramesSent,
		"frames_dropped", st.FramesDropped,
		"results", st.Results,
		"discarded", st.Discarded,
	)
}
