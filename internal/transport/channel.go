// Package transport carries encoded audio frames to the pitch service over a
// single WebSocket and hands inbound messages back to the caller.
//
// Sends are best effort. [Channel.Send] never blocks and never fails loudly:
// a frame that cannot be handed to the writer right away is dropped and
// reported as [Dropped]. A channel is opened once; after it disconnects it
// stays disconnected.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/pitchstream/internal/observe"
)

// Status is the lifecycle state of a [Channel].
type Status int

const (
	StatusNotStarted Status = iota
	StatusConnecting
	StatusConnected
	StatusDisconnected
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "not_started"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// SendResult reports what happened to one outbound message.
type SendResult int

const (
	// Dropped means the message was discarded.
	Dropped SendResult = iota

	// Sent means the message was queued for the writer.
	Sent
)

// String returns "sent" or "dropped".
func (r SendResult) String() string {
	if r == Sent {
		return "sent"
	}
	return "dropped"
}

// ErrReused is returned by [Channel.Open] on a channel that was already
// opened or closed.
var ErrReused = errors.New("transport: channel cannot be reopened")

const (
	defaultSendBuffer  = 4
	defaultDialTimeout = 10 * time.Second
	writeTimeout       = 5 * time.Second
	readLimit          = 64 << 10
)

// Option configures a [Channel].
type Option func(*Channel)

// WithSendBuffer sets how many messages may wait for the writer before Send
// starts dropping. Default: 4.
func WithSendBuffer(n int) Option {
	return func(c *Channel) {
		if n > 0 {
			c.sendBuffer = n
		}
	}
}

// WithDialTimeout bounds the WebSocket handshake. Default: 10s.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Channel) {
		if d > 0 {
			c.dialTimeout = d
		}
	}
}

// WithOrigin sets the Origin header sent with the handshake.
func WithOrigin(origin string) Option {
	return func(c *Channel) { c.origin = origin }
}

// WithOnMessage registers the callback for inbound messages. It runs on the
// reader goroutine and must not block for long.
func WithOnMessage(fn func(data []byte)) Option {
	return func(c *Channel) { c.onMessage = fn }
}

// WithOnStatus registers the callback for status transitions. err is non-nil
// when the channel disconnected because of a failure.
func WithOnStatus(fn func(s Status, err error)) Option {
	return func(c *Channel) { c.onStatus = fn }
}

// WithMetrics overrides the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Channel) { c.metrics = m }
}

type outbound struct {
	typ   websocket.MessageType
	data  []byte
	frame bool
}

// Channel is one persistent WebSocket connection to the pitch service.
// All methods are safe for concurrent use.
type Channel struct {
	url         string
	origin      string
	sendBuffer  int
	dialTimeout time.Duration
	onMessage   func([]byte)
	onStatus    func(Status, error)
	metrics     *observe.Metrics

	mu     sync.Mutex
	status Status
	conn   *websocket.Conn
	queue  chan outbound
	cancel context.CancelFunc

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a channel for the WebSocket URL. Nothing is dialled until
// [Channel.Open].
func New(url string, opts ...Option) *Channel {
	c := &Channel{
		url:         url,
		sendBuffer:  defaultSendBuffer,
		dialTimeout: defaultDialTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	c.queue = make(chan outbound, c.sendBuffer)
	return c
}

// URL returns the endpoint this channel dials.
func (c *Channel) URL() string { return c.url }

// Status returns the current lifecycle state.
func (c *Channel) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Open moves the channel to Connecting and dials in the background. It
// returns immediately. The channel lives until ctx is cancelled or
// [Channel.Close] is called.
func (c *Channel) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.status != StatusNotStarted {
		c.mu.Unlock()
		return ErrReused
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.status = StatusConnecting
	c.mu.Unlock()

	c.notify(StatusConnecting, nil)

	c.wg.Add(1)
	go c.dial(ctx)
	return nil
}

func (c *Channel) dial(ctx context.Context) {
	defer c.wg.Done()

	ctx, span := observe.StartSpan(ctx, "transport.dial",
		trace.WithAttributes(attribute.String("url", c.url)),
	)
	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	var hdr http.Header
	if c.origin != "" {
		hdr = http.Header{"Origin": []string{c.origin}}
	}
	conn, _, err := websocket.Dial(dialCtx, c.url, &websocket.DialOptions{HTTPHeader: hdr})
	cancel()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		span.End()
		c.fail(fmt.Errorf("transport: dial %s: %w", c.url, err))
		return
	}
	span.End()
	conn.SetReadLimit(readLimit)

	c.mu.Lock()
	if c.status != StatusConnecting {
		// Closed while dialling.
		c.mu.Unlock()
		conn.CloseNow()
		return
	}
	c.conn = conn
	c.status = StatusConnected
	c.mu.Unlock()

	c.metrics.ConnectedChannels.Add(ctx, 1)
	observe.Logger(ctx).Info("transport: connected", "url", c.url)
	c.notify(StatusConnected, nil)

	c.wg.Add(2)
	go c.writeLoop(ctx, conn)
	go c.readLoop(ctx, conn)
}

// Send queues one audio frame as a binary message. It returns [Dropped]
// unless the channel is connected and the writer queue has room.
func (c *Channel) Send(frame []byte) SendResult {
	return c.enqueue(outbound{typ: websocket.MessageBinary, data: frame, frame: true})
}

// SendControl queues v encoded as JSON. The service reads every message as
// bytes, so control messages travel as binary frames too.
func (c *Channel) SendControl(v any) SendResult {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Debug("transport: cannot encode control message", "err", err)
		return Dropped
	}
	return c.enqueue(outbound{typ: websocket.MessageBinary, data: data})
}

func (c *Channel) enqueue(m outbound) SendResult {
	ctx := context.Background()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != StatusConnected {
		if m.frame {
			c.metrics.RecordFrameDropped(ctx, observe.ReasonNotConnected)
		}
		return Dropped
	}
	select {
	case c.queue <- m:
		if m.frame {
			c.metrics.RecordFrameSent(ctx, len(m.data))
		}
		return Sent
	default:
		if m.frame {
			c.metrics.RecordFrameDropped(ctx, observe.ReasonQueueFull)
		}
		return Dropped
	}
}

func (c *Channel) writeLoop(ctx context.Context, conn *websocket.Conn) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-c.queue:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, m.typ, m.data)
			cancel()
			if err != nil {
				if m.frame {
					c.metrics.RecordFrameDropped(ctx, observe.ReasonWriteError)
				}
				c.fail(fmt.Errorf("transport: write: %w", err))
				return
			}
		}
	}
}

func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer c.wg.Done()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				c.fail(nil)
			} else {
				c.fail(fmt.Errorf("transport: read: %w", err))
			}
			return
		}
		if c.onMessage != nil {
			c.onMessage(data)
		}
	}
}

// fail moves the channel to Disconnected once and tears the connection down.
func (c *Channel) fail(err error) {
	c.mu.Lock()
	if c.status == StatusDisconnected {
		c.mu.Unlock()
		return
	}
	wasConnected := c.status == StatusConnected
	c.status = StatusDisconnected
	conn, cancel := c.conn, c.cancel
	c.mu.Unlock()

	if wasConnected {
		c.metrics.ConnectedChannels.Add(context.Background(), -1)
	}
	if err != nil {
		slog.Warn("transport: disconnected", "url", c.url, "err", err)
	} else {
		slog.Info("transport: disconnected", "url", c.url)
	}
	if conn != nil {
		conn.CloseNow()
	}
	if cancel != nil {
		cancel()
	}
	c.notify(StatusDisconnected, err)
}

// Close disconnects and waits for the channel's goroutines to exit. It is
// safe to call more than once and before [Channel.Open].
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		prev := c.status
		c.status = StatusDisconnected
		conn, cancel := c.conn, c.cancel
		c.mu.Unlock()

		if conn != nil {
			// The reader sees the close handshake and exits.
			_ = conn.Close(websocket.StatusNormalClosure, "client stopped")
		}
		if cancel != nil {
			cancel()
		}
		c.wg.Wait()

		if prev == StatusConnected {
			c.metrics.ConnectedChannels.Add(context.Background(), -1)
		}
		if prev != StatusDisconnected {
			c.notify(StatusDisconnected, nil)
		}
	})
	return nil
}

func (c *Channel) notify(s Status, err error) {
	if c.onStatus != nil {
		c.onStatus(s, err)
	}
}
