// Package observe provides application-wide observability primitives for
// pitchstream: OpenTelemetry metrics, tracing, structured logging helpers,
// and HTTP middleware for the diagnostics server.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is installed by [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all pitchstream metrics.
const meterName = "github.com/MrWong99/pitchstream"

// Drop reasons recorded on [Metrics.FramesDropped] and [Metrics.BlocksDropped].
const (
	ReasonNotConnected = "not_connected"
	ReasonQueueFull    = "queue_full"
	ReasonWriteError   = "write_error"
	ReasonLoopBusy     = "loop_busy"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Capture ---

	// BlocksCaptured counts audio blocks delivered by the capture source.
	BlocksCaptured metric.Int64Counter

	// BlocksDropped counts captured blocks discarded before processing
	// because the event loop was behind. Use with attribute:
	//   attribute.String("reason", ...)
	BlocksDropped metric.Int64Counter

	// BlockProcessing tracks the time spent resampling, accumulating and
	// handing frames to the transport for one block.
	BlockProcessing metric.Float64Histogram

	// --- Transport ---

	// FramesSent counts frames accepted by the transport.
	FramesSent metric.Int64Counter

	// FramesDropped counts frames discarded by the transport. Use with
	// attribute:
	//   attribute.String("reason", ...)
	FramesDropped metric.Int64Counter

	// BytesSent counts outbound payload bytes.
	BytesSent metric.Int64Counter

	// --- Results ---

	// ResultsReceived counts decoded inbound result messages.
	ResultsReceived metric.Int64Counter

	// ResultsDiscarded counts inbound messages that could not be decoded.
	ResultsDiscarded metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of running capture sessions.
	ActiveSessions metric.Int64UpDownCounter

	// ConnectedChannels tracks the number of open transport channels.
	ConnectedChannels metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// processingBuckets defines histogram bucket boundaries (in seconds) for the
// per-block hot path. A 2048-sample block at 48 kHz is ~43 ms of audio, so
// anything above a few milliseconds is worth seeing.
var processingBuckets = []float64{
	0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Capture.
	if met.BlocksCaptured, err = m.Int64Counter("pitchstream.capture.blocks",
		metric.WithDescription("Total audio blocks delivered by the capture source."),
	); err != nil {
		return nil, err
	}
	if met.BlocksDropped, err = m.Int64Counter("pitchstream.capture.blocks_dropped",
		metric.WithDescription("Total captured blocks discarded before processing, by reason."),
	); err != nil {
		return nil, err
	}
	if met.BlockProcessing, err = m.Float64Histogram("pitchstream.capture.block_processing.duration",
		metric.WithDescription("Time spent pushing one block through resample, accumulate and send."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(processingBuckets...),
	); err != nil {
		return nil, err
	}

	// Transport.
	if met.FramesSent, err = m.Int64Counter("pitchstream.transport.frames_sent",
		metric.WithDescription("Total frames accepted for transmission."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("pitchstream.transport.frames_dropped",
		metric.WithDescription("Total frames dropped by the transport, by reason."),
	); err != nil {
		return nil, err
	}
	if met.BytesSent, err = m.Int64Counter("pitchstream.transport.bytes_sent",
		metric.WithDescription("Total outbound payload bytes."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}

	// Results.
	if met.ResultsReceived, err = m.Int64Counter("pitchstream.results.received",
		metric.WithDescription("Total pitch results decoded from the service."),
	); err != nil {
		return nil, err
	}
	if met.ResultsDiscarded, err = m.Int64Counter("pitchstream.results.discarded",
		metric.WithDescription("Total inbound messages discarded as malformed."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("pitchstream.active_sessions",
		metric.WithDescription("Number of running capture sessions."),
	); err != nil {
		return nil, err
	}
	if met.ConnectedChannels, err = m.Int64UpDownCounter("pitchstream.connected_channels",
		metric.WithDescription("Number of open transport channels."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("pitchstream.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordFrameSent records one accepted frame of n bytes.
func (m *Metrics) RecordFrameSent(ctx context.Context, n int) {
	m.FramesSent.Add(ctx, 1)
	m.BytesSent.Add(ctx, int64(n))
}

// RecordFrameDropped records one dropped frame with the given reason.
func (m *Metrics) RecordFrameDropped(ctx context.Context, reason string) {
	m.FramesDropped.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordBlockDropped records one discarded capture block with the given reason.
func (m *Metrics) RecordBlockDropped(ctx context.Context, reason string) {
	m.BlocksDropped.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}
