package observe

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// installTracer makes an in-memory tracer the global provider for the
// duration of the test.
func installTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return exp
}

func TestLogger_BareContext(t *testing.T) {
	logs := captureLogs(t, slog.LevelInfo)
	ctx := context.Background()

	if id := SessionID(ctx); id != "" {
		t.Errorf("SessionID = %q, want empty", id)
	}
	if cid := CorrelationID(ctx); cid != "" {
		t.Errorf("CorrelationID = %q, want empty", cid)
	}
	Logger(ctx).Info("pitchstream starting")
	for _, key := range []string{"session_id", "trace_id", "span_id"} {
		if strings.Contains(logs.String(), key) {
			t.Errorf("bare context logged %s: %s", key, logs)
		}
	}
}

// A session start span carries the session ID into every log line written
// under it, and the logged trace ID is the correlation ID.
func TestLogger_SessionStartSpan(t *testing.T) {
	exp := installTracer(t)
	logs := captureLogs(t, slog.LevelDebug)

	ctx := WithSessionID(context.Background(), "0190c6b8-aaaa")
	ctx, span := StartSpan(ctx, "session.start")
	Logger(ctx).Info("session: capture started", "sample_rate", 16000)
	span.End()

	cid := CorrelationID(ctx)
	if len(cid) != 32 {
		t.Fatalf("correlation ID %q is not a trace ID", cid)
	}
	out := logs.String()
	for _, want := range []string{"session_id=0190c6b8-aaaa", "trace_id=" + cid, "span_id=", "sample_rate=16000"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line missing %q: %s", want, out)
		}
	}
	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "session.start" {
		t.Errorf("recorded spans = %v", spans)
	}
}

// The dial span is a child of the session start span, so both share one
// correlation ID. Separate sessions do not.
func TestCorrelationID_SharedWithinSession(t *testing.T) {
	exp := installTracer(t)

	start := func() (context.Context, func()) {
		ctx, span := StartSpan(context.Background(), "session.start")
		return ctx, func() { span.End() }
	}

	ctx, end := start()
	dialCtx, dial := StartSpan(ctx, "transport.dial")
	if CorrelationID(dialCtx) != CorrelationID(ctx) {
		t.Errorf("dial correlation %q != session %q", CorrelationID(dialCtx), CorrelationID(ctx))
	}
	dial.End()
	end()

	other, endOther := start()
	endOther()
	if CorrelationID(other) == CorrelationID(ctx) {
		t.Error("two sessions share a correlation ID")
	}

	spans := exp.GetSpans()
	if len(spans) != 3 {
		t.Fatalf("got %d spans, want 3", len(spans))
	}
	if spans[0].Name != "transport.dial" || spans[0].Parent.SpanID() != spans[1].SpanContext.SpanID() {
		t.Errorf("transport.dial is not a child of session.start")
	}
}
