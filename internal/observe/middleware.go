package observe

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// SessionHeader carries the capture session ID on diagnostics responses, so
// a scrape can be matched to the client's log lines.
const SessionHeader = "X-Session-ID"

// diagnosticRoutes are the paths the diagnostics server serves. Anything
// else is reported as "other" to keep metric cardinality fixed.
var diagnosticRoutes = map[string]bool{
	"/metrics": true,
	"/healthz": true,
	"/readyz":  true,
}

// RouteLabel returns the metric label for path.
func RouteLabel(path string) string {
	if diagnosticRoutes[path] {
		return path
	}
	return "other"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Middleware instruments the diagnostics server. Each request gets a server
// span (continuing an incoming W3C traceparent), an X-Correlation-ID and
// [SessionHeader] response header, a duration sample labelled by route and
// status, and a log line. The three known routes log at debug level since
// they are polled every few seconds.
func Middleware(m *Metrics, sessionID string) func(http.Handler) http.Handler {
	prop := propagation.TraceContext{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			route := RouteLabel(r.URL.Path)

			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			if sessionID != "" {
				ctx = WithSessionID(ctx, sessionID)
				w.Header().Set(SessionHeader, sessionID)
			}
			ctx, span := StartSpan(ctx, "diagnostics "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
					attribute.String("session_id", sessionID),
				),
			)
			defer span.End()

			cid := CorrelationID(ctx)
			if cid != "" {
				w.Header().Set("X-Correlation-ID", cid)
			}
			prop.Inject(ctx, propagation.HeaderCarrier(w.Header()))

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			elapsed := time.Since(start)
			m.HTTPRequestDuration.Record(ctx, elapsed.Seconds(),
				metric.WithAttributes(
					attribute.String("method", r.Method),
					attribute.String("path", route),
					attribute.String("status", strconv.Itoa(rec.status)),
				),
			)
			span.SetAttributes(semconv.HTTPResponseStatusCode(rec.status))

			level := slog.LevelInfo
			if route != "other" {
				level = slog.LevelDebug
			}
			Logger(ctx).Log(ctx, level, "diagnostics request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", elapsed,
			)
		})
	}
}
