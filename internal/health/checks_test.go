package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/pitchstream/internal/session"
	"github.com/MrWong99/pitchstream/internal/transport"
)

type fakeSession struct {
	state  session.State
	status transport.Status
}

func (f fakeSession) State() session.State              { return f.state }
func (f fakeSession) TransportStatus() transport.Status { return f.status }

func TestSessionCheckers(t *testing.T) {
	tests := []struct {
		name          string
		sess          fakeSession
		wantCapture   bool
		wantTransport bool
	}{
		{"running and connected", fakeSession{session.StateRunning, transport.StatusConnected}, true, true},
		{"running but connecting", fakeSession{session.StateRunning, transport.StatusConnecting}, true, false},
		{"running after disconnect", fakeSession{session.StateRunning, transport.StatusDisconnected}, true, false},
		{"idle", fakeSession{session.StateIdle, transport.StatusNotStarted}, false, false},
		{"stopped", fakeSession{session.StateStopped, transport.StatusDisconnected}, false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			if err := CaptureChecker(tc.sess).Check(ctx); (err == nil) != tc.wantCapture {
				t.Errorf("capture err = %v, want ok=%v", err, tc.wantCapture)
			}
			if err := TransportChecker(tc.sess).Check(ctx); (err == nil) != tc.wantTransport {
				t.Errorf("transport err = %v, want ok=%v", err, tc.wantTransport)
			}
		})
	}
}

func TestReadyz_WithSessionCheckers(t *testing.T) {
	sess := fakeSession{session.StateRunning, transport.StatusDisconnected}
	h := New([]Checker{CaptureChecker(sess), TransportChecker(sess)})

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Checks["capture"] != "ok" {
		t.Errorf("capture = %q, want ok", body.Checks["capture"])
	}
	if body.Checks["transport"] != "fail: channel is disconnected" {
		t.Errorf("transport = %q", body.Checks["transport"])
	}
}

func TestHealthz_ReportsSession(t *testing.T) {
	h := New(nil, WithSessionID("0190f0c2-7f3a-7c1e-9d1b-3a2b1c0d9e8f"))

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest("GET", "/healthz", nil))

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Session != "0190f0c2-7f3a-7c1e-9d1b-3a2b1c0d9e8f" {
		t.Errorf("session = %q", body.Session)
	}
	if body.Uptime == "" {
		t.Error("uptime missing")
	}
}
