package transport

import (
	"testing"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/pitchstream/internal/observe"
)

func TestEnqueue_FullQueueDropsWithoutBlocking(t *testing.T) {
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	c := New("ws://unused", WithSendBuffer(2), WithMetrics(m))
	// Pretend the handshake finished but no writer drains the queue.
	c.status = StatusConnected

	want := []SendResult{Sent, Sent, Dropped, Dropped}
	for i, w := range want {
		if got := c.Send(make([]byte, 3200)); got != w {
			t.Errorf("send %d = %s, want %s", i, got, w)
		}
	}
	if got := len(c.queue); got != 2 {
		t.Errorf("queued = %d, want 2", got)
	}
}

func TestSendControl_UnencodableDrops(t *testing.T) {
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	c := New("ws://unused", WithMetrics(m))
	c.status = StatusConnected

	if got := c.SendControl(map[string]any{"bad": make(chan int)}); got != Dropped {
		t.Errorf("SendControl = %s, want dropped", got)
	}
	if got := len(c.queue); got != 0 {
		t.Errorf("queued = %d, want 0", got)
	}
}
