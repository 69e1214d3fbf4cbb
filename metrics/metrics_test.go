package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheus_Connections(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(WithRegistry(reg), WithNamespace("test"))

	p.ConnectionOpened(Inbound)
	p.ConnectionOpened(Inbound)
	p.ConnectionOpened(Outbound)
	p.ConnectionClosed(Inbound, true)

	if got := testutil.ToFloat64(p.opened.WithLabelValues("inbound")); got != 2 {
		t.Errorf("opened inbound = %v, want 2", got)
	}
	if got := testutil.ToFloat64(p.active.WithLabelValues("inbound")); got != 1 {
		t.Errorf("active inbound = %v, want 1", got)
	}
	if got := testutil.ToFloat64(p.active.WithLabelValues("outbound")); got != 1 {
		t.Errorf("active outbound = %v, want 1", got)
	}
	if got := testutil.ToFloat64(p.closed.WithLabelValues("inbound", "true")); got != 1 {
		t.Errorf("closed with error = %v, want 1", got)
	}
}

func TestPrometheus_Traffic(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(WithRegistry(reg))

	p.BytesRead(10)
	p.BytesRead(5)
	p.BytesWritten(3)
	p.ConnectionDropped("max-connections")
	p.TransportError("read")
	p.ConnectLatency(5 * time.Millisecond)

	if got := testutil.ToFloat64(p.bytesRead); got != 15 {
		t.Errorf("bytes read = %v, want 15", got)
	}
	if got := testutil.ToFloat64(p.bytesWritten); got != 3 {
		t.Errorf("bytes written = %v, want 3", got)
	}
	if got := testutil.ToFloat64(p.dropped.WithLabelValues("max-connections")); got != 1 {
		t.Errorf("dropped = %v, want 1", got)
	}
	if got := testutil.ToFloat64(p.errors.WithLabelValues("read")); got != 1 {
		t.Errorf("errors = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(p.connectLatency); n != 1 {
		t.Errorf("latency series = %d, want 1", n)
	}
}

func TestPrometheus_Namespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(WithRegistry(reg), WithNamespace("edge"), WithSubsystem("proxy"))
	p.BytesRead(1)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "edge_proxy_bytes_read_total" {
			found = true
		}
	}
	if !found {
		t.Error("edge_proxy_bytes_read_total not registered")
	}
}

func TestOrNop(t *testing.T) {
	if _, ok := OrNop(nil).(Nop); !ok {
		t.Error("OrNop(nil) should be Nop")
	}
	p := NewPrometheus(WithRegistry(prometheus.NewRegistry()))
	if OrNop(p) != Recorder(p) {
		t.Error("OrNop should return a non-nil recorder unchanged")
	}
}
