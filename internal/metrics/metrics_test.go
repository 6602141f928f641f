package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func resetForTest() {
	mu.Lock()
	global = nil
	mu.Unlock()
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	if m.Counter == nil {
		t.Fatal("expected counter metric to have Counter field")
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("gauge Write() error: %v", err)
	}
	if m.Gauge == nil {
		t.Fatal("expected gauge metric to have Gauge field")
	}
	return m.GetGauge().GetValue()
}

func histogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := o.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T does not implement prometheus.Metric", o)
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	if m.Histogram == nil {
		t.Fatal("expected histogram metric to have Histogram field")
	}
	return m.GetHistogram().GetSampleCount()
}

func TestRecordFunctionsAreNoOpsBeforeEnable(t *testing.T) {
	resetForTest()

	// None of these may panic with metrics disabled.
	RecordSessionStart("telnet")
	RecordSessionEnd("completed", 1.5)
	RecordSessionRefused()
	RecordFrame()
	RecordBytes(100)
	RecordNegotiation("complete")
	RecordAcceptError()
}

func TestEnableRegistersOnce(t *testing.T) {
	resetForTest()

	Enable(WithRegistry(prometheus.NewRegistry()))
	first := global
	if first == nil {
		t.Fatal("Enable did not register collectors")
	}

	// A second Enable must not re-register; that would panic on a
	// shared registry.
	Enable(WithRegistry(prometheus.NewRegistry()))
	if global != first {
		t.Error("second Enable replaced the collectors")
	}
}

func TestRecordFunctions(t *testing.T) {
	resetForTest()
	Enable(WithRegistry(prometheus.NewRegistry()))

	RecordSessionStart("telnet")
	RecordSessionStart("telnet")
	RecordSessionStart("websocket")
	RecordSessionEnd("completed", 42.0)
	RecordSessionRefused()
	RecordFrame()
	RecordFrame()
	RecordFrame()
	RecordBytes(100)
	RecordBytes(50)
	RecordNegotiation("complete")
	RecordNegotiation("partial")
	RecordAcceptError()

	c := global
	if got := counterValue(t, c.sessionsTotal.WithLabelValues("telnet")); got != 2 {
		t.Errorf("sessions_total(telnet) = %v, want 2", got)
	}
	if got := counterValue(t, c.sessionsTotal.WithLabelValues("websocket")); got != 1 {
		t.Errorf("sessions_total(websocket) = %v, want 1", got)
	}
	if got := counterValue(t, c.sessionsClosed.WithLabelValues("completed")); got != 1 {
		t.Errorf("sessions_closed_total(completed) = %v, want 1", got)
	}
	if got := gaugeValue(t, c.activeSessions); got != 2 {
		t.Errorf("active_sessions = %v, want 2 (three starts, one end)", got)
	}
	if got := counterValue(t, c.sessionsRefused); got != 1 {
		t.Errorf("sessions_refused_total = %v, want 1", got)
	}
	if got := counterValue(t, c.framesSent); got != 3 {
		t.Errorf("frames_sent_total = %v, want 3", got)
	}
	if got := counterValue(t, c.bytesSent); got != 150 {
		t.Errorf("bytes_sent_total = %v, want 150", got)
	}
	if got := counterValue(t, c.negotiations.WithLabelValues("complete")); got != 1 {
		t.Errorf("negotiations_total(complete) = %v, want 1", got)
	}
	if got := counterValue(t, c.negotiations.WithLabelValues("partial")); got != 1 {
		t.Errorf("negotiations_total(partial) = %v, want 1", got)
	}
	if got := histogramCount(t, c.sessionSeconds); got != 1 {
		t.Errorf("session_duration_seconds samples = %v, want 1", got)
	}
	if got := counterValue(t, c.acceptErrors); got != 1 {
		t.Errorf("accept_errors_total = %v, want 1", got)
	}
}
