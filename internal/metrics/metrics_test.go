package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNoopRecorder(t *testing.T) {
	var m Recorder = Noop{}
	m.ObserveSession("check", "ready", time.Second)
	m.ObserveStage("extract", time.Millisecond)
	m.AddDiagnostics("UnexpectedEntry", "warning", 2)
	m.IncFault("PathTraversal")
	m.AddBytes("in", 10)
	m.ObserveRequest("POST", "/uploads/check", "303", time.Millisecond)
}

func TestPromRecorder(t *testing.T) {
	p := NewProm()
	p.ObserveSession("check", "rejected", 20*time.Millisecond)
	p.ObserveSession("check", "rejected", 30*time.Millisecond)
	p.AddDiagnostics("MissingRequiredEntry", "error", 3)
	p.AddDiagnostics("UnexpectedEntry", "warning", 0)
	p.IncFault("ArchiveTooLarge")
	p.AddBytes("out", 512)

	if got := testutil.ToFloat64(p.sessions.WithLabelValues("check", "rejected")); got != 2 {
		t.Fatalf("sessions_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(p.diagnostics.WithLabelValues("MissingRequiredEntry", "error")); got != 3 {
		t.Fatalf("diagnostics_total = %v, want 3", got)
	}
	if got := testutil.ToFloat64(p.faults.WithLabelValues("ArchiveTooLarge")); got != 1 {
		t.Fatalf("faults_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(p.bytes.WithLabelValues("out")); got != 512 {
		t.Fatalf("archive_bytes_total = %v, want 512", got)
	}
}

func TestPromHandlerServesRegistry(t *testing.T) {
	p := NewProm()
	p.ObserveRequest("GET", "/healthz", "200", time.Millisecond)

	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `templatefiller_http_requests_total{method="GET",route="/healthz",status="200"} 1`) {
		t.Fatalf("expected request counter in output:\n%s", body)
	}
}
