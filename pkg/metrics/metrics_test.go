package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegistry(t *testing.T) {
	if Registry == nil {
		t.Error("Registry should not be nil")
	}

	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	server := httptest.NewServer(Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestNewServer(t *testing.T) {
	srv := NewServer(":9184")
	if srv.Addr != ":9184" {
		t.Errorf("Addr = %s, want :9184", srv.Addr)
	}
	if srv.Handler == nil {
		t.Error("Handler should not be nil")
	}
}
