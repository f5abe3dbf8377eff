// Package metrics provides the centralized Prometheus registry and the
// optional HTTP endpoint for the exporter. All metrics are defined in
// their respective packages (client, walker) to maintain modularity and
// avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the exporter.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the HTTP handler serving the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// NewServer builds an HTTP server exposing /metrics on addr. The caller
// owns the server lifecycle; a long export is the usual reason to run it.
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - eaeu_odata_requests_total{status} (Counter): Total requests by HTTP status
//   - eaeu_odata_request_duration_seconds (Histogram): Request duration
//   - eaeu_odata_errors_total{class} (Counter): Errors by class (client, server, rate_limit, gateway_timeout, network)
//
// Network Retry Metrics (pkg/client):
//   - eaeu_odata_network_retries_total (Counter): Connect-level retry attempts
//   - eaeu_odata_network_retry_backoff_seconds (Histogram): Backoff duration
//   - eaeu_odata_network_retry_exhausted_total (Counter): Requests that exhausted retries
//
// Walk Metrics (pkg/walker):
//   - eaeu_export_pages_total{country} (Counter): Pages fetched
//   - eaeu_export_rows_written_total{country} (Counter): Rows written
//   - eaeu_export_filter_fallbacks_total (Counter): Server-to-client filter downgrades
//   - eaeu_export_walk_aborts_total{reason} (Counter): Fatal walk aborts
//
// Example Prometheus Queries:
//
//   # Export throughput per country
//   rate(eaeu_export_rows_written_total[5m])
//
//   # Upstream error rate
//   rate(eaeu_odata_errors_total[5m])
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(eaeu_odata_request_duration_seconds_bucket[5m]))
