// Package metrics exposes the Prometheus metrics of the XRPL client.
// All metrics are defined in their respective packages (client, pagination,
// transport, cache, ratelimit) and registered via promauto on the default
// registry; this package only serves them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer the library's metrics are registered with.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer the handler serves from.
var Gatherer = prometheus.DefaultGatherer

// Handler returns an HTTP handler serving all library metrics in the
// Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Guard Metrics (pkg/client):
//   - xrpl_requests_total{command, status} (Counter): Guarded requests by command and outcome
//   - xrpl_request_duration_seconds{command} (Histogram): Guarded request duration
//   - xrpl_errors_total{class} (Counter): Errors by class (validation, ledger_version, rate_limit, connection, protocol, response, unknown)
//   - xrpl_ledger_version_rejections_total (Counter): Requests rejected before dispatch
//   - xrpl_validated_ledger_version (Gauge): Most recent validated ledger known to the client
//
// Pagination Metrics (pkg/pagination):
//   - xrpl_pagination_pages_total{command} (Counter): Pages fetched by aggregations
//   - xrpl_pagination_aggregations_total{command, outcome} (Counter): Aggregations by outcome
//
// Transport Metrics (pkg/transport):
//   - xrpl_transport_requests_total{command, status} (Counter): Wire round-trips
//   - xrpl_transport_request_duration_seconds{command} (Histogram): Wire round-trip duration
//   - xrpl_transport_dial_retries_total (Counter): Dial retry attempts
//   - xrpl_transport_dial_backoff_seconds (Histogram): Backoff between dial attempts
//   - xrpl_transport_dial_exhausted_total (Counter): Connects that exhausted all attempts
//
// Cache Metrics (pkg/cache):
//   - xrpl_cache_hits_total{layer="redis"} (Counter): Pinned-ledger cache hits
//   - xrpl_cache_misses_total (Counter): Cache misses
//   - xrpl_cache_size_bytes{layer="redis"} (Gauge): Current cache size in bytes
//   - xrpl_cache_errors_total{operation} (Counter): Cache operation errors
//
// Load Metrics (pkg/ratelimit):
//   - xrpl_load_level (Gauge): 0 healthy, 1 load warning, 2 slowDown
//   - xrpl_rate_limit_blocks_total (Counter): Requests refused while the server asks to slow down
//   - xrpl_rate_limit_throttles_total (Counter): Requests delayed after a load warning
//
// Example Prometheus Queries:
//
//   # Guard rejection rate
//   rate(xrpl_ledger_version_rejections_total[5m])
//
//   # Pages per aggregation
//   sum(rate(xrpl_pagination_pages_total[5m])) /
//   sum(rate(xrpl_pagination_aggregations_total{outcome="complete"}[5m]))
//
//   # Cache Hit Rate
//   sum(rate(xrpl_cache_hits_total[5m])) /
//   (sum(rate(xrpl_cache_hits_total[5m])) + sum(rate(xrpl_cache_misses_total[5m])))
//
//   # P95 Wire Latency
//   histogram_quantile(0.95, rate(xrpl_transport_request_duration_seconds_bucket[5m]))
