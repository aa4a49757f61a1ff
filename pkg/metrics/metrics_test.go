package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	_ "github.com/Sternrassler/xrpl-client/pkg/client"
	"github.com/Sternrassler/xrpl-client/pkg/metrics"
)

func TestRegistry(t *testing.T) {
	if metrics.Registry == nil {
		t.Error("Registry should not be nil")
	}

	if metrics.Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
}

func TestHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	// Unlabelled metrics are exported from registration on.
	for _, name := range []string{
		"xrpl_ledger_version_rejections_total",
		"xrpl_validated_ledger_version",
		"xrpl_transport_dial_retries_total",
		"xrpl_transport_dial_exhausted_total",
		"xrpl_cache_misses_total",
		"xrpl_load_level",
		"xrpl_rate_limit_blocks_total",
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}
