package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordMaterialization(t *testing.T) {
	before := testutil.ToFloat64(materializedInstances.WithLabelValues("conflict"))
	RecordMaterialization("conflict", 2)
	RecordMaterialization("conflict", 0)
	after := testutil.ToFloat64(materializedInstances.WithLabelValues("conflict"))
	if after-before != 2 {
		t.Errorf("conflict counter delta = %v, want 2", after-before)
	}
}

func TestRecordHTTPRequest_StatusClass(t *testing.T) {
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/health", "2xx"))
	RecordHTTPRequest("GET", "/health", 204, 0.01)
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/health", "2xx"))
	if after-before != 1 {
		t.Errorf("2xx counter delta = %v, want 1", after-before)
	}
}
