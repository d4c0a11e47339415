package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	before := testutil.ToFloat64(queries.WithLabelValues("mex", "metadata", "true"))
	RecordQuery("mex", "metadata", true, 12*time.Millisecond)
	RecordDecrypt(false, 2*time.Millisecond)

	after := testutil.ToFloat64(queries.WithLabelValues("mex", "metadata", "true"))
	if after != before+1 {
		t.Fatalf("expected query counter to advance by 1, got %v -> %v", before, after)
	}
	if testutil.ToFloat64(decryptions.WithLabelValues("false")) < 1 {
		t.Fatalf("expected failed decryption to be counted")
	}
}
