package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveBulkTarget(t *testing.T) {
	ObserveBulkTarget("sync", true)
	ObserveBulkTarget("sync", true)
	ObserveBulkTarget("sync", false)

	assert.Equal(t, 2.0, testutil.ToFloat64(BulkTargets.WithLabelValues("sync", ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(BulkTargets.WithLabelValues("sync", ResultFailed)))
}

func TestObserveRefreshFailure(t *testing.T) {
	ObserveRefreshFailure("visible")
	assert.Equal(t, 1.0, testutil.ToFloat64(RefreshFailures.WithLabelValues("visible")))
}

func TestObserveBulkDuration(t *testing.T) {
	ObserveBulkDuration("restart", 1500*time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(BulkDuration, "argo_appsets_bulk_duration_seconds"))
}

func TestServeDisabled(t *testing.T) {
	assert.NoError(t, Serve(context.Background(), "", nil))
}
