package service

import (
	"context"
	"testing"

	"cache-telemetry-service/internal/event"
	"cache-telemetry-service/internal/eventlog"
	"cache-telemetry-service/internal/observability"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

// Prometheus globals are sticky across tests, so these check deltas.

func TestMetrics_Record(t *testing.T) {
	svc := New(eventlog.New())
	ctx := context.Background()

	ctr := observability.EventsRecordedTotal.WithLabelValues("metrics_src", "get_items")
	initial := testutil.ToFloat64(ctr)

	err := svc.Record(ctx, "metrics_src",
		event.Event{Op: event.GetItems{Hits: 1}},
		event.Event{Op: event.GetItems{Misses: 1}},
	)
	assert.NoError(t, err)

	assert.Equal(t, initial+2, testutil.ToFloat64(ctr), "EventsRecordedTotal(metrics_src, get_items) should increment by 2")
}

func TestMetrics_Collect(t *testing.T) {
	svc := New(eventlog.New())

	initial := testutil.ToFloat64(observability.CollectionsTotal)

	_, err := svc.Collect(context.Background())
	assert.NoError(t, err)

	assert.Equal(t, initial+1, testutil.ToFloat64(observability.CollectionsTotal), "CollectionsTotal should increment by 1")
}
