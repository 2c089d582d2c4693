package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/leadgenhq/leadgen-engine/internal/broadcast"
	"github.com/leadgenhq/leadgen-engine/internal/leads"
)

func TestPrometheusSinkCountsLifecycle(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()
	p := leads.Project{ProjectID: "p1", VendorID: "v1"}

	require.NoError(t, sink.Deliver(ctx, broadcast.StatusChange(p, leads.StatusRunning, now)))
	require.NoError(t, sink.Deliver(ctx, broadcast.PartialResults(p, make([]leads.Lead, 3), now)))
	require.NoError(t, sink.Deliver(ctx, broadcast.PartialResults(p, make([]leads.Lead, 1), now)))
	require.NoError(t, sink.Deliver(ctx, broadcast.StatusChange(p, leads.StatusFinished, now)))

	require.Equal(t, float64(1), testutil.ToFloat64(sink.projectsStarted))
	require.Equal(t, float64(0), testutil.ToFloat64(sink.projectsRunning))
	require.Equal(t, float64(2), testutil.ToFloat64(sink.batchesTotal))
	require.Equal(t, float64(4), testutil.ToFloat64(sink.leadsTotal))
	require.Equal(t, float64(1), testutil.ToFloat64(sink.projectsCompleted.WithLabelValues("Finished")))
}

func TestPrometheusSinkCountsErrors(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()
	p := leads.Project{ProjectID: "p2"}

	require.NoError(t, sink.Deliver(ctx, broadcast.ScrapingError(p, "insert failed", now)))
	require.NoError(t, sink.Deliver(ctx, broadcast.StatusChange(p, leads.StatusFailed, now)))

	require.Equal(t, float64(1), testutil.ToFloat64(sink.scrapingErrors))
	require.Equal(t, float64(1), testutil.ToFloat64(sink.projectsCompleted.WithLabelValues("Failed")))
}

// Cancelling a project that never ran, or cancelling twice, must not push
// the running gauge below zero.
func TestPrometheusSinkGaugeNeverNegative(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()
	queued := leads.Project{ProjectID: "queued-only"}
	ran := leads.Project{ProjectID: "ran"}

	require.NoError(t, sink.Deliver(ctx, broadcast.StatusChange(queued, leads.StatusCancelled, now)))
	require.Equal(t, float64(0), testutil.ToFloat64(sink.projectsRunning))

	require.NoError(t, sink.Deliver(ctx, broadcast.StatusChange(ran, leads.StatusRunning, now)))
	require.Equal(t, float64(1), testutil.ToFloat64(sink.projectsRunning))

	require.NoError(t, sink.Deliver(ctx, broadcast.StatusChange(ran, leads.StatusCancelled, now)))
	require.NoError(t, sink.Deliver(ctx, broadcast.StatusChange(ran, leads.StatusCancelled, now)))
	require.Equal(t, float64(0), testutil.ToFloat64(sink.projectsRunning))

	require.Equal(t, float64(3), testutil.ToFloat64(sink.projectsCompleted.WithLabelValues("Cancelled")))
}

func TestNewPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
