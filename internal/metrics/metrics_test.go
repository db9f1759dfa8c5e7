package metrics

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cmssync/internal/cache"
	"cmssync/internal/jobs"
	"cmssync/internal/presence"
	"cmssync/internal/service"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg, Sources{})
	require.NoError(t, err)

	m.SyncOperation("update", "ok")
	m.SyncOperation("update", "ok")
	m.SyncOperation("optimistic", "conflict")
	m.JobFailed(jobs.Job{Type: "cache-warm"})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.syncOps.WithLabelValues("update", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.syncOps.WithLabelValues("optimistic", "conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobFailures.WithLabelValues("cache-warm")))
}

func TestMetrics_StateFromSources(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg, Sources{
		Cache: func() cache.Stats {
			return cache.Stats{Mode: "tiered", Hits: 7, Misses: 3, SharedAvailable: true}
		},
		Jobs: func() jobs.Stats {
			return jobs.Stats{Queued: 2, Active: 1, Submitted: 10}
		},
		Presence: func(context.Context) (presence.Snapshot, error) {
			return presence.Snapshot{Connections: 4, Rooms: 2, Dropped: 1}, nil
		},
		Sync: func() service.SyncStats {
			return service.SyncStats{Pending: 1, Committed: 5}
		},
	})
	require.NoError(t, err)

	expected := `
# HELP cmssync_cache_shared_available Whether the shared cache tier is reachable.
# TYPE cmssync_cache_shared_available gauge
cmssync_cache_shared_available 1
# HELP cmssync_ws_connections Open websocket connections.
# TYPE cmssync_ws_connections gauge
cmssync_ws_connections 4
# HELP cmssync_jobs_submitted_total Jobs accepted by the processor.
# TYPE cmssync_jobs_submitted_total counter
cmssync_jobs_submitted_total 10
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"cmssync_cache_shared_available", "cmssync_ws_connections", "cmssync_jobs_submitted_total"))

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			name := f.GetName()
			for _, l := range metric.GetLabel() {
				name += "/" + l.GetValue()
			}
			switch {
			case metric.GetGauge() != nil:
				values[name] = metric.GetGauge().GetValue()
			case metric.GetCounter() != nil:
				values[name] = metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 7.0, values["cmssync_cache_operations_total/hit"])
	assert.Equal(t, 2.0, values["cmssync_jobs/queued"])
	assert.Equal(t, 5.0, values["cmssync_optimistic_updates/committed"])
	assert.Equal(t, 2.0, values["cmssync_ws_rooms"])
}

func TestMetrics_PresenceErrorSkipsGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg, Sources{
		Presence: func(context.Context) (presence.Snapshot, error) {
			return presence.Snapshot{}, errors.New("hub closed")
		},
	})
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(reg, "cmssync_ws_connections")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg, Sources{})
	require.NoError(t, err)

	_, err = New(reg, Sources{})
	assert.Error(t, err)
}
