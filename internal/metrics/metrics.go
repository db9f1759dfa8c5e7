// Package metrics exposes sync, cache, job and presence state to Prometheus.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"cmssync/internal/cache"
	"cmssync/internal/jobs"
	"cmssync/internal/presence"
	"cmssync/internal/service"
)

const namespace = "cmssync"

// Sources are read on every scrape. Nil sources are skipped.
type Sources struct {
	Cache    func() cache.Stats
	Jobs     func() jobs.Stats
	Presence func(ctx context.Context) (presence.Snapshot, error)
	Sync     func() service.SyncStats
}

// Metrics holds the event counters and the scrape-time collector.
type Metrics struct {
	syncOps     *prometheus.CounterVec
	jobFailures *prometheus.CounterVec
	state       *stateCollector
}

// New registers every collector on reg.
func New(reg prometheus.Registerer, src Sources) (*Metrics, error) {
	m := &Metrics{
		syncOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_operations_total",
				Help:      "Sync coordinator operations by outcome.",
			},
			[]string{"op", "outcome"},
		),
		jobFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_failures_total",
				Help:      "Jobs that failed after their last attempt.",
			},
			[]string{"type"},
		),
		state: newStateCollector(src),
	}

	for _, c := range []prometheus.Collector{m.syncOps, m.jobFailures, m.state} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// SyncOperation counts one coordinator call.
func (m *Metrics) SyncOperation(op, outcome string) {
	m.syncOps.WithLabelValues(op, outcome).Inc()
}

// JobFailed is meant for jobs.Hooks.OnFailed.
func (m *Metrics) JobFailed(j jobs.Job) {
	m.jobFailures.WithLabelValues(j.Type).Inc()
}

var _ service.Recorder = (*Metrics)(nil)

type stateCollector struct {
	src Sources

	cacheOps       *prometheus.Desc
	cacheShared    *prometheus.Desc
	jobsByState    *prometheus.Desc
	jobsSubmitted  *prometheus.Desc
	jobsRetried    *prometheus.Desc
	connections    *prometheus.Desc
	rooms          *prometheus.Desc
	dropped        *prometheus.Desc
	pendingUpdates *prometheus.Desc
}

func newStateCollector(src Sources) *stateCollector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &stateCollector{
		src:            src,
		cacheOps:       desc("cache_operations_total", "Cache operations by kind.", "kind"),
		cacheShared:    desc("cache_shared_available", "Whether the shared cache tier is reachable."),
		jobsByState:    desc("jobs", "Jobs currently tracked by state.", "state"),
		jobsSubmitted:  desc("jobs_submitted_total", "Jobs accepted by the processor."),
		jobsRetried:    desc("jobs_retried_total", "Job attempts scheduled for retry."),
		connections:    desc("ws_connections", "Open websocket connections."),
		rooms:          desc("ws_rooms", "Documents with at least one subscriber."),
		dropped:        desc("ws_dropped_total", "Connections dropped for falling behind."),
		pendingUpdates: desc("optimistic_updates", "Tracked optimistic updates by status.", "status"),
	}
}

func (s *stateCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		s.cacheOps, s.cacheShared, s.jobsByState, s.jobsSubmitted, s.jobsRetried,
		s.connections, s.rooms, s.dropped, s.pendingUpdates,
	} {
		ch <- d
	}
}

func (s *stateCollector) Collect(ch chan<- prometheus.Metric) {
	if s.src.Cache != nil {
		st := s.src.Cache()
		for kind, v := range map[string]uint64{
			"hit": st.Hits, "miss": st.Misses, "set": st.Sets, "delete": st.Deletes, "error": st.Errors,
		} {
			ch <- prometheus.MustNewConstMetric(s.cacheOps, prometheus.CounterValue, float64(v), kind)
		}
		ch <- prometheus.MustNewConstMetric(s.cacheShared, prometheus.GaugeValue, boolValue(st.SharedAvailable))
	}

	if s.src.Jobs != nil {
		st := s.src.Jobs()
		for state, v := range map[string]int{
			"queued": st.Queued, "waiting": st.Waiting, "active": st.Active,
			"completed": st.Completed, "failed": st.Failed, "cancelled": st.Cancelled,
		} {
			ch <- prometheus.MustNewConstMetric(s.jobsByState, prometheus.GaugeValue, float64(v), state)
		}
		ch <- prometheus.MustNewConstMetric(s.jobsSubmitted, prometheus.CounterValue, float64(st.Submitted))
		ch <- prometheus.MustNewConstMetric(s.jobsRetried, prometheus.CounterValue, float64(st.Retried))
	}

	if s.src.Presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		snap, err := s.src.Presence(ctx)
		cancel()
		if err == nil {
			ch <- prometheus.MustNewConstMetric(s.connections, prometheus.GaugeValue, float64(snap.Connections))
			ch <- prometheus.MustNewConstMetric(s.rooms, prometheus.GaugeValue, float64(snap.Rooms))
			ch <- prometheus.MustNewConstMetric(s.dropped, prometheus.CounterValue, float64(snap.Dropped))
		}
	}

	if s.src.Sync != nil {
		st := s.src.Sync()
		for status, v := range map[string]int{
			"pending": st.Pending, "committed": st.Committed, "rolled_back": st.RolledBack,
		} {
			ch <- prometheus.MustNewConstMetric(s.pendingUpdates, prometheus.GaugeValue, float64(v), status)
		}
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
