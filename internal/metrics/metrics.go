// Package metrics holds the Prometheus collectors exported by litesync.
// Collectors are registered with the default registry on package init.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Label values for status-partitioned collectors.
const (
	Fail = "fail"
	Ok   = "ok"
)

// Label values for SyncRowsTotal's direction label.
const (
	ToSelf  = "to_self"
	ToOther = "to_other"
)

// Collectors for engine.Engine and runner.Run.
var (
	SyncRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "litesync_sync_runs_total",
		Help: "Cumulative number of sync runs, by status.",
	}, []string{"status"})
	SyncRowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "litesync_sync_rows_total",
		Help: "Cumulative number of rows replicated by SyncWith, by direction.",
	}, []string{"direction"})
	SyncConflictsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "litesync_sync_conflicts_total",
		Help: "Cumulative number of rows that differed on both sides, by table.",
	}, []string{"table"})
	SyncDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "litesync_sync_duration_seconds",
		Help:    "Duration of SyncWith calls.",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	})
	QueryDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "litesync_query_duration_seconds",
		Help:    "Duration of statements issued through Engine.Exec and Engine.Query.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	})
	ChangeEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "litesync_change_events_total",
		Help: "Cumulative number of change events published, by operation.",
	}, []string{"operation"})
	WatchTriggersTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "litesync_watch_triggers_total",
		Help: "Cumulative number of syncs started by a watcher after a file change.",
	})
)

func init() {
	prometheus.MustRegister(
		SyncRunsTotal,
		SyncRowsTotal,
		SyncConflictsTotal,
		SyncDurationSeconds,
		QueryDurationSeconds,
		ChangeEventsTotal,
		WatchTriggersTotal,
	)
}
