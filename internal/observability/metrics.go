package observability

import (
	"cache-telemetry-service/internal/stats"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsRecordedTotal counts recorded events by source and operation
	EventsRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cachestats_events_recorded_total",
		Help: "The total number of recorded cache events",
	}, []string{"source", "op"})

	// CollectionsTotal counts aggregation passes
	CollectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cachestats_collections_total",
		Help: "The total number of statistics collections",
	})

	// CollectDurationSeconds measures aggregation latency
	CollectDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cachestats_collect_duration_seconds",
		Help:    "The latency of statistics collections",
		Buckets: prometheus.DefBuckets,
	})

	// BackendErrorsTotal counts failed calls against traced cache backends
	BackendErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cachestats_backend_errors_total",
		Help: "The total number of failed traced cache calls",
	}, []string{"source", "op"})
)

var (
	callsDesc = prometheus.NewDesc("cachestats_source_calls", "Calls recorded in the last collection.", []string{"source"}, nil)
	timeDesc  = prometheus.NewDesc("cachestats_source_time_seconds", "Cumulative call time in the last collection.", []string{"source"}, nil)
	readsDesc = prometheus.NewDesc("cachestats_source_reads", "Reads in the last collection.", []string{"source"}, nil)
	hitsDesc  = prometheus.NewDesc("cachestats_source_hits", "Read hits in the last collection.", []string{"source"}, nil)
	missDesc  = prometheus.NewDesc("cachestats_source_misses", "Read misses in the last collection.", []string{"source"}, nil)
	writeDesc = prometheus.NewDesc("cachestats_source_writes", "Writes in the last collection.", []string{"source"}, nil)
	delDesc   = prometheus.NewDesc("cachestats_source_deletes", "Deletes in the last collection.", []string{"source"}, nil)
	ratioDesc = prometheus.NewDesc("cachestats_source_hit_ratio", "Hits over reads in the last collection, absent without reads.", []string{"source"}, nil)
)

// TotalLabel is the source label used for the total statistics.
const TotalLabel = "_total"

// ReportCollector exposes the most recent report as gauges.
type ReportCollector struct {
	report func() stats.Report
}

// NewReportCollector creates a collector reading the report through fn on every scrape.
func NewReportCollector(fn func() stats.Report) *ReportCollector {
	return &ReportCollector{report: fn}
}

// Describe implements prometheus.Collector.
func (c *ReportCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{callsDesc, timeDesc, readsDesc, hitsDesc, missDesc, writeDesc, delDesc, ratioDesc} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *ReportCollector) Collect(ch chan<- prometheus.Metric) {
	r := c.report()
	for _, s := range r.Sources {
		emit(ch, s.Name, s.Statistics)
	}
	emit(ch, TotalLabel, r.Total)
}

func emit(ch chan<- prometheus.Metric, source string, s stats.Statistics) {
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, source)
	}
	gauge(callsDesc, float64(s.Calls))
	gauge(timeDesc, s.Time.Seconds())
	gauge(readsDesc, float64(s.Reads))
	gauge(hitsDesc, float64(s.Hits))
	gauge(missDesc, float64(s.Misses))
	gauge(writeDesc, float64(s.Writes))
	gauge(delDesc, float64(s.Deletes))
	if s.Reads > 0 {
		gauge(ratioDesc, float64(s.Hits)/float64(s.Reads))
	}
}
