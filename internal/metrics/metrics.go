// Package metrics exposes Prometheus instrumentation for ingestion runs and
// the query API.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	RowsIngested prometheus.Counter
	RowsDropped  prometheus.Counter
	RunsLoaded   prometheus.Counter
	RunsEmpty    prometheus.Counter
	RunsFailed   prometheus.Counter

	HTTPRequests    *prometheus.CounterVec
	QueryLatencySec prometheus.Histogram
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	rowsIngested := prometheus.NewCounter(prometheus.CounterOpts{Name: "sales_rows_ingested_total"})
	rowsDropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "sales_rows_dropped_total"})
	runsLoaded := prometheus.NewCounter(prometheus.CounterOpts{Name: "sales_ingest_runs_loaded_total"})
	runsEmpty := prometheus.NewCounter(prometheus.CounterOpts{Name: "sales_ingest_runs_empty_total"})
	runsFailed := prometheus.NewCounter(prometheus.CounterOpts{Name: "sales_ingest_runs_failed_total"})

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_http_requests_total",
	}, []string{"path", "code"})
	queryLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sales_query_latency_seconds",
		Buckets: prometheus.DefBuckets,
	})

	r.MustRegister(rowsIngested, rowsDropped, runsLoaded, runsEmpty, runsFailed, httpRequests, queryLatency)
	return &Registry{
		reg:             r,
		RowsIngested:    rowsIngested,
		RowsDropped:     rowsDropped,
		RunsLoaded:      runsLoaded,
		RunsEmpty:       runsEmpty,
		RunsFailed:      runsFailed,
		HTTPRequests:    httpRequests,
		QueryLatencySec: queryLatency,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
