// Package observability exposes the operational counters of send2crm.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector receives outcome events from the release, asset and
// reconciliation paths. Calls happen inline with admin requests.
type Collector interface {
	ObserveReleaseFetch(result string, d time.Duration)
	IncAssetDownload(result string)
	IncHashFetch(result string)
	IncReconcile(outcome string)
	ObserveHTTPRequest(route, method string, status int, d time.Duration)
}

// Result and outcome label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"

	OutcomeUnchanged  = "unchanged"
	OutcomeCommitted  = "committed"
	OutcomeRolledBack = "rolled_back"
)

type noopCollector struct{}

// Noop returns a collector that discards all metrics.
func Noop() Collector {
	return noopCollector{}
}

func (noopCollector) ObserveReleaseFetch(string, time.Duration)                {}
func (noopCollector) IncAssetDownload(string)                                  {}
func (noopCollector) IncHashFetch(string)                                      {}
func (noopCollector) IncReconcile(string)                                      {}
func (noopCollector) ObserveHTTPRequest(string, string, int, time.Duration) {}

// PrometheusCollector records metrics on a Prometheus registerer.
type PrometheusCollector struct {
	releaseFetches  *prometheus.CounterVec
	releaseDuration prometheus.Histogram
	assetDownloads  *prometheus.CounterVec
	hashFetches     *prometheus.CounterVec
	reconciles      *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// NewPrometheusCollector registers the send2crm metrics with reg. A nil reg
// uses a fresh registry, which keeps repeated construction in tests safe.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	const ns = "send2crm"

	return &PrometheusCollector{
		releaseFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "release_fetch_total",
			Help:      "Release index fetches by result.",
		}, []string{"result"}),
		releaseDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "release_fetch_duration_seconds",
			Help:      "Release index fetch latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		assetDownloads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "asset_download_total",
			Help:      "Snippet asset downloads by result.",
		}, []string{"result"}),
		hashFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "hash_fetch_total",
			Help:      "Integrity hash fetches by result.",
		}, []string{"result"}),
		reconciles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "reconcile_total",
			Help:      "Version reconciliations by outcome.",
		}, []string{"outcome"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Admin HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

func (p *PrometheusCollector) ObserveReleaseFetch(result string, d time.Duration) {
	if p == nil {
		return
	}
	p.releaseFetches.WithLabelValues(result).Inc()
	p.releaseDuration.Observe(d.Seconds())
}

func (p *PrometheusCollector) IncAssetDownload(result string) {
	if p == nil {
		return
	}
	p.assetDownloads.WithLabelValues(result).Inc()
}

func (p *PrometheusCollector) IncHashFetch(result string) {
	if p == nil {
		return
	}
	p.hashFetches.WithLabelValues(result).Inc()
}

func (p *PrometheusCollector) IncReconcile(outcome string) {
	if p == nil {
		return
	}
	p.reconciles.WithLabelValues(outcome).Inc()
}

func (p *PrometheusCollector) ObserveHTTPRequest(route, method string, status int, d time.Duration) {
	if p == nil {
		return
	}
	p.httpRequests.WithLabelValues(route, method, statusClass(status)).Inc()
	p.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
