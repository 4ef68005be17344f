// Package metrics exposes Prometheus collectors for the crawl.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	visitsTotal          *prometheus.CounterVec
	visitDurationSeconds *prometheus.HistogramVec
	redirectsTotal       *prometheus.CounterVec
	launchRetriesTotal   prometheus.Counter
	sitesTotal           *prometheus.CounterVec
	activeWorkers        prometheus.Gauge
	proxyInjectionsTotal prometheus.Counter

	once sync.Once
)

// Init registers the collectors. It is safe to call more than once.
func Init() {
	once.Do(func() {
		visitsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagegraph_visits_total",
				Help: "Visits finished, labeled by pass and outcome code.",
			},
			[]string{"pass", "outcome"},
		)

		visitDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pagegraph_visit_duration_seconds",
				Help:    "Wall time of one visit including redirects and teardown.",
				Buckets: []float64{5, 10, 20, 30, 60, 90, 120, 180, 300},
			},
			[]string{"pass"},
		)

		redirectsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagegraph_redirects_total",
				Help: "Top-level redirects seen during visits, labeled by handling.",
			},
			[]string{"handling"},
		)

		launchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pagegraph_launch_retries_total",
				Help: "Browser launch retries.",
			},
		)

		sitesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagegraph_sites_total",
				Help: "Sites handled by the scheduler, labeled by status.",
			},
			[]string{"status"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "pagegraph_active_workers",
				Help: "Number of workers currently crawling a site.",
			},
		)

		proxyInjectionsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pagegraph_proxy_injections_total",
				Help: "HTML responses rewritten by the injection proxy.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveVisit records a finished visit.
func ObserveVisit(pass, outcome string, d time.Duration) {
	Init()
	visitsTotal.WithLabelValues(pass, outcome).Inc()
	visitDurationSeconds.WithLabelValues(pass).Observe(d.Seconds())
}

// ObserveRedirect counts a redirect that was followed or absorbed.
func ObserveRedirect(handling string) {
	Init()
	redirectsTotal.WithLabelValues(handling).Inc()
}

// ObserveLaunchRetry counts one browser launch retry.
func ObserveLaunchRetry() {
	Init()
	launchRetriesTotal.Inc()
}

// ObserveSite counts a site by its final status.
func ObserveSite(status string) {
	Init()
	sitesTotal.WithLabelValues(status).Inc()
}

// ObserveInjection counts one rewritten HTML response.
func ObserveInjection() {
	Init()
	proxyInjectionsTotal.Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}
