// Package metrics exposes Prometheus collectors for the scrape service.
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
	scrapeRunsTotal            *prometheus.CounterVec
	channelsDiscoveredTotal    prometheus.Counter
	channelAdmissionsTotal     *prometheus.CounterVec
	channelUpsertsTotal        prometheus.Counter
	detailFailuresTotal        prometheus.Counter
	catalogCallDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors. It is safe to call multiple
// times and is invoked lazily by every observer.
func Init() {
	once.Do(func() {
		scrapeRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_runs_total",
				Help: "Total pipeline runs, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		channelsDiscoveredTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scrape_channels_discovered_total",
				Help: "Total candidate channels returned by discovery.",
			},
		)

		channelAdmissionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_channel_admissions_total",
				Help: "Total admission decisions, labeled by verdict.",
			},
			[]string{"verdict"},
		)

		channelUpsertsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scrape_channel_upserts_total",
				Help: "Total channel rows upserted.",
			},
		)

		detailFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scrape_detail_failures_total",
				Help: "Total per-candidate detail lookups that failed.",
			},
		)

		catalogCallDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scrape_catalog_call_duration_seconds",
				Help:    "Histogram of catalog API call latencies, labeled by operation.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"op"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveRun increments the run counter for the given outcome.
func ObserveRun(outcome string) {
	Init()
	scrapeRunsTotal.WithLabelValues(outcome).Inc()
}

// AddDiscovered adds n to the discovered-candidates counter.
func AddDiscovered(n int) {
	Init()
	channelsDiscoveredTotal.Add(float64(n))
}

// ObserveAdmission increments the admission counter for the verdict.
func ObserveAdmission(admitted bool) {
	Init()
	verdict := "rejected"
	if admitted {
		verdict = "admitted"
	}
	channelAdmissionsTotal.WithLabelValues(verdict).Inc()
}

// ObserveUpsert increments the upsert counter.
func ObserveUpsert() {
	Init()
	channelUpsertsTotal.Inc()
}

// ObserveDetailFailure increments the per-candidate failure counter.
func ObserveDetailFailure() {
	Init()
	detailFailuresTotal.Inc()
}

// ObserveCatalogCall records the duration of one catalog API call.
func ObserveCatalogCall(op string, duration time.Duration) {
	Init()
	catalogCallDurationSeconds.WithLabelValues(op).Observe(duration.Seconds())
}
