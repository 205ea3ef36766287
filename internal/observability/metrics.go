package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sales_dashboard"

// Metrics holds the Prometheus collectors of one process. It also receives
// dataset cache events.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpInFlight prometheus.Gauge

	cacheHits    prometheus.Counter
	cacheMisses  *prometheus.CounterVec
	loads        prometheus.Counter
	loadFailures *prometheus.CounterVec
	loadDuration prometheus.Histogram
	records      prometheus.Gauge
	skipped      prometheus.Gauge
	lastLoad     prometheus.Gauge
}

// NewMetrics registers every collector on a fresh registry, alongside the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route"}),
		httpInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "HTTP requests currently being served.",
		}),

		cacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_cache_hits_total",
			Help:      "Dataset reads served from the cache.",
		}),
		cacheMisses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_cache_misses_total",
			Help:      "Dataset reads that triggered a reload, by reason.",
		}, []string{"reason"}),
		loads: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_loads_total",
			Help:      "Successful dataset loads.",
		}),
		loadFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_load_failures_total",
			Help:      "Failed dataset loads, by reason.",
		}, []string{"reason"}),
		loadDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dataset_load_duration_seconds",
			Help:      "Time spent reading and preparing the dataset.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
		records: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_records",
			Help:      "Rows in the currently cached dataset.",
		}),
		skipped: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_skipped_rows",
			Help:      "Rows dropped as unparseable by the last load.",
		}),
		lastLoad: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_last_load_timestamp_seconds",
			Help:      "Unix time of the last successful load.",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveRequest records one finished HTTP request. route is the mux
// pattern, never the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method, route string, code int, took time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(took.Seconds())
}

func (m *Metrics) InFlight() prometheus.Gauge { return m.httpInFlight }

func (m *Metrics) CacheHit() { m.cacheHits.Inc() }

func (m *Metrics) CacheMiss(reason string) { m.cacheMisses.WithLabelValues(reason).Inc() }

func (m *Metrics) DatasetLoaded(records, skipped int, took time.Duration) {
	m.loads.Inc()
	m.loadDuration.Observe(took.Seconds())
	m.records.Set(float64(records))
	m.skipped.Set(float64(skipped))
	m.lastLoad.SetToCurrentTime()
}

func (m *Metrics) DatasetLoadFailed(reason string) {
	m.loadFailures.WithLabelValues(reason).Inc()
	m.records.Set(0)
}
